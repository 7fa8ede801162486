package adjust

import (
	"context"
	"log/slog"
	"sync"
)

var (
	mtrcsOnce sync.Once
	mtrcs     *pipelineMetrics
)

func pipelineMtrcs() *pipelineMetrics {
	mtrcsOnce.Do(func() {
		mtrcs = newPipelineMetrics()
	})
	return mtrcs
}

// Pipeline drives an Adjuster over channels. Input transfers arrive on
// in, adjusted transfers leave on out, and clone records leave on the
// separately flow-controlled clones channel. Channel sends block until
// the consumer is ready, which gives the valid/ready backpressure
// semantics: the pipeline never drops or reorders a transfer.
//
// At most one clone record is held while its consumer is busy. A
// second frame requiring a clone stalls the pipeline until the older
// record has been delivered, so clone records across frames keep frame
// arrival order.
type Pipeline struct {
	log     *slog.Logger
	mtrcs   *pipelineMetrics
	adj     Adjuster
	pending *CloneRecord
}

func NewPipeline(log *slog.Logger) *Pipeline {
	return &Pipeline{
		log:   log,
		mtrcs: pipelineMtrcs(),
	}
}

// Reset forcibly returns the pipeline to idle, discarding any
// partially streamed frame and any undelivered clone record. Consumers
// must treat a reset as invalidating a partially received frame.
func (p *Pipeline) Reset() {
	p.adj.Reset()
	p.pending = nil
}

// Run processes transfers until in is closed or ctx is canceled.
// Cancellation resets the pipeline and returns ctx.Err(); a closed
// input drains the pending clone record and returns nil.
func (p *Pipeline) Run(ctx context.Context, in <-chan Transfer,
	out chan<- Transfer, clones chan<- CloneRecord) error {
	for {
		var t Transfer
		var ok bool
		if p.pending != nil {
			select {
			case <-ctx.Done():
				p.Reset()
				return ctx.Err()
			case clones <- *p.pending:
				p.pending = nil
				continue
			case t, ok = <-in:
			}
		} else {
			select {
			case <-ctx.Done():
				p.Reset()
				return ctx.Err()
			case t, ok = <-in:
			}
		}
		if !ok {
			if p.pending != nil {
				select {
				case <-ctx.Done():
					p.Reset()
					return ctx.Err()
				case clones <- *p.pending:
					p.pending = nil
				}
			}
			return nil
		}

		first := !p.adj.inFrame
		o, rec := p.adj.Next(t)
		if first {
			p.mtrcs.framesTotal.Inc()
		}

		select {
		case <-ctx.Done():
			p.Reset()
			return ctx.Err()
		case out <- o:
		}

		if o.Last {
			if p.adj.adjustable {
				p.mtrcs.framesAdjusted.Inc()
			}
			if o.Error {
				p.mtrcs.adjustErrors.Inc()
			}
		}
		if rec != nil {
			if p.pending != nil {
				select {
				case <-ctx.Done():
					p.Reset()
					return ctx.Err()
				case clones <- *p.pending:
				}
			}
			p.pending = rec
			p.mtrcs.clonesEmitted.Inc()
			p.log.LogAttrs(ctx, slog.LevelDebug, "scheduled clone record",
				slog.Uint64("msgType", uint64(rec.MsgType)),
				slog.Uint64("dstMask", uint64(rec.DstMask)))
		}
	}
}
