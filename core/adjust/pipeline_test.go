package adjust_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"example.com/ptp-relay/base/logbase"

	"example.com/ptp-relay/core/adjust"
	"example.com/ptp-relay/net/ptp"
)

func newTestPipeline() *adjust.Pipeline {
	return adjust.NewPipeline(slog.New(logbase.NewNopHandler()))
}

// feed chops frames into chunks and sends them as transfers.
func feed(in chan<- adjust.Transfer, metas []adjust.Metadata,
	frames [][]byte, chunkLen int) {
	for k, frame := range frames {
		for pos := 0; pos < len(frame); pos += chunkLen {
			end := pos + chunkLen
			if end > len(frame) {
				end = len(frame)
			}
			in <- adjust.Transfer{
				Data: frame[pos:end],
				Last: end == len(frame),
				Meta: metas[k],
			}
		}
	}
	close(in)
}

// collect reassembles per-frame outputs from the transfer stream.
func collect(out <-chan adjust.Transfer) ([][]byte, []bool) {
	var frames [][]byte
	var errs []bool
	var cur []byte
	for tr := range out {
		cur = append(cur, tr.Data...)
		if tr.Last {
			frames = append(frames, cur)
			errs = append(errs, tr.Error)
			cur = nil
		}
	}
	return frames, errs
}

func TestPipelineAdjustsFrames(t *testing.T) {
	frame1, tlvPos := ptpFrame(ptp.MessageTypeSync, 0, true)
	frame2 := make([]byte, 64)
	metas := []adjust.Metadata{
		{
			MsgPos:      msgPos,
			TlvPos:      tlvPos,
			RefTime:     adjust.Interval{Value: 100 << 16, Valid: true},
			LocalTime:   adjust.Interval{Value: 23 << 16, Valid: true},
			FreqOffset:  adjust.Interval{Value: 7, Valid: true},
			TwoStepMask: 1,
		},
		{MsgPos: adjust.PosNone, TlvPos: adjust.PosNone},
	}
	frames := [][]byte{frame1, frame2}

	want1, wantRec, _ := adjust.AdjustFrame(metas[0], frame1)

	in := make(chan adjust.Transfer)
	out := make(chan adjust.Transfer, 64)
	clones := make(chan adjust.CloneRecord, 4)

	p := newTestPipeline()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), in, out, clones)
	}()
	feed(in, metas, frames, 8)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	close(out)
	close(clones)

	got, errs := collect(out)
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], want1) {
		t.Error("adjusted frame differs from bulk adjustment")
	}
	if !bytes.Equal(got[1], frame2) {
		t.Error("passthrough frame modified")
	}
	if errs[0] || errs[1] {
		t.Error("unexpected error flag")
	}

	var recs []adjust.CloneRecord
	for rec := range clones {
		recs = append(recs, rec)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d clone records, want 1", len(recs))
	}
	if recs[0] != *wantRec {
		t.Errorf("clone record = %+v, want %+v", recs[0], *wantRec)
	}
}

// Clone records keep frame arrival order even when the consumer lags
// and the single pending slot has to stall the pipeline.
func TestPipelineCloneOrder(t *testing.T) {
	const numFrames = 4
	frame, _ := ptpFrame(ptp.MessageTypeSync, 0, false)
	var metas []adjust.Metadata
	var frames [][]byte
	for k := 0; k < numFrames; k++ {
		metas = append(metas, adjust.Metadata{
			MsgPos:      msgPos,
			TlvPos:      adjust.PosNone,
			VlanTag:     uint16(k),
			RefTime:     adjust.Interval{Valid: true},
			LocalTime:   adjust.Interval{Valid: true},
			TwoStepMask: 1,
		})
		frames = append(frames, frame)
	}

	in := make(chan adjust.Transfer)
	out := make(chan adjust.Transfer, 256)
	clones := make(chan adjust.CloneRecord)

	p := newTestPipeline()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), in, out, clones)
	}()
	go feed(in, metas, frames, 8)

	// The clone consumer runs strictly behind the frame stream.
	for k := 0; k < numFrames; k++ {
		rec := <-clones
		if rec.Meta.VlanTag != uint16(k) {
			t.Errorf("clone %d out of order: tag %d", k, rec.Meta.VlanTag)
		}
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	close(out)

	got, _ := collect(out)
	if len(got) != numFrames {
		t.Fatalf("got %d frames, want %d", len(got), numFrames)
	}
}

func TestPipelineContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan adjust.Transfer)
	out := make(chan adjust.Transfer, 1)
	clones := make(chan adjust.CloneRecord, 1)

	p := newTestPipeline()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, in, out, clones)
	}()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop on cancellation")
	}
}

// A pending clone record survives input exhaustion: it is drained
// before Run returns.
func TestPipelineDrainsPendingClone(t *testing.T) {
	frame, _ := ptpFrame(ptp.MessageTypeSync, 0, false)
	metas := []adjust.Metadata{{
		MsgPos:      msgPos,
		TlvPos:      adjust.PosNone,
		RefTime:     adjust.Interval{Valid: true},
		LocalTime:   adjust.Interval{Valid: true},
		TwoStepMask: 1,
	}}

	in := make(chan adjust.Transfer)
	out := make(chan adjust.Transfer, 64)
	clones := make(chan adjust.CloneRecord) // unbuffered: record stays pending

	p := newTestPipeline()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), in, out, clones)
	}()
	feed(in, metas, [][]byte{frame}, 8)

	select {
	case rec := <-clones:
		if rec.MsgType != ptp.MessageTypeFollowUp {
			t.Errorf("clone message type = %#x, want Follow_Up", rec.MsgType)
		}
	case <-time.After(time.Second):
		t.Fatal("pending clone record never delivered")
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
