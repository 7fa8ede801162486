package benchmark

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"example.com/ptp-relay/base/logbase"

	"example.com/ptp-relay/core/adjust"
	"example.com/ptp-relay/core/classify"

	"example.com/ptp-relay/net/ptp"
)

const (
	numFrames = 1_000_000
)

// RunPipelineBenchmark streams Sync frames through the adjustment
// pipeline in chunks of chunkLen bytes and prints a latency histogram
// in microseconds per frame.
func RunPipelineBenchmark(chunkLen int) {
	if chunkLen < 1 {
		panic("invalid argument: chunk length must be positive")
	}
	log := slog.New(logbase.NewNopHandler())

	frame := syncFrame()
	c := classify.NewClassifier()
	meta := c.Classify(frame)
	if meta.MsgPos == adjust.PosNone {
		logbase.Fatal(slog.Default(), "unexpected benchmark frame")
	}
	meta.RefTime = adjust.Interval{Value: 100 << 16, Valid: true}
	meta.LocalTime = adjust.Interval{Value: 23 << 16, Valid: true}
	meta.TwoStepMask = 1

	in := make(chan adjust.Transfer)
	out := make(chan adjust.Transfer)
	clones := make(chan adjust.CloneRecord, 1)

	p := adjust.NewPipeline(log)
	go func() {
		err := p.Run(context.Background(), in, out, clones)
		if err != nil {
			logbase.Fatal(slog.Default(), "pipeline failed", slog.Any("error", err))
		}
		close(out)
	}()

	hg := hdrhistogram.New(1, 50000, 5)

	done := make(chan struct{})
	go func() {
		for t := range out {
			if t.Last {
				<-clones
			}
		}
		close(done)
	}()

	for i := 0; i < numFrames; i++ {
		t0 := time.Now()
		for pos := 0; pos < len(frame); pos += chunkLen {
			end := pos + chunkLen
			if end > len(frame) {
				end = len(frame)
			}
			in <- adjust.Transfer{
				Data: frame[pos:end],
				Last: end == len(frame),
				Meta: meta,
			}
		}
		err := hg.RecordValue(time.Since(t0).Microseconds())
		if err != nil {
			// out of histogram range, ignore
			continue
		}
	}
	close(in)
	<-done

	hg.PercentilesPrint(os.Stdout, 1, 1.0)
}

func syncFrame() []byte {
	hdr := ptp.Header{
		SdoIDMessageType:   ptp.MessageTypeSync,
		Version:            ptp.PTPVersion,
		MessageLength:      ptp.HeaderLen + 10,
		SourcePortIdentity: ptp.PortID{ClockID: 1, Port: 1},
		LogMessageInterval: 0x7f,
	}
	msg := make([]byte, hdr.MessageLength)
	ptp.EncodeHeader(msg, &hdr)

	frame := make([]byte, 14+len(msg))
	for i := 0; i < 12; i++ {
		frame[i] = 0xFF
	}
	frame[12] = byte(ptp.EtherType >> 8)
	frame[13] = byte(ptp.EtherType & 0xFF)
	copy(frame[14:], msg)
	return frame
}
