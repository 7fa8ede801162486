// Driver for quick experiments

package main

import (
	"log/slog"

	"example.com/ptp-relay/core/adjust"
	"example.com/ptp-relay/net/ptp"
)

func runX() {
	initLogger(true /* verbose */)

	log := slog.Default()

	hdr := ptp.Header{
		SdoIDMessageType:   ptp.MessageTypeSync,
		Version:            ptp.PTPVersion,
		MessageLength:      uint16(ptp.HeaderLen + ptp.BodyLen(ptp.MessageTypeSync)),
		SourcePortIdentity: ptp.PortID{ClockID: 0x1122334455667788, Port: 1},
		LogMessageInterval: 0x7f,
	}
	msg := make([]byte, hdr.MessageLength)
	ptp.EncodeHeader(msg, &hdr)

	meta := adjust.Metadata{
		TlvPos:      adjust.PosNone,
		RefTime:     adjust.Interval{Value: 1000 << 16, Valid: true},
		LocalTime:   adjust.Interval{Value: 250 << 16, Valid: true},
		TwoStepMask: 0b0101,
	}
	out, rec, adjErr := adjust.AdjustFrame(meta, msg)
	log.Debug("adjusted message",
		slog.Bool("error", adjErr), slog.Any("header", ptp.HeaderLogValuer{Hdr: &hdr}))
	if rec != nil {
		fu := adjust.CloneFrame(out, meta, rec)
		log.Debug("follow-up companion", slog.Int("len", len(fu)))
	}
}
