package ptp

import (
	"log/slog"
)

type PortIDLogValuer struct {
	ID PortID
}

func (v PortIDLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("ClockID", v.ID.ClockID),
		slog.Uint64("Port", uint64(v.ID.Port)),
	)
}

type HeaderLogValuer struct {
	Hdr *Header
}

func (v HeaderLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("MessageType", uint64(v.Hdr.MessageType())),
		slog.Uint64("Version", uint64(v.Hdr.Version)),
		slog.Uint64("MessageLength", uint64(v.Hdr.MessageLength)),
		slog.Uint64("DomainNumber", uint64(v.Hdr.DomainNumber)),
		slog.Uint64("FlagField", uint64(v.Hdr.FlagField)),
		slog.Int64("CorrectionField", int64(v.Hdr.CorrectionField)),
		slog.Any("SourcePortIdentity", PortIDLogValuer{ID: v.Hdr.SourcePortIdentity}),
		slog.Uint64("SequenceID", uint64(v.Hdr.SequenceID)),
		slog.Uint64("ControlField", uint64(v.Hdr.ControlField)),
		slog.Int64("LogMessageInterval", int64(v.Hdr.LogMessageInterval)),
	)
}
