package logbase

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Fatal logs msg at error level with the caller's source location and
// exits.
func Fatal(log *slog.Logger, msg string, attrs ...slog.Attr) {
	// See https://pkg.go.dev/log/slog#hdr-Wrapping_output_methods
	var pcs [1]uintptr
	n := runtime.Callers(2, pcs[:]) // skip [Callers, Fatal]
	if n != 1 {
		panic("unexpected call stack")
	}
	r := slog.NewRecord(time.Now(), slog.LevelError, msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = log.Handler().Handle(context.Background(), r)
	os.Exit(1)
}

type nopHandler struct{}

func (h *nopHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (h *nopHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (h *nopHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *nopHandler) WithGroup(_ string) slog.Handler {
	return h
}

func NewNopHandler() slog.Handler {
	return &nopHandler{}
}
