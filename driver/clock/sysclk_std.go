//go:build !linux

package clock

import (
	"log/slog"
	"time"

	"example.com/ptp-relay/base/timebase"
)

type SystemClock struct {
	Log *slog.Logger
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func (c *SystemClock) Now() time.Time {
	return time.Now().UTC()
}
