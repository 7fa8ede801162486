//go:build linux

package clock

import (
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"example.com/ptp-relay/base/timebase"
)

type SystemClock struct {
	Log *slog.Logger
}

var _ timebase.LocalClock = (*SystemClock)(nil)

func (c *SystemClock) Now() time.Time {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	if err != nil {
		panic("unix.ClockGettime failed")
	}
	return time.Unix(ts.Unix()).UTC()
}
