package timebase

import (
	"time"
)

// LocalClock is the source of fallback packet timestamps when the
// kernel does not deliver one.
type LocalClock interface {
	Now() time.Time
}
