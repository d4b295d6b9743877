package engine

import (
	"time"

	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// Clock abstracts time.Now() to allow deterministic testing.
// It decides which Jalali day is "today" for the feed and the notifier.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Today samples the clock once and returns the Jalali date observed at the
// fixed UTC offset.
func Today(c Clock, offset time.Duration) jalali.Date {
	return jalali.FromTime(c.Now(), offset)
}
