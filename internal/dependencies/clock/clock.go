package clock

import "github.com/jonboulle/clockwork"

// Clock provides time operations that can be faked for testing. It covers
// both wall-clock reads and the tickers used by the timer scheduler.
type Clock = clockwork.Clock

// New creates a Clock backed by the system clock
func New() Clock {
	return clockwork.NewRealClock()
}
