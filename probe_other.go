//go:build !linux

package rttest

import "time"

// MonotonicClock returns a Clock backed by the runtime's monotonic time.
// Without clock_nanosleep the sleep is relative, so expect extra latency.
func MonotonicClock() Clock {
	return &monotonicClock{origin: time.Now()}
}

type monotonicClock struct {
	origin time.Time
}

func (c *monotonicClock) Now() (int64, error) {
	return int64(time.Since(c.origin)), nil
}

func (c *monotonicClock) SleepUntil(deadline int64) error {
	if wait := deadline - int64(time.Since(c.origin)); wait > 0 {
		time.Sleep(time.Duration(wait))
	}
	return nil
}

// ThreadUsage returns a reader that reports zero faults; per-thread fault
// counters are only available on Linux.
func ThreadUsage() UsageReader {
	return zeroUsage{}
}

type zeroUsage struct{}

func (zeroUsage) ReadUsage(u *Usage) error {
	*u = Usage{}
	return nil
}
