//go:build linux

package rttest

import "golang.org/x/sys/unix"

// MonotonicClock returns a Clock backed by CLOCK_MONOTONIC. Sleeps use
// clock_nanosleep with TIMER_ABSTIME, so the time spent reading the clock
// is never added to the wait.
func MonotonicClock() Clock {
	return &monotonicClock{}
}

type monotonicClock struct {
	now      unix.Timespec
	deadline unix.Timespec
}

func (c *monotonicClock) Now() (int64, error) {
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &c.now); err != nil {
		return 0, err
	}
	return c.now.Nano(), nil
}

func (c *monotonicClock) SleepUntil(deadline int64) error {
	c.deadline = unix.NsecToTimespec(deadline)
	for {
		// The runtime's preemption signals interrupt the sleep; the
		// absolute deadline makes a retry exact.
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &c.deadline, nil)
		if err != unix.EINTR {
			return err
		}
	}
}

// ThreadUsage returns a UsageReader for getrusage(RUSAGE_THREAD). It must be
// read from the thread being measured.
func ThreadUsage() UsageReader {
	return &threadUsage{}
}

type threadUsage struct {
	ru unix.Rusage
}

func (r *threadUsage) ReadUsage(u *Usage) error {
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &r.ru); err != nil {
		return err
	}
	u.MinorFaults = uint64(r.ru.Minflt)
	u.MajorFaults = uint64(r.ru.Majflt)
	return nil
}
