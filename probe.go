package rttest

// Clock is the spin engine's time source. Instants are nanoseconds on a
// monotonic timeline with an arbitrary origin.
//
// A Clock is owned by a single session and may keep scratch state, so it
// must not be shared between threads.
type Clock interface {
	// Now returns the current instant.
	Now() (int64, error)

	// SleepUntil blocks until the clock reaches deadline. A deadline in the
	// past returns immediately.
	SleepUntil(deadline int64) error
}

// Usage holds the resource counters recorded per sample.
type Usage struct {
	MinorFaults uint64
	MajorFaults uint64
}

// UsageReader reads the calling thread's resource counters. Like Clock, an
// instance belongs to one session.
type UsageReader interface {
	ReadUsage(u *Usage) error
}
