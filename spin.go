package rttest

import (
	"context"
	"log/slog"
	"time"
)

// Spin runs fn(arg) once per period for Config.Iterations × Config.Repetitions
// wakeups and records a sample for each. See SpinPeriod.
func Spin[T, R any](s *Session, fn func(T) R, arg T) error {
	if s == nil {
		return invalidState("spin", "nil session")
	}
	return SpinPeriod(s, fn, arg, s.cfg.UpdatePeriod, s.cfg.Iterations)
}

// SpinPeriod is Spin with the period and iteration count overridden for this
// run. Repetitions still come from the session configuration.
//
// Wakeup k is scheduled at t0 + k×period, where t0 is read once on entry.
// The schedule never drifts toward actual wakeups, and repetitions continue
// it rather than restarting it. A wakeup whose deadline has already passed
// happens immediately and its lateness is recorded. fn's result is
// discarded.
//
// Nothing in the loop allocates. On a clock or usage failure the session
// moves to StateFailed and the samples written so far stay readable.
func SpinPeriod[T, R any](s *Session, fn func(T) R, arg T, period time.Duration, iterations uint) error {
	const op = "spin"
	if s == nil {
		return invalidState(op, "nil session")
	}
	if s.state != StateArmed {
		return invalidState(op, "session is %s, not armed", s.state)
	}
	if err := s.checkThread(op); err != nil {
		return err
	}
	if fn == nil {
		return invalidArgument(op, "nil callback")
	}
	if period <= 0 {
		return invalidArgument(op, "period must be positive, got %s", period)
	}
	if iterations == 0 {
		return invalidArgument(op, "iterations must be positive")
	}
	reps := s.cfg.Repetitions
	if reps == 0 || iterations > uint(len(s.samples))/reps {
		return invalidArgument(op, "%d iterations × %d repetitions exceed buffer capacity %d",
			iterations, reps, len(s.samples))
	}
	total := int(iterations * reps)
	perRep := int(iterations)

	s.state = StateSpinning
	s.period = period
	s.cursor = 0
	s.err = nil

	if s.cfg.DisableGC {
		restore := SuspendGC()
		defer restore()
		// The forced collection may have shrunk the stack onto fresh pages.
		if err := PrefaultStack(s.cfg.StackSize); err != nil {
			return s.fail(err)
		}
	}

	if err := s.usage.ReadUsage(&s.prev); err != nil {
		return s.fail(newError(op, ErrUsage, err))
	}
	if s.logger.Enabled(context.Background(), slog.LevelInfo) {
		s.logger.Info("spin starting",
			"initial_minor_pagefaults", s.prev.MinorFaults,
			"initial_major_pagefaults", s.prev.MajorFaults,
			"period", period,
			"wakeups", total,
		)
	}

	t0, err := s.clock.Now()
	if err != nil {
		return s.fail(newError(op, ErrClock, err))
	}
	s.epoch = t0

	step := int64(period)
	var last time.Duration
	for k := 0; k < total; k++ {
		scheduled := t0 + int64(k)*step
		if err := s.clock.SleepUntil(scheduled); err != nil {
			return s.fail(newError(op, ErrClock, err))
		}
		actual, err := s.clock.Now()
		if err != nil {
			return s.fail(newError(op, ErrClock, err))
		}

		fn(arg)

		if err := s.usage.ReadUsage(&s.cur); err != nil {
			return s.fail(newError(op, ErrUsage, err))
		}

		latency := time.Duration(actual - scheduled)
		var jitter time.Duration
		if k > 0 {
			jitter = latency - last
		}
		s.samples[k] = Sample{
			Iteration:   k % perRep,
			Repetition:  k / perRep,
			Scheduled:   scheduled,
			Actual:      actual,
			Latency:     latency,
			Jitter:      jitter,
			MinorFaults: delta(s.cur.MinorFaults, s.prev.MinorFaults),
			MajorFaults: delta(s.cur.MajorFaults, s.prev.MajorFaults),
		}
		s.prev = s.cur
		last = latency
		s.cursor = k + 1
	}

	s.state = StateComplete
	if s.logger.Enabled(context.Background(), slog.LevelInfo) {
		s.logger.Info("spin complete", "samples", s.cursor)
	}
	return nil
}

// Epoch returns t0 of the last spin on the session clock.
func (s *Session) Epoch() int64 { return s.epoch }

func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.err = err
	if s.logger.Enabled(context.Background(), slog.LevelError) {
		s.logger.Error("spin failed", "error", err, "samples", s.cursor)
	}
	return err
}

// delta tolerates counters that went backwards.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
