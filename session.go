package rttest

import (
	"log/slog"
	"runtime"
	"time"
)

// State is a session's position in its lifecycle.
type State int32

const (
	StateIdle     State = iota // Zero value, not initialized
	StateArmed                 // Buffer ready, baseline captured
	StateSpinning              // Inside Spin
	StateComplete              // Every scheduled iteration recorded
	StateFailed                // Spin aborted on a clock or usage failure
	StateClosed                // Resources released
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateSpinning:
		return "spinning"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option customizes a session.
type Option func(*Session)

// WithClock replaces the monotonic clock. The clock must not be shared with
// another session.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithUsageReader replaces the per-thread rusage reader.
func WithUsageReader(r UsageReader) Option {
	return func(s *Session) { s.usage = r }
}

// WithLogger sets the logger used outside the measured loop.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Test seams for process-wide memory locking.
var (
	lockAllMemory   = LockMemory
	unlockAllMemory = UnlockMemory
)

// Session is one thread's measurement context: a copy of the configuration,
// a preallocated sample buffer and the resource-usage baseline.
//
// A session is bound to the OS thread of the goroutine that created it:
// creation calls runtime.LockOSThread and Close undoes it. Every method
// except the read-only accessors must be called from that goroutine.
type Session struct {
	cfg    Config
	logger *slog.Logger

	samples []Sample
	region  []byte
	cursor  int
	state   State
	err     error

	clock   Clock
	usage   UsageReader
	initial Usage
	prev    Usage
	cur     Usage
	epoch   int64
	period  time.Duration

	tid          int
	lockedMemory bool
	pools        []*Pool
}

// NewSession validates cfg, binds the calling goroutine to its OS thread,
// preallocates Iterations×Repetitions samples, locks memory when
// cfg.LockMemory is set and records the resource-usage baseline.
//
// An invalid configuration is rejected before any process state changes.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := newSession(cfg, opts)
	if err != nil {
		return nil, err
	}

	if cfg.LockMemory {
		if err := lockAllMemory(); err != nil {
			s.release()
			return nil, err
		}
		s.lockedMemory = true
		s.logger.Info("memory locked", "policy", cfg.SchedPolicy, "priority", cfg.SchedPriority)
	}

	if err := s.arm(); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

// NewPeer creates a session for the calling goroutine's thread using the
// configuration of s. Call it first thing in a newly started goroutine,
// before s starts spinning.
// The peer owns its own buffer and baseline; memory locking is process-wide
// and is not repeated.
func (s *Session) NewPeer(opts ...Option) (*Session, error) {
	const op = "new peer"
	if s == nil || s.state == StateIdle {
		return nil, invalidState(op, "parent session is not initialized")
	}
	if s.state == StateClosed {
		return nil, invalidState(op, "parent session is closed")
	}

	peer, err := newSession(s.cfg, opts)
	if err != nil {
		return nil, err
	}
	if peer.tid != 0 && peer.tid == s.tid {
		peer.release()
		return nil, invalidState(op, "thread %d already owns a session", s.tid)
	}

	if err := peer.arm(); err != nil {
		peer.release()
		return nil, err
	}
	return peer, nil
}

func newSession(cfg Config, opts []Option) (*Session, error) {
	n, ok := cfg.Capacity()
	if !ok {
		return nil, newError("new session", ErrResourceExhausted, nil)
	}

	s := &Session{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = MonotonicClock()
	}
	if s.usage == nil {
		s.usage = ThreadUsage()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	runtime.LockOSThread()
	s.tid = threadID()

	samples, region, err := allocSamples(n)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	s.samples = samples
	s.region = region
	return s, nil
}

func (s *Session) arm() error {
	if err := s.usage.ReadUsage(&s.initial); err != nil {
		return newError("read usage", ErrUsage, err)
	}
	s.prev = s.initial
	s.state = StateArmed
	s.logger.Debug("session armed",
		"thread", s.tid,
		"capacity", len(s.samples),
		"period", s.cfg.UpdatePeriod,
		"iterations", s.cfg.Iterations,
		"repetitions", s.cfg.Repetitions,
	)
	return nil
}

// Close releases the sample buffer, any pools created through the session
// and the memory lock taken by NewSession, then unbinds the goroutine from
// its thread. Samples returned earlier must not be used afterwards. Close
// is idempotent.
func (s *Session) Close() error {
	if s.state == StateClosed || s.state == StateIdle {
		return nil
	}
	err := s.release()
	s.state = StateClosed
	return err
}

func (s *Session) release() error {
	var firstError error
	for _, pool := range s.pools {
		if err := pool.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}
	if err := releaseRegion(s.region, false); err != nil && firstError == nil {
		firstError = err
	}
	s.pools = nil
	s.samples = nil
	s.region = nil
	s.cursor = 0

	if s.lockedMemory {
		if err := unlockAllMemory(); err != nil && firstError == nil {
			firstError = err
		}
		s.lockedMemory = false
	}
	runtime.UnlockOSThread()
	return firstError
}

// Config returns the session's configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Err returns the error that moved the session to StateFailed.
func (s *Session) Err() error { return s.err }

// Capacity returns the number of preallocated samples.
func (s *Session) Capacity() int { return len(s.samples) }

// Samples returns the samples written so far, in iteration order. The
// slice aliases the session buffer: treat it as read-only and do not keep
// it past Close.
func (s *Session) Samples() []Sample { return s.samples[:s.cursor] }

// InitialUsage returns the counters captured when the session was armed.
func (s *Session) InitialUsage() Usage { return s.initial }

// Period returns the period of the last spin, or the configured period
// before spinning.
func (s *Session) Period() time.Duration {
	if s.period > 0 {
		return s.period
	}
	return s.cfg.UpdatePeriod
}

// Statistics reduces the samples of a completed session.
func (s *Session) Statistics() (Results, error) {
	if s.state != StateComplete {
		return Results{}, invalidState("statistics", "session is %s, not complete", s.state)
	}
	return Reduce(s.Samples(), s.period)
}

// LockMemory locks process memory on behalf of the session. The lock is
// released by Close. It is a no-op when the session already holds it.
func (s *Session) LockMemory() error {
	if err := s.checkSetup("lock memory"); err != nil {
		return err
	}
	if s.lockedMemory {
		return nil
	}
	if err := lockAllMemory(); err != nil {
		return err
	}
	s.lockedMemory = true
	return nil
}

// PrefaultStack prefaults Config.StackSize bytes of stack.
func (s *Session) PrefaultStack() error {
	if err := s.checkSetup("prefault stack"); err != nil {
		return err
	}
	return PrefaultStack(s.cfg.StackSize)
}

// LockAndPrefaultDynamic commits a working pool that is released by Close.
func (s *Session) LockAndPrefaultDynamic(size int) (*Pool, error) {
	if err := s.checkSetup("lock and prefault dynamic"); err != nil {
		return nil, err
	}
	pool, err := LockAndPrefaultDynamic(size)
	if err != nil {
		return nil, err
	}
	s.pools = append(s.pools, pool)
	return pool, nil
}

// SetThreadDefaultPriority applies the configured policy and priority to
// the session's thread.
func (s *Session) SetThreadDefaultPriority() error {
	if err := s.checkSetup("set thread priority"); err != nil {
		return err
	}
	return SetSchedPriority(s.cfg.SchedPriority, s.cfg.SchedPolicy)
}

// checkSetup allows determinism changes only on the owning thread and only
// before spinning starts.
func (s *Session) checkSetup(op string) error {
	if s.state != StateArmed {
		return invalidState(op, "session is %s, not armed", s.state)
	}
	return s.checkThread(op)
}

func (s *Session) checkThread(op string) error {
	if s.tid != 0 {
		if tid := threadID(); tid != s.tid {
			return invalidState(op, "session belongs to thread %d, called from %d", s.tid, tid)
		}
	}
	return nil
}
