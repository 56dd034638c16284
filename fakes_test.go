package rttest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	errClockBroken = errors.New("clock broken")
	errUsageBroken = errors.New("rusage broken")
)

// fakeClock jumps straight to each deadline and then adds the next entry of
// late, so latencies are exact.
type fakeClock struct {
	now       int64
	late      []time.Duration
	wakeups   int
	nowCalls  int
	failNow   int // 1-based Now call that fails, 0 = never
	failSleep int // 1-based SleepUntil call that fails, 0 = never
}

func (c *fakeClock) Now() (int64, error) {
	c.nowCalls++
	if c.failNow != 0 && c.nowCalls == c.failNow {
		return 0, errClockBroken
	}
	return c.now, nil
}

func (c *fakeClock) SleepUntil(deadline int64) error {
	if c.failSleep != 0 && c.wakeups+1 == c.failSleep {
		return errClockBroken
	}
	if deadline > c.now {
		c.now = deadline
	}
	if len(c.late) > 0 {
		c.now += int64(c.late[c.wakeups%len(c.late)])
	}
	c.wakeups++
	return nil
}

// fakeUsage adds fixed steps to its counters on every read.
type fakeUsage struct {
	minorStep uint64
	majorStep uint64
	cur       Usage
	reads     int
	failAt    int // 1-based read that fails, 0 = never
}

func (u *fakeUsage) ReadUsage(out *Usage) error {
	u.reads++
	if u.failAt != 0 && u.reads == u.failAt {
		return errUsageBroken
	}
	u.cur.MinorFaults += u.minorStep
	u.cur.MajorFaults += u.majorStep
	*out = u.cur
	return nil
}

const testEpoch = int64(1_000_000_000)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Iterations = 10
	cfg.UpdatePeriod = time.Millisecond
	cfg.DisableGC = false
	return cfg
}

// newTestSession creates a session on fakes and closes it when the test
// ends. Cleanups run on the test goroutine, which owns the session thread.
func newTestSession(t *testing.T, cfg Config, clock *fakeClock, usage *fakeUsage) *Session {
	t.Helper()

	if clock == nil {
		clock = &fakeClock{now: testEpoch}
	}
	if usage == nil {
		usage = &fakeUsage{}
	}
	s, err := NewSession(cfg, WithClock(clock), WithUsageReader(usage))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func identity(x int) int { return x }

// stubMemoryLock replaces process-wide locking for the duration of a test.
func stubMemoryLock(t *testing.T, lockErr error) (locks, unlocks *int) {
	t.Helper()

	var l, u int
	prevLock, prevUnlock := lockAllMemory, unlockAllMemory
	lockAllMemory = func() error {
		l++
		return lockErr
	}
	unlockAllMemory = func() error {
		u++
		return nil
	}
	t.Cleanup(func() {
		lockAllMemory, unlockAllMemory = prevLock, prevUnlock
	})
	return &l, &u
}
