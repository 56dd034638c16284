package rttest

import (
	"bytes"
	"errors"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSession_Armed verifies a fresh session's state and buffer.
func TestNewSession_Armed(t *testing.T) {
	cfg := testConfig()
	cfg.Repetitions = 2
	usage := &fakeUsage{minorStep: 5}
	s := newTestSession(t, cfg, nil, usage)

	assert.Equal(t, StateArmed, s.State())
	assert.Equal(t, cfg, s.Config())
	assert.Equal(t, 20, s.Capacity())
	assert.Empty(t, s.Samples())
	assert.Equal(t, Usage{MinorFaults: 5}, s.InitialUsage())
	assert.Equal(t, time.Millisecond, s.Period())
	assert.NoError(t, s.Err())
}

// TestNewSession_ZeroIterationsHasNoSideEffects verifies validation runs
// before memory is locked or the thread is touched.
func TestNewSession_ZeroIterationsHasNoSideEffects(t *testing.T) {
	locks, _ := stubMemoryLock(t, nil)

	cfg := testConfig()
	cfg.Iterations = 0
	cfg.LockMemory = true

	s, err := NewSession(cfg)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, s)
	assert.Zero(t, *locks, "memory must not be locked for an invalid configuration")
	assert.Equal(t, 2, ExitCode(err))
}

// TestNewSession_InvalidConfig covers each rejected field.
func TestNewSession_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero period", func(c *Config) { c.UpdatePeriod = 0 }},
		{"zero repetitions", func(c *Config) { c.Repetitions = 0 }},
		{"negative stack", func(c *Config) { c.StackSize = -1 }},
		{"priority above range", func(c *Config) { c.SchedPriority = 150 }},
		{"priority below range", func(c *Config) { c.SchedPriority = 0 }},
		{"priority for normal policy", func(c *Config) { c.SchedPolicy = PolicyOther }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewSession(cfg)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

// TestNewSession_LockMemory verifies the lock is taken at init and
// released by Close, exactly once.
func TestNewSession_LockMemory(t *testing.T) {
	locks, unlocks := stubMemoryLock(t, nil)

	cfg := testConfig()
	cfg.LockMemory = true
	s, err := NewSession(cfg, WithClock(&fakeClock{}), WithUsageReader(&fakeUsage{}))
	require.NoError(t, err)

	assert.Equal(t, 1, *locks)
	require.NoError(t, s.LockMemory())
	assert.Equal(t, 1, *locks, "session already holds the lock")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, *unlocks)
	assert.Equal(t, StateClosed, s.State())
}

// TestNewSession_LockMemoryFailure verifies a refused lock fails init.
func TestNewSession_LockMemoryFailure(t *testing.T) {
	denied := newError("lock memory", ErrPermission, nil)
	_, unlocks := stubMemoryLock(t, denied)

	cfg := testConfig()
	cfg.LockMemory = true
	s, err := NewSession(cfg, WithClock(&fakeClock{}), WithUsageReader(&fakeUsage{}))
	require.ErrorIs(t, err, ErrPermission)
	assert.Nil(t, s)
	assert.Zero(t, *unlocks)
}

// TestNewSession_BaselineFailure verifies an unreadable baseline fails init.
func TestNewSession_BaselineFailure(t *testing.T) {
	_, err := NewSession(testConfig(), WithClock(&fakeClock{}), WithUsageReader(&fakeUsage{failAt: 1}))
	require.ErrorIs(t, err, ErrUsage)
	require.ErrorIs(t, err, errUsageBroken)
}

// TestNewSession_Logger verifies setup events reach the configured logger.
func TestNewSession_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := NewSession(testConfig(),
		WithClock(&fakeClock{now: testEpoch}),
		WithUsageReader(&fakeUsage{majorStep: 1}),
		WithLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, Spin(s, identity, 0))

	out := buf.String()
	assert.Contains(t, out, "session armed")
	assert.Contains(t, out, "initial_major_pagefaults=2")
	assert.Contains(t, out, "spin complete")
}

// TestSession_StatisticsRequiresComplete verifies Statistics is refused
// before the run finishes.
func TestSession_StatisticsRequiresComplete(t *testing.T) {
	s := newTestSession(t, testConfig(), nil, nil)

	_, err := s.Statistics()
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, Spin(s, identity, 0))
	res, err := s.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 10, res.Samples)
}

// TestSession_CloseReleasesSamples verifies Close drops the buffer.
func TestSession_CloseReleasesSamples(t *testing.T) {
	s := newTestSession(t, testConfig(), nil, nil)
	require.NoError(t, Spin(s, identity, 0))
	require.Len(t, s.Samples(), 10)

	require.NoError(t, s.Close())
	assert.Empty(t, s.Samples())
	assert.Zero(t, s.Capacity())

	_, err := s.Statistics()
	require.ErrorIs(t, err, ErrInvalidState)
}

// TestSession_SetupAfterSpin verifies determinism changes are refused once
// the session has spun.
func TestSession_SetupAfterSpin(t *testing.T) {
	s := newTestSession(t, testConfig(), nil, nil)
	require.NoError(t, Spin(s, identity, 0))

	assert.ErrorIs(t, s.PrefaultStack(), ErrInvalidState)
	assert.ErrorIs(t, s.LockMemory(), ErrInvalidState)
	assert.ErrorIs(t, s.SetThreadDefaultPriority(), ErrInvalidState)
	_, err := s.LockAndPrefaultDynamic(4096)
	assert.ErrorIs(t, err, ErrInvalidState)
}

// TestSession_PrefaultStack prefaults the configured stack size.
func TestSession_PrefaultStack(t *testing.T) {
	cfg := testConfig()
	cfg.StackSize = 256 << 10
	s := newTestSession(t, cfg, nil, nil)

	require.NoError(t, s.PrefaultStack())
	require.NoError(t, Spin(s, identity, 0))
}

// TestSession_PoolReleasedOnClose verifies pools created through the
// session are closed with it.
func TestSession_PoolReleasedOnClose(t *testing.T) {
	s := newTestSession(t, testConfig(), nil, nil)

	pool, err := s.LockAndPrefaultDynamic(64 << 10)
	skipIfDenied(t, err)
	require.NoError(t, err)
	require.Equal(t, 64<<10, pool.Len())

	require.NoError(t, s.Close())
	assert.Panics(t, func() { pool.Bytes() })
}

// TestSession_NewPeer verifies a peer on another thread gets the parent's
// configuration and an independent buffer.
func TestSession_NewPeer(t *testing.T) {
	cfg := testConfig()
	cfg.Iterations = 5
	parent := newTestSession(t, cfg, &fakeClock{now: testEpoch}, nil)

	type peerResult struct {
		cfg     Config
		samples []Sample
		err     error
	}
	ready := make(chan struct{})
	done := make(chan peerResult, 1)

	go func() {
		peer, err := parent.NewPeer(
			WithClock(&fakeClock{now: 2 * testEpoch, late: []time.Duration{time.Microsecond}}),
			WithUsageReader(&fakeUsage{}),
		)
		close(ready)
		if err != nil {
			done <- peerResult{err: err}
			return
		}
		defer peer.Close()

		if err := Spin(peer, identity, 0); err != nil {
			done <- peerResult{err: err}
			return
		}
		done <- peerResult{
			cfg:     peer.Config(),
			samples: append([]Sample(nil), peer.Samples()...),
		}
	}()

	<-ready
	require.NoError(t, Spin(parent, identity, 0))
	got := <-done
	require.NoError(t, got.err)

	assert.Equal(t, cfg, got.cfg)
	require.Len(t, got.samples, 5)

	own := parent.Samples()
	require.Len(t, own, 5)
	for k := range own {
		assert.Zero(t, own[k].Latency)
		assert.Equal(t, time.Microsecond, got.samples[k].Latency)
		assert.NotEqual(t, own[k].Scheduled, got.samples[k].Scheduled)
	}
}

// TestSession_NewPeerSameThread rejects a peer on the parent's own thread.
func TestSession_NewPeerSameThread(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread identity is only tracked on linux")
	}
	parent := newTestSession(t, testConfig(), nil, nil)

	peer, err := parent.NewPeer(WithClock(&fakeClock{}), WithUsageReader(&fakeUsage{}))
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, peer)

	// The parent is unaffected.
	assert.Equal(t, StateArmed, parent.State())
	require.NoError(t, Spin(parent, identity, 0))
}

// TestSession_NewPeerUninitialized rejects a zero-value parent.
func TestSession_NewPeerUninitialized(t *testing.T) {
	var parent Session
	_, err := parent.NewPeer()
	require.ErrorIs(t, err, ErrInvalidState)
}

// TestSession_NewPeerClosedParent rejects a parent that was already closed.
func TestSession_NewPeerClosedParent(t *testing.T) {
	parent := newTestSession(t, testConfig(), nil, nil)
	require.NoError(t, parent.Close())

	errc := make(chan error, 1)
	go func() {
		peer, err := parent.NewPeer(WithClock(&fakeClock{}), WithUsageReader(&fakeUsage{}))
		if peer != nil {
			peer.Close()
		}
		errc <- err
	}()
	require.ErrorIs(t, <-errc, ErrInvalidState)
}

// TestSession_WrongThread verifies a session refuses use from a goroutine
// that does not own it.
func TestSession_WrongThread(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread identity is only tracked on linux")
	}
	s := newTestSession(t, testConfig(), nil, nil)

	errc := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		errc <- Spin(s, identity, 0)
	}()

	require.ErrorIs(t, <-errc, ErrInvalidState)
	assert.Equal(t, StateArmed, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "armed", StateArmed.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func skipIfDenied(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, ErrPermission) || errors.Is(err, ErrResourceExhausted) {
		t.Skipf("memory locking not permitted here: %v", err)
	}
}
