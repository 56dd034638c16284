// Package rttest measures how precisely a thread can run a periodic task.
//
// # Overview
//
// rttest wakes a thread on a fixed schedule, runs a callback once per
// period and records how far each wakeup landed from its ideal instant.
// Alongside the latency it records the thread's page faults, then reduces
// the run to min/max/mean/stddev for latency and jitter plus tail
// percentiles and missed deadlines.
//
// Measurements are only meaningful on a quiet machine, so the package also
// removes the usual sources of non-determinism before spinning: it locks
// process memory, prefaults the stack and working pools, raises the thread
// to a real-time scheduling policy and suspends the Go collector.
//
// # Architecture
//
// The package components:
//
//   - config       - Run parameters and scheduling policies
//   - determinism  - mlockall, stack and pool prefaulting, priority, affinity
//   - session      - Per-thread context, preallocated sample buffer
//   - spin         - Absolute-deadline wakeup loop
//   - stats        - Reduction of samples to Results
//   - assertions   - Test helpers for real-time properties
//
// Output formats live in rtsink, command-line parsing in rtargs.
//
// # Quick Start
//
//	cfg := rttest.DefaultConfig()
//	cfg.LockMemory = true
//
//	s, err := rttest.NewSession(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.PrefaultStack(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.SetThreadDefaultPriority(); err != nil {
//	    log.Printf("running without real-time priority: %v", err)
//	}
//
//	if err := rttest.Spin(s, controlStep, state); err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := s.Statistics()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("max latency %s, P99 %s\n", res.MaxLatency, res.LatencyP99)
//
// # Schedule
//
// Wakeup k of a run is scheduled at
//
//	t_k = t0 + k·period
//
// where t0 is read once when Spin starts. The schedule is never corrected
// by actual wakeups, so a late wakeup does not push later ones back. For
// every sample:
//
//	latency_k = actual_k - t_k          (negative when early)
//	jitter_k  = latency_k - latency_k-1 (0 for k = 0)
//
// A sample misses its deadline when latency >= period, that is when the
// next slot had already begun.
//
// # Threads
//
// A Session belongs to the OS thread of the goroutine that created it.
// NewSession and NewPeer call runtime.LockOSThread so the goroutine stays
// on that thread, and Close releases it. To measure several threads, start
// a goroutine per thread and call NewPeer on the main session first thing
// inside it:
//
//	go func() {
//	    peer, err := main.NewPeer()
//	    if err != nil {
//	        return
//	    }
//	    defer peer.Close()
//	    _ = rttest.Spin(peer, step, arg)
//	}()
//
// Create every peer before the main session starts spinning; cmd/rttest
// does this with a ready barrier. Sessions share no mutable state.
//
// # Allocation
//
// The sample buffer is sized at session creation and, on Linux, mapped
// outside the Go heap. The clock and usage reader reuse per-session
// scratch space. Nothing between the first and last wakeup allocates,
// provided the callback does not.
//
// # Testing
//
// Use assertions to validate real-time properties:
//
//	func TestControlLoop(t *testing.T) {
//	    res := runLoop(t)
//
//	    rttest.AssertRealtime(t, res, rttest.DefaultAssertionConfig())
//	    rttest.PrintAnalysis(t, res)
//	}
//
// # Errors
//
// Every failure is an *Error whose Kind is one of the Err* sentinels, so
// errors.Is(err, rttest.ErrPermission) works through any wrapping.
// ExitCode maps each kind to a distinct process exit status.
package rttest
