package rttest

import (
	"testing"
	"time"
)

// AssertionConfig contains thresholds for real-time properties.
type AssertionConfig struct {
	// Worst-case wakeup latency (MaxLatency <= this value passes)
	MaxLatency time.Duration

	// Largest consecutive latency change in either direction
	MaxJitter time.Duration

	// Major pagefaults tolerated during the run
	MaxMajorPagefaults uint64

	// Fraction of wakeups allowed to miss their deadline (0.0 - 1.0)
	MaxMissedRatio float64

	// Upper bound for P99/P50
	MaxTailDivergence float64
}

// DefaultAssertionConfig returns thresholds for a soft real-time loop on a
// tuned, otherwise idle machine.
func DefaultAssertionConfig() AssertionConfig {
	return AssertionConfig{
		MaxLatency:         200 * time.Microsecond,
		MaxJitter:          100 * time.Microsecond,
		MaxMajorPagefaults: 0,
		MaxMissedRatio:     0.0,
		MaxTailDivergence:  10.0,
	}
}

// AssertBoundedLatency verifies no wakeup was later than cfg.MaxLatency.
func AssertBoundedLatency(t testing.TB, res Results, cfg AssertionConfig) {
	t.Helper()

	if res.MaxLatency > cfg.MaxLatency {
		t.Errorf("Latency unbounded: max = %s (limit: %s)\n"+
			"P99 = %s, P99.9 = %s. Check priority, CPU isolation and memory locking.",
			res.MaxLatency, cfg.MaxLatency, res.LatencyP99, res.LatencyP999)
		return
	}

	t.Logf("✓ Bounded latency: max = %s (limit: %s)", res.MaxLatency, cfg.MaxLatency)
}

// AssertBoundedJitter verifies consecutive wakeups never drifted apart by
// more than cfg.MaxJitter.
func AssertBoundedJitter(t testing.TB, res Results, cfg AssertionConfig) {
	t.Helper()

	worst := max(res.MaxJitter, -res.MinJitter)
	if worst > cfg.MaxJitter {
		t.Errorf("Jitter unbounded: |jitter| = %s (limit: %s)\n"+
			"Jitter range is [%s, %s], stddev %.0fns.",
			worst, cfg.MaxJitter, res.MinJitter, res.MaxJitter, res.JitterStddev)
		return
	}

	t.Logf("✓ Bounded jitter: |jitter| = %s (limit: %s)", worst, cfg.MaxJitter)
}

// AssertNoMajorPagefaults verifies the loop did not wait on disk I/O for
// page-ins. Minor faults are reported but not failed.
func AssertNoMajorPagefaults(t testing.TB, res Results, cfg AssertionConfig) {
	t.Helper()

	if res.MajorPagefaults > cfg.MaxMajorPagefaults {
		t.Errorf("Major pagefaults during spin: %d (max: %d)\n"+
			"Lock memory and prefault the stack and working pools before spinning.",
			res.MajorPagefaults, cfg.MaxMajorPagefaults)
		return
	}

	t.Logf("✓ Major pagefaults: %d (minor: %d)", res.MajorPagefaults, res.MinorPagefaults)
}

// AssertDeadlines verifies the share of missed deadlines stays within
// cfg.MaxMissedRatio.
func AssertDeadlines(t testing.TB, res Results, cfg AssertionConfig) {
	t.Helper()

	if res.Samples == 0 {
		t.Fatalf("No samples to check")
	}

	ratio := float64(res.MissedDeadlines) / float64(res.Samples)
	if ratio > cfg.MaxMissedRatio {
		t.Errorf("Deadlines missed: %d of %d (%.2f%%, max: %.2f%%)",
			res.MissedDeadlines, res.Samples, ratio*100, cfg.MaxMissedRatio*100)
		return
	}

	t.Logf("✓ Deadlines: %d of %d missed", res.MissedDeadlines, res.Samples)
}

// AssertRealtime runs all real-time assertions with cfg as subtests.
func AssertRealtime(t *testing.T, res Results, cfg AssertionConfig) {
	t.Helper()

	t.Run("BoundedLatency", func(t *testing.T) {
		AssertBoundedLatency(t, res, cfg)
	})

	t.Run("BoundedJitter", func(t *testing.T) {
		AssertBoundedJitter(t, res, cfg)
	})

	t.Run("NoMajorPagefaults", func(t *testing.T) {
		AssertNoMajorPagefaults(t, res, cfg)
	})

	t.Run("Deadlines", func(t *testing.T) {
		AssertDeadlines(t, res, cfg)
	})

	t.Run("TailDivergence", func(t *testing.T) {
		if d := res.TailDivergence(); d > cfg.MaxTailDivergence {
			t.Errorf("Heavy latency tail: P99/P50 = %.2f (max: %.2f)", d, cfg.MaxTailDivergence)
		}
	})
}

// PrintAnalysis outputs the run summary to the test log.
func PrintAnalysis(t testing.TB, res Results) {
	t.Helper()

	t.Logf("\n=== Real-time Analysis ===")
	t.Logf("Samples: %d", res.Samples)

	t.Logf("\nLatency:")
	t.Logf("  min     = %s", res.MinLatency)
	t.Logf("  max     = %s", res.MaxLatency)
	t.Logf("  mean    = %.0fns", res.MeanLatency)
	t.Logf("  stddev  = %.0fns", res.LatencyStddev)
	t.Logf("  P50     = %s", res.LatencyP50)
	t.Logf("  P99     = %s", res.LatencyP99)
	t.Logf("  P99.9   = %s", res.LatencyP999)

	t.Logf("\nJitter:")
	t.Logf("  min     = %s", res.MinJitter)
	t.Logf("  max     = %s", res.MaxJitter)
	t.Logf("  stddev  = %.0fns", res.JitterStddev)

	t.Logf("\nPagefaults: minor %d, major %d", res.MinorPagefaults, res.MajorPagefaults)
	t.Logf("Missed deadlines: %d", res.MissedDeadlines)

	// Interpret the tail
	t.Logf("\nInterpretation:")
	switch d := res.TailDivergence(); {
	case d < 3.0:
		t.Logf("  ✓ Narrow tail (P99/P50 = %.2f)", d)
	case d <= 10.0:
		t.Logf("  ⚠ Skewed tail (P99/P50 = %.2f) - occasional late wakeups", d)
	default:
		t.Logf("  ✗ Heavy tail (P99/P50 = %.2f) - the mean hides the worst case", d)
	}

	if res.MajorPagefaults > 0 {
		t.Logf("  ✗ Major pagefaults inside the loop - memory not locked")
	} else if res.MinorPagefaults > 0 {
		t.Logf("  ⚠ Minor pagefaults inside the loop - prefault working memory")
	} else {
		t.Logf("  ✓ No pagefaults inside the loop")
	}
}
