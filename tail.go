package rttest

import (
	"math"
	"slices"
	"time"
)

// quantiles is a sorted copy of the latencies of a run.
type quantiles []time.Duration

func latencyQuantiles(samples []Sample) quantiles {
	sorted := make(quantiles, len(samples))
	for i, s := range samples {
		sorted[i] = s.Latency
	}
	slices.Sort(sorted)
	return sorted
}

// at returns the nearest-rank p-th quantile (0 < p <= 1).
func (q quantiles) at(p float64) time.Duration {
	if len(q) == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(len(q))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(q) {
		rank = len(q)
	}
	return q[rank-1]
}

// TailDivergence returns |P99| / |P50| of latency.
//
// A run whose wakeups follow a narrow, roughly Gaussian distribution stays
// below 3. Above 10 the tail dominates: a handful of very late wakeups
// that the mean hides. With a zero median it returns 1 when P99 is also
// zero and +Inf otherwise.
func (r Results) TailDivergence() float64 {
	p50 := math.Abs(float64(r.LatencyP50))
	p99 := math.Abs(float64(r.LatencyP99))
	if p50 == 0 {
		if p99 == 0 {
			return 1.0
		}
		return math.Inf(1)
	}
	return p99 / p50
}

// IsHeavyTailed reports TailDivergence() > 10.
func (r Results) IsHeavyTailed() bool {
	return r.TailDivergence() > 10.0
}
