package rttest

import (
	"math"
	"time"
)

// Results summarizes a run. Latency and jitter keep their sign: a negative
// minimum means some wakeups came early.
type Results struct {
	Samples int // Number of samples reduced

	MinLatency    time.Duration
	MaxLatency    time.Duration
	MeanLatency   float64 // ns
	LatencyStddev float64 // ns, population

	MinJitter    time.Duration
	MaxJitter    time.Duration
	MeanJitter   float64 // ns
	JitterStddev float64 // ns, population

	MinorPagefaults uint64 // Sum of per-sample deltas
	MajorPagefaults uint64

	MissedDeadlines int // Samples with Latency >= period

	LatencyP50  time.Duration
	LatencyP99  time.Duration
	LatencyP999 time.Duration
}

// Reduce computes Results from samples. It does not modify samples. A
// non-positive period disables deadline accounting.
func Reduce(samples []Sample, period time.Duration) (Results, error) {
	if len(samples) == 0 {
		return Results{}, invalidState("reduce", "no samples")
	}

	res := Results{
		Samples:    len(samples),
		MinLatency: samples[0].Latency,
		MaxLatency: samples[0].Latency,
		MinJitter:  samples[0].Jitter,
		MaxJitter:  samples[0].Jitter,
	}

	// Mean
	var latencySum, jitterSum float64
	for _, s := range samples {
		res.MinLatency = min(res.MinLatency, s.Latency)
		res.MaxLatency = max(res.MaxLatency, s.Latency)
		res.MinJitter = min(res.MinJitter, s.Jitter)
		res.MaxJitter = max(res.MaxJitter, s.Jitter)

		latencySum += float64(s.Latency)
		jitterSum += float64(s.Jitter)

		res.MinorPagefaults += s.MinorFaults
		res.MajorPagefaults += s.MajorFaults

		if s.Missed(period) {
			res.MissedDeadlines++
		}
	}
	n := float64(len(samples))
	res.MeanLatency = latencySum / n
	res.MeanJitter = jitterSum / n

	// Standard deviation
	var latencyVar, jitterVar float64
	for _, s := range samples {
		d := float64(s.Latency) - res.MeanLatency
		latencyVar += d * d
		d = float64(s.Jitter) - res.MeanJitter
		jitterVar += d * d
	}
	res.LatencyStddev = math.Sqrt(latencyVar / n)
	res.JitterStddev = math.Sqrt(jitterVar / n)

	// Percentiles
	q := latencyQuantiles(samples)
	res.LatencyP50 = q.at(0.50)
	res.LatencyP99 = q.at(0.99)
	res.LatencyP999 = q.at(0.999)

	return res, nil
}
