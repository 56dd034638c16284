package rttest

import (
	"math"
	"time"
	"unsafe"
)

// Sample is one iteration's measurement. Scheduled and Actual are instants
// of the session clock; Latency is Actual-Scheduled and is negative when
// the thread woke early. Fault counts are deltas since the previous sample.
//
// Sample holds no pointers so the buffer can live outside the Go heap.
type Sample struct {
	Iteration   int           // Index within the repetition
	Repetition  int           // Which replay of the schedule
	Scheduled   int64         // Ideal wakeup instant (ns)
	Actual      int64         // Observed wakeup instant (ns)
	Latency     time.Duration // Actual - Scheduled
	Jitter      time.Duration // Latency - previous Latency, 0 for the first sample
	MinorFaults uint64
	MajorFaults uint64
}

// Missed reports whether the wakeup came so late that the next slot of a
// schedule with the given period had already started.
func (s Sample) Missed(period time.Duration) bool {
	return period > 0 && s.Latency >= period
}

var sampleSize = int(unsafe.Sizeof(Sample{}))

// allocSamples returns a zeroed, page-touched buffer of n samples and the
// region backing it. On Linux the region is an anonymous mapping released
// with releaseRegion.
func allocSamples(n int) ([]Sample, []byte, error) {
	const op = "allocate samples"
	if n <= 0 {
		return nil, nil, invalidArgument(op, "sample count must be positive, got %d", n)
	}
	if n > math.MaxInt/sampleSize {
		return nil, nil, newError(op, ErrResourceExhausted, nil)
	}

	region, err := mapRegion(n * sampleSize)
	if err != nil {
		return nil, nil, newError(op, ErrResourceExhausted, err)
	}
	touchPages(region)

	return unsafe.Slice((*Sample)(unsafe.Pointer(&region[0])), n), region, nil
}
