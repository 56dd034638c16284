package rttest

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefaultStack(t *testing.T) {
	tests := []struct {
		name string
		size int
		ok   bool
	}{
		{"zero", 0, true},
		{"one page", 4096, true},
		{"default", DefaultStackSize, true},
		{"negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PrefaultStack(tt.size)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidArgument)
			}
		})
	}

	require.NoError(t, PrefaultStackDefault())
}

// TestLockAndPrefaultDynamic_Pool verifies the pool lifecycle.
func TestLockAndPrefaultDynamic_Pool(t *testing.T) {
	pool, err := LockAndPrefaultDynamic(64 << 10)
	skipIfDenied(t, err)
	require.NoError(t, err)

	data := pool.Bytes()
	require.Len(t, data, 64<<10)
	assert.Equal(t, 64<<10, pool.Len())
	for i := range data {
		data[i] = byte(i)
	}
	assert.Equal(t, byte(0xff), data[255])

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close(), "Close must be idempotent")
	assert.Zero(t, pool.Len())
	assert.Panics(t, func() { pool.Bytes() })
}

func TestLockAndPrefaultDynamic_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -4096} {
		_, err := LockAndPrefaultDynamic(size)
		require.ErrorIs(t, err, ErrInvalidArgument)
	}
}

// TestSuspendGC verifies the collector is off until restore.
func TestSuspendGC(t *testing.T) {
	before := debug.SetGCPercent(100)
	debug.SetGCPercent(before)

	restore := SuspendGC()
	during := debug.SetGCPercent(-1)
	restore()
	after := debug.SetGCPercent(before)

	assert.Equal(t, -1, during)
	assert.Equal(t, before, after)
}

// TestSuspendGC_Nested verifies overlapping suspensions keep the collector
// off until the last restore.
func TestSuspendGC_Nested(t *testing.T) {
	before := debug.SetGCPercent(100)
	debug.SetGCPercent(before)

	outer := SuspendGC()
	inner := SuspendGC()

	outer()
	outer()
	assert.Equal(t, -1, debug.SetGCPercent(-1), "inner suspension still active")

	inner()
	assert.Equal(t, before, debug.SetGCPercent(before))
}

// TestAllocSamples verifies the buffer is zeroed and sized.
func TestAllocSamples(t *testing.T) {
	samples, region, err := allocSamples(1000)
	require.NoError(t, err)
	defer releaseRegion(region, false)

	require.Len(t, samples, 1000)
	assert.GreaterOrEqual(t, len(region), 1000*sampleSize)
	assert.Equal(t, Sample{}, samples[999])

	samples[999].Latency = 42
	assert.EqualValues(t, 42, samples[999].Latency)

	_, _, err = allocSamples(0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
