package rttest

import (
	"os"
	"runtime"
	"runtime/debug"
	"sync"
)

// SetDefaultPriority moves the calling thread to DefaultPolicy at
// DefaultPriority.
func SetDefaultPriority() error {
	return SetSchedPriority(DefaultPriority, DefaultPolicy)
}

// stackFrameSize is the size of one recursive frame used to grow the
// goroutine stack in PrefaultStack.
const stackFrameSize = 8 << 10

// stackSink keeps touchStack's result observable so the frames are not
// optimized away.
var stackSink byte

// PrefaultStack grows the calling goroutine's stack by at least size bytes
// and writes to every page of it, so the stack does not need to grow or
// fault while spinning.
//
// The Go runtime may shrink the stack again during a collection. Sessions
// configured with DisableGC prefault again after the collection Spin forces,
// then keep the collector off for the whole spin.
func PrefaultStack(size int) error {
	if size < 0 {
		return invalidArgument("prefault stack", "size must not be negative, got %d", size)
	}
	frames := (size + stackFrameSize - 1) / stackFrameSize
	if frames > 0 {
		stackSink = touchStack(frames)
	}
	return nil
}

// PrefaultStackDefault prefaults DefaultStackSize bytes of stack.
func PrefaultStackDefault() error {
	return PrefaultStack(DefaultStackSize)
}

//go:noinline
func touchStack(frames int) byte {
	var frame [stackFrameSize]byte
	for i := 0; i < len(frame); i += 512 {
		frame[i] = byte(frames + i)
	}
	if frames > 1 {
		frame[0] ^= touchStack(frames - 1)
	}
	return frame[0] ^ frame[len(frame)-512]
}

// touchPages writes one byte per page so the kernel backs the whole region
// before it is used.
func touchPages(data []byte) {
	pageSize := os.Getpagesize()
	for i := 0; i < len(data); i += pageSize {
		data[i] = 0
	}
}

// gcSuspension tracks nested SuspendGC calls so concurrent sessions
// restore the collector only when the last one finishes.
var gcSuspension struct {
	sync.Mutex
	depth    int
	previous int
}

// SuspendGC runs a full collection and then disables the collector until
// restore is called. Use it around code that must not be interrupted by
// GC assists or stack shrinking. Calls nest; the collector comes back when
// every restore has run. Calling a restore twice is a no-op.
func SuspendGC() (restore func()) {
	gcSuspension.Lock()
	defer gcSuspension.Unlock()

	if gcSuspension.depth == 0 {
		runtime.GC()
		gcSuspension.previous = debug.SetGCPercent(-1)
	}
	gcSuspension.depth++

	var once sync.Once
	return func() {
		once.Do(func() {
			gcSuspension.Lock()
			defer gcSuspension.Unlock()

			gcSuspension.depth--
			if gcSuspension.depth == 0 {
				debug.SetGCPercent(gcSuspension.previous)
			}
		})
	}
}

// Pool is a block of working memory committed before spinning. On Linux it
// lives outside the Go heap, is locked into RAM and has every page touched.
//
// A Pool must not be copied. After Close, Bytes panics.
type Pool struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// Bytes returns the pool memory. The slice is only valid until Close.
func (p *Pool) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		panic("rttest: use of closed pool")
	}
	return p.data
}

// Len returns the pool size in bytes.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}

// Locked reports whether the pool's pages are locked into RAM.
func (p *Pool) Locked() bool {
	return p.locked
}

// Close releases the pool. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	err := releaseRegion(p.data, p.locked)
	p.data = nil
	return err
}
