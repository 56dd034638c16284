//go:build linux

package rttest

import (
	"errors"

	"golang.org/x/sys/unix"
)

// LockMemory pins all current and future pages of the process into RAM.
// Without CAP_IPC_LOCK (or a large enough RLIMIT_MEMLOCK) it fails with
// ErrPermission or ErrResourceExhausted.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return errnoError("lock memory", err, ErrPermission)
	}
	return nil
}

// UnlockMemory undoes LockMemory.
func UnlockMemory() error {
	if err := unix.Munlockall(); err != nil {
		return errnoError("unlock memory", err, ErrPermission)
	}
	return nil
}

// LockAndPrefaultDynamic commits size bytes of anonymous memory outside the
// Go heap, locks it into RAM and touches every page. The caller owns the
// returned Pool and must Close it.
func LockAndPrefaultDynamic(size int) (*Pool, error) {
	const op = "lock and prefault dynamic"
	if size <= 0 {
		return nil, invalidArgument(op, "pool size must be positive, got %d", size)
	}

	data, err := mapRegion(size)
	if err != nil {
		return nil, errnoError(op, err, ErrResourceExhausted)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, errnoError(op, err, ErrPermission)
	}
	touchPages(data)

	return &Pool{data: data, locked: true}, nil
}

// PriorityRange returns the valid priority bounds for policy as reported by
// the kernel.
func PriorityRange(policy Policy) (lo, hi int, err error) {
	const op = "priority range"
	r, _, errno := unix.RawSyscall(unix.SYS_SCHED_GET_PRIORITY_MIN, uintptr(policy), 0, 0)
	if errno != 0 {
		return 0, 0, errnoError(op, errno, ErrInvalidArgument)
	}
	lo = int(r)
	r, _, errno = unix.RawSyscall(unix.SYS_SCHED_GET_PRIORITY_MAX, uintptr(policy), 0, 0)
	if errno != 0 {
		return 0, 0, errnoError(op, errno, ErrInvalidArgument)
	}
	hi = int(r)
	return lo, hi, nil
}

// SetSchedPriority sets the scheduling class and priority of the calling
// thread. The priority is range-checked before the thread is touched, so a
// rejected call leaves the current attributes in place.
func SetSchedPriority(priority int, policy Policy) error {
	const op = "set sched priority"
	if err := checkPriority(op, priority, policy); err != nil {
		return err
	}

	attr := unix.SchedAttr{
		Policy:   uint32(policy),
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return errnoError(op, err, ErrPermission)
	}
	return nil
}

// CurrentScheduling reports the calling thread's scheduling class and
// priority.
func CurrentScheduling() (Policy, int, error) {
	attr, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		return 0, 0, errnoError("current scheduling", err, ErrPermission)
	}
	return Policy(attr.Policy), int(attr.Priority), nil
}

// SetAffinity pins the calling thread to a single CPU.
func SetAffinity(cpu int) error {
	const op = "set affinity"
	if cpu < 0 || cpu >= maxCPUs {
		return invalidArgument(op, "cpu %d out of range", cpu)
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errnoError(op, err, ErrInvalidArgument)
	}
	return nil
}

// maxCPUs is the kernel's CPU_SETSIZE.
const maxCPUs = 1024

// threadID identifies the calling OS thread.
func threadID() int {
	return unix.Gettid()
}

func mapRegion(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func releaseRegion(data []byte, locked bool) error {
	if data == nil {
		return nil
	}
	var firstError error
	if locked {
		if err := unix.Munlock(data); err != nil {
			firstError = errnoError("munlock", err, ErrPermission)
		}
	}
	if err := unix.Munmap(data); err != nil && firstError == nil {
		firstError = errnoError("munmap", err, ErrInvalidArgument)
	}
	return firstError
}

// errnoError classifies a syscall failure. fallback is used for errnos
// that do not map onto a kind directly.
func errnoError(op string, err error, fallback error) *Error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return newError(op, fallback, err)
	}
	switch errno {
	case unix.EPERM, unix.EACCES:
		return newError(op, ErrPermission, err)
	case unix.ENOMEM, unix.EAGAIN:
		return newError(op, ErrResourceExhausted, err)
	case unix.EINVAL, unix.ESRCH:
		return newError(op, ErrInvalidArgument, err)
	default:
		return newError(op, fallback, err)
	}
}
