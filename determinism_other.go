//go:build !linux

package rttest

// Memory locking, scheduling classes and affinity are Linux-only. The
// functions below keep the API portable and report ErrUnsupported.

func LockMemory() error {
	return newError("lock memory", ErrUnsupported, nil)
}

func UnlockMemory() error {
	return newError("unlock memory", ErrUnsupported, nil)
}

// LockAndPrefaultDynamic falls back to a touched heap slice that is not
// locked into RAM.
func LockAndPrefaultDynamic(size int) (*Pool, error) {
	if size <= 0 {
		return nil, invalidArgument("lock and prefault dynamic", "pool size must be positive, got %d", size)
	}
	data := make([]byte, size)
	touchPages(data)
	return &Pool{data: data}, nil
}

// PriorityRange uses the Linux bounds so configurations validate the same
// way everywhere.
func PriorityRange(policy Policy) (lo, hi int, err error) {
	switch policy {
	case PolicyFIFO, PolicyRR:
		return 1, 99, nil
	case PolicyOther, PolicyBatch, PolicyIdle:
		return 0, 0, nil
	default:
		return 0, 0, invalidArgument("priority range", "unknown policy %d", int(policy))
	}
}

func SetSchedPriority(priority int, policy Policy) error {
	const op = "set sched priority"
	if err := checkPriority(op, priority, policy); err != nil {
		return err
	}
	return newError(op, ErrUnsupported, nil)
}

func CurrentScheduling() (Policy, int, error) {
	return 0, 0, newError("current scheduling", ErrUnsupported, nil)
}

func SetAffinity(cpu int) error {
	return newError("set affinity", ErrUnsupported, nil)
}

func threadID() int {
	return 0
}

func mapRegion(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func releaseRegion(data []byte, locked bool) error {
	return nil
}
