package rttest

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy is a Linux scheduling class. Values match the kernel's SCHED_*
// constants so they can be passed straight to sched_setattr.
type Policy int

const (
	PolicyOther Policy = 0
	PolicyFIFO  Policy = 1
	PolicyRR    Policy = 2
	PolicyBatch Policy = 3
	PolicyIdle  Policy = 5
)

// Defaults applied by DefaultConfig and SetDefaultPriority.
const (
	DefaultIterations  = 1000
	DefaultPeriod      = time.Millisecond
	DefaultPolicy      = PolicyRR
	DefaultPriority    = 80
	DefaultStackSize   = 1 << 20
	DefaultRepetitions = 1
)

func (p Policy) String() string {
	switch p {
	case PolicyOther:
		return "other"
	case PolicyFIFO:
		return "fifo"
	case PolicyRR:
		return "rr"
	case PolicyBatch:
		return "batch"
	case PolicyIdle:
		return "idle"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// RealTime reports whether the policy is one of the fixed-priority classes.
func (p Policy) RealTime() bool {
	return p == PolicyFIFO || p == PolicyRR
}

// ParsePolicy parses the names accepted on the command line.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo":
		return PolicyFIFO, nil
	case "rr":
		return PolicyRR, nil
	case "other", "normal":
		return PolicyOther, nil
	case "batch":
		return PolicyBatch, nil
	case "idle":
		return PolicyIdle, nil
	default:
		return 0, invalidArgument("parse policy", "unknown scheduling policy %q (valid: fifo, rr, other, batch, idle)", name)
	}
}

// Config describes one measurement session. It is copied into the session
// at initialization and never mutated afterwards.
type Config struct {
	Iterations    uint          // Wakeups per repetition
	UpdatePeriod  time.Duration // Interval between scheduled wakeups
	SchedPolicy   Policy        // Scheduling class applied by SetThreadDefaultPriority
	SchedPriority int           // Priority within SchedPolicy
	LockMemory    bool          // mlockall at session initialization
	StackSize     int           // Bytes touched by Session.PrefaultStack
	Repetitions   uint          // Times the schedule is replayed into the buffer
	Output        string        // Output target, opaque to the core
	DisableGC     bool          // Suspend the Go collector while spinning
}

// DefaultConfig returns the defaults of the rttest command line.
func DefaultConfig() Config {
	return Config{
		Iterations:    DefaultIterations,
		UpdatePeriod:  DefaultPeriod,
		SchedPolicy:   DefaultPolicy,
		SchedPriority: DefaultPriority,
		LockMemory:    false,
		StackSize:     DefaultStackSize,
		Repetitions:   DefaultRepetitions,
		DisableGC:     true,
	}
}

// Validate checks the configuration without touching process state.
func (c Config) Validate() error {
	const op = "validate config"
	if c.Iterations == 0 {
		return invalidArgument(op, "iterations must be positive")
	}
	if c.UpdatePeriod <= 0 {
		return invalidArgument(op, "update period must be positive, got %v", c.UpdatePeriod)
	}
	if c.Repetitions == 0 {
		return invalidArgument(op, "repetitions must be positive")
	}
	if c.StackSize < 0 {
		return invalidArgument(op, "stack size must not be negative, got %d", c.StackSize)
	}
	return checkPriority(op, c.SchedPriority, c.SchedPolicy)
}

// Capacity is the number of samples a session with this configuration
// holds. ok is false when the product overflows.
func (c Config) Capacity() (n int, ok bool) {
	if c.Repetitions != 0 && c.Iterations > uint(math.MaxInt)/c.Repetitions {
		return 0, false
	}
	return int(c.Iterations * c.Repetitions), true
}

func checkPriority(op string, priority int, policy Policy) error {
	lo, hi, err := PriorityRange(policy)
	if err != nil {
		return err
	}
	if priority < lo || priority > hi {
		return invalidArgument(op, "priority %d outside [%d, %d] for policy %s", priority, lo, hi, policy)
	}
	return nil
}
