package rtargs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexshd/rttest"
)

// File is a YAML session file. Keys mirror the long flag names; absent
// keys leave the current value alone.
//
//	iterations: 10000
//	update_period: 500us
//	sched_policy: fifo
//	thread_priority: 90
//	memory_size: 64mb
//	filename: latency.txt.zst
//	repeat: 3
//	threads: 2
//	cpu: 2
//	keep_gc: false
//	work: 50us
//	pool_size: 4mb
//	log_level: debug
type File struct {
	Iterations     *uint        `yaml:"iterations"`
	UpdatePeriod   *periodValue `yaml:"update_period"`
	SchedPolicy    *policyValue `yaml:"sched_policy"`
	ThreadPriority *int         `yaml:"thread_priority"`
	MemorySize     *sizeValue   `yaml:"memory_size"`
	Filename       *string      `yaml:"filename"`
	Repeat         *uint        `yaml:"repeat"`
	Threads        *int         `yaml:"threads"`
	CPU            *int         `yaml:"cpu"`
	KeepGC         *bool        `yaml:"keep_gc"`
	Work           *periodValue `yaml:"work"`
	PoolSize       *sizeValue   `yaml:"pool_size"`
	LogLevel       *string      `yaml:"log_level"`
}

// LoadFile reads and decodes a session file. Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(fmt.Errorf("reading session file: %w", err))
	}
	file, err := decodeFile(bytes.NewReader(data))
	if err != nil {
		return nil, invalid(fmt.Errorf("parsing session file %s: %w", path, err))
	}
	return file, nil
}

func decodeFile(r io.Reader) (*File, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &file, nil
}

// Apply copies the keys present in the file into opts.
func (f *File) Apply(opts *Options) error {
	if f.Iterations != nil {
		opts.Config.Iterations = *f.Iterations
	}
	if f.UpdatePeriod != nil {
		opts.Config.UpdatePeriod = time.Duration(*f.UpdatePeriod)
	}
	if f.SchedPolicy != nil {
		opts.Config.SchedPolicy = rttest.Policy(*f.SchedPolicy)
	}
	if f.ThreadPriority != nil {
		opts.Config.SchedPriority = *f.ThreadPriority
	}
	if f.MemorySize != nil {
		opts.Config.LockMemory = true
		opts.Config.StackSize = int(*f.MemorySize)
	}
	if f.Filename != nil {
		opts.Config.Output = *f.Filename
	}
	if f.Repeat != nil {
		opts.Config.Repetitions = *f.Repeat
	}
	if f.Threads != nil {
		opts.Threads = *f.Threads
	}
	if f.CPU != nil {
		opts.CPU = *f.CPU
	}
	if f.KeepGC != nil {
		opts.Config.DisableGC = !*f.KeepGC
	}
	if f.Work != nil {
		opts.Work = time.Duration(*f.Work)
	}
	if f.PoolSize != nil {
		opts.PoolSize = int(*f.PoolSize)
	}
	if f.LogLevel != nil {
		if err := opts.LogLevel.UnmarshalText([]byte(*f.LogLevel)); err != nil {
			return invalid(fmt.Errorf("invalid log_level %q", *f.LogLevel))
		}
	}
	return nil
}
