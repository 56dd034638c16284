// Package rtargs turns the rttest command line and session files into an
// rttest.Config plus the settings of the rttest binary.
//
// The short flags are the classic rttest command line:
//
//	-i  iterations                    (1000)
//	-u  update period, ns/us/ms/s     (1ms, bare number = us)
//	-t  thread priority               (80)
//	-s  scheduling policy             (rr)
//	-m  memory size, b/kb/mb/gb       (bare number = mb; enables memory locking)
//	-f  results file
//	-r  repetitions                   (1)
//
// A --config YAML file is applied first and explicit flags override it.
package rtargs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/alexshd/rttest"
)

// ErrHelp is returned by Parse when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

// Options is everything the rttest binary needs to run.
type Options struct {
	Config rttest.Config

	Threads    int           // Measured threads, including the main one
	CPU        int           // First CPU to pin to; thread i uses CPU+i. -1 disables pinning
	Work       time.Duration // Busy work per iteration
	PoolSize   int           // Bytes of locked working memory per thread, 0 for none
	LogLevel   slog.Level
	ConfigFile string
}

// Defaults returns the options used when nothing is specified.
func Defaults() Options {
	return Options{
		Config:   rttest.DefaultConfig(),
		Threads:  1,
		CPU:      -1,
		LogLevel: slog.LevelInfo,
	}
}

// Validate checks the options, including the embedded Config.
func (o Options) Validate() error {
	switch {
	case o.Threads < 1:
		return invalid(fmt.Errorf("threads must be at least 1, got %d", o.Threads))
	case o.CPU < -1:
		return invalid(fmt.Errorf("cpu must be -1 or a CPU index, got %d", o.CPU))
	case o.Work < 0:
		return invalid(fmt.Errorf("work must not be negative, got %s", o.Work))
	case o.PoolSize < 0:
		return invalid(fmt.Errorf("pool size must not be negative, got %d", o.PoolSize))
	case o.Work >= o.Config.UpdatePeriod:
		return invalid(fmt.Errorf("work %s does not fit in update period %s", o.Work, o.Config.UpdatePeriod))
	}
	return o.Config.Validate()
}

// flagValues holds the raw flag destinations. Only flags the user set are
// copied into Options, so a session file is not clobbered by defaults.
type flagValues struct {
	iterations uint
	period     periodValue
	priority   int
	policy     policyValue
	memory     sizeValue
	filename   string
	repeat     uint
	threads    int
	cpu        int
	keepGC     bool
	work       periodValue
	poolSize   sizeValue
	logLevel   string
	configFile string
}

func newFlagSet(fl *flagValues) *pflag.FlagSet {
	d := Defaults()
	fl.period = periodValue(d.Config.UpdatePeriod)
	fl.policy = policyValue(d.Config.SchedPolicy)

	fs := pflag.NewFlagSet("rttest", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.UintVarP(&fl.iterations, "iterations", "i", d.Config.Iterations, "wakeups per repetition")
	fs.VarP(&fl.period, "update-period", "u", "interval between wakeups (ns, us, ms, s; bare number is us)")
	fs.IntVarP(&fl.priority, "thread-priority", "t", d.Config.SchedPriority, "scheduling priority")
	fs.VarP(&fl.policy, "sched-policy", "s", "scheduling policy (fifo, rr, other, batch, idle)")
	fs.VarP(&fl.memory, "memory-size", "m", "lock memory and prefault this much stack (b, kb, mb, gb; bare number is mb)")
	fs.StringVarP(&fl.filename, "filename", "f", "", "write samples to this target (.txt, .zst, .lz4, .cbor, .prom, or - for stdout)")
	fs.UintVarP(&fl.repeat, "repeat", "r", d.Config.Repetitions, "replay the schedule this many times")
	fs.IntVar(&fl.threads, "threads", d.Threads, "measured threads")
	fs.IntVar(&fl.cpu, "cpu", d.CPU, "pin thread i to cpu+i (-1 disables pinning)")
	fs.BoolVar(&fl.keepGC, "keep-gc", false, "leave the Go collector running while spinning")
	fs.Var(&fl.work, "work", "busy work per iteration (same units as --update-period)")
	fs.Var(&fl.poolSize, "pool-size", "locked working memory per thread (same units as --memory-size)")
	fs.StringVar(&fl.logLevel, "log-level", d.LogLevel.String(), "debug, info, warn or error")
	fs.StringVar(&fl.configFile, "config", "", "YAML session file; flags override its values")
	fs.BoolP("help", "h", false, "show help")
	return fs
}

// apply copies one set flag into opts.
func (fl *flagValues) apply(name string, opts *Options) error {
	switch name {
	case "iterations":
		opts.Config.Iterations = fl.iterations
	case "update-period":
		opts.Config.UpdatePeriod = time.Duration(fl.period)
	case "thread-priority":
		opts.Config.SchedPriority = fl.priority
	case "sched-policy":
		opts.Config.SchedPolicy = rttest.Policy(fl.policy)
	case "memory-size":
		opts.Config.LockMemory = true
		opts.Config.StackSize = int(fl.memory)
	case "filename":
		opts.Config.Output = fl.filename
	case "repeat":
		opts.Config.Repetitions = fl.repeat
	case "threads":
		opts.Threads = fl.threads
	case "cpu":
		opts.CPU = fl.cpu
	case "keep-gc":
		opts.Config.DisableGC = !fl.keepGC
	case "work":
		opts.Work = time.Duration(fl.work)
	case "pool-size":
		opts.PoolSize = int(fl.poolSize)
	case "log-level":
		if err := opts.LogLevel.UnmarshalText([]byte(fl.logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q", fl.logLevel)
		}
	case "config":
		opts.ConfigFile = fl.configFile
	}
	return nil
}

// Parse parses command-line arguments, without the program name.
func Parse(args []string) (Options, error) {
	var fl flagValues
	fs := newFlagSet(&fl)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Options{}, ErrHelp
		}
		return Options{}, invalid(err)
	}
	if help, _ := fs.GetBool("help"); help {
		return Options{}, ErrHelp
	}
	if fs.NArg() > 0 {
		return Options{}, invalid(fmt.Errorf("unexpected argument: %s", fs.Arg(0)))
	}

	opts := Defaults()
	if fl.configFile != "" {
		file, err := LoadFile(fl.configFile)
		if err != nil {
			return Options{}, err
		}
		if err := file.Apply(&opts); err != nil {
			return Options{}, err
		}
	}

	var applyErr error
	fs.Visit(func(f *pflag.Flag) {
		if err := fl.apply(f.Name, &opts); err != nil && applyErr == nil {
			applyErr = err
		}
	})
	if applyErr != nil {
		return Options{}, invalid(applyErr)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// PrintUsage writes the flag summary to w.
func PrintUsage(w io.Writer) {
	var fl flagValues
	fs := newFlagSet(&fl)
	fmt.Fprintf(w, `rttest - measure wakeup latency of a periodic real-time loop.

Usage:
  rttest [flags]

Examples:
  # 10000 wakeups at 500us with SCHED_FIFO priority 90 and 64 MiB locked
  rttest -i 10000 -u 500us -s fifo -t 90 -m 64mb -f latency.txt

  # Two pinned threads, compressed samples
  rttest --threads 2 --cpu 2 -f latency.txt.zst

Flags:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func invalid(err error) error {
	return &rttest.Error{Op: "parse arguments", Kind: rttest.ErrInvalidArgument, Err: err}
}
