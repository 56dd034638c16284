// Command rttest measures wakeup latency of periodic real-time threads.
//
// Usage:
//
//	rttest [-i iterations] [-u period] [-t priority] [-s policy]
//	       [-m memory] [-f file] [-r repeat] [--threads n] [--cpu first]
//
// Each measured thread prints its statistics to stdout. With -f the
// samples are also written to that target, one file per thread.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/alexshd/rttest"
	"github.com/alexshd/rttest/rtargs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(rttest.ExitCode(err))
	}
}

func run(args []string) error {
	opts, err := rtargs.Parse(args)
	if errors.Is(err, rtargs.ErrHelp) {
		rtargs.PrintUsage(os.Stdout)
		return nil
	}
	if err != nil {
		return err
	}

	logger := newLogger(opts.LogLevel)
	logger.Debug("options parsed",
		"iterations", opts.Config.Iterations,
		"period", opts.Config.UpdatePeriod,
		"policy", opts.Config.SchedPolicy,
		"priority", opts.Config.SchedPriority,
		"repetitions", opts.Config.Repetitions,
		"threads", opts.Threads,
	)

	runs, err := measure(opts, logger)
	if err != nil {
		return err
	}
	return report(os.Stdout, opts, runs)
}

// newLogger writes colored text to a terminal and JSON everywhere else.
func newLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
