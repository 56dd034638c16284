package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexshd/rttest"
	"github.com/alexshd/rttest/rtargs"
	"github.com/alexshd/rttest/rtsink"
)

// threadRun is the outcome of one measured thread, copied out of the
// session before it is closed.
type threadRun struct {
	index   int
	samples []rttest.Sample
	results rttest.Results
}

// workload is the per-iteration callback state. It stays on the measured
// goroutine so the loop does not allocate.
type workload struct {
	work time.Duration
	pool []byte
	next int
}

// step burns work of CPU time and dirties one byte of the pool.
func step(w *workload) int {
	if len(w.pool) > 0 {
		w.pool[w.next] ^= 1
		w.next = (w.next + 4096) % len(w.pool)
	}
	if w.work <= 0 {
		return 0
	}
	n := 0
	for start := time.Now(); time.Since(start) < w.work; n++ {
	}
	return n
}

// measure runs opts.Threads sessions in lockstep: every peer is created and
// prepared before any thread starts spinning.
func measure(opts rtargs.Options, logger *slog.Logger) ([]threadRun, error) {
	cfg := opts.Config
	// One suspension covers every thread.
	if cfg.DisableGC {
		cfg.DisableGC = false
		restore := rttest.SuspendGC()
		defer restore()
	}

	primary, err := rttest.NewSession(cfg, rttest.WithLogger(threadLogger(logger, opts, 0)))
	if err != nil {
		return nil, err
	}
	defer primary.Close()

	primaryWork, err := prepare(primary, opts, 0, logger)
	if err != nil {
		return nil, err
	}

	runs := make([]threadRun, opts.Threads)
	start := make(chan struct{})
	var (
		ready  sync.WaitGroup
		failed atomic.Bool
	)
	g, ctx := errgroup.WithContext(context.Background())

	for i := 1; i < opts.Threads; i++ {
		ready.Add(1)
		g.Go(func() (err error) {
			var once sync.Once
			signal := func() { once.Do(ready.Done) }
			defer func() {
				if err != nil {
					failed.Store(true)
				}
				signal()
			}()

			peer, err := primary.NewPeer(rttest.WithLogger(threadLogger(logger, opts, i)))
			if err != nil {
				return fmt.Errorf("thread %d: %w", i, err)
			}
			defer peer.Close()

			work, err := prepare(peer, opts, i, logger)
			if err != nil {
				return fmt.Errorf("thread %d: %w", i, err)
			}
			signal()

			select {
			case <-start:
			case <-ctx.Done():
				return ctx.Err()
			}
			run, err := spin(peer, i, work)
			if err != nil {
				return fmt.Errorf("thread %d: %w", i, err)
			}
			runs[i] = run
			return nil
		})
	}

	ready.Wait()
	if failed.Load() {
		return nil, g.Wait()
	}
	close(start)

	run, spinErr := spin(primary, 0, primaryWork)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if spinErr != nil {
		return nil, spinErr
	}
	runs[0] = run
	return runs, nil
}

// prepare applies the determinism settings to a session on its own thread.
func prepare(s *rttest.Session, opts rtargs.Options, index int, logger *slog.Logger) (*workload, error) {
	if opts.CPU >= 0 {
		if err := rttest.SetAffinity(opts.CPU + index); err != nil {
			return nil, err
		}
	}

	if err := s.SetThreadDefaultPriority(); err != nil {
		if !errors.Is(err, rttest.ErrPermission) && !errors.Is(err, rttest.ErrUnsupported) {
			return nil, err
		}
		logger.Warn("running without real-time priority",
			"thread", index,
			"policy", opts.Config.SchedPolicy,
			"priority", opts.Config.SchedPriority,
			"error", err,
		)
	}

	if err := s.PrefaultStack(); err != nil {
		return nil, err
	}

	w := &workload{work: opts.Work}
	if opts.PoolSize > 0 {
		pool, err := s.LockAndPrefaultDynamic(opts.PoolSize)
		if err != nil {
			return nil, err
		}
		w.pool = pool.Bytes()
	}
	return w, nil
}

func spin(s *rttest.Session, index int, w *workload) (threadRun, error) {
	if err := rttest.Spin(s, step, w); err != nil {
		return threadRun{}, err
	}
	res, err := s.Statistics()
	if err != nil {
		return threadRun{}, err
	}
	return threadRun{
		index:   index,
		samples: slices.Clone(s.Samples()),
		results: res,
	}, nil
}

func threadLogger(logger *slog.Logger, opts rtargs.Options, index int) *slog.Logger {
	if opts.Threads == 1 {
		return logger
	}
	return logger.With("thread", index)
}

// report prints every thread's statistics to w and writes the sample
// targets requested with -f.
func report(w io.Writer, opts rtargs.Options, runs []threadRun) error {
	target := opts.Config.Output
	for _, run := range runs {
		name := threadName(opts, run.index)
		if err := rtsink.WriteReport(w, name, run.results); err != nil {
			return err
		}
		if target == "" || target == rtsink.Stdout {
			continue
		}
		sink, err := rtsink.Open(rtsink.ThreadTarget(target, run.index))
		if err != nil {
			return err
		}
		if err := sink.Write(name, run.samples, run.results); err != nil {
			return err
		}
	}
	return nil
}

// threadName labels a thread's report with its output target when there
// is one.
func threadName(opts rtargs.Options, index int) string {
	target := opts.Config.Output
	if target != "" && target != rtsink.Stdout {
		return rtsink.ThreadTarget(target, index)
	}
	if opts.Threads > 1 {
		return fmt.Sprintf("thread %d", index)
	}
	return ""
}
