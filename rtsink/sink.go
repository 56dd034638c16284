// Package rtsink writes the results of an rttest session.
//
// The target string picks the format:
//
//	-            statistics report on stdout
//	*.zst        sample table, zstd-compressed
//	*.lz4        sample table, lz4 frame
//	*.cbor       name, results and samples as deterministic CBOR
//	*.prom       statistics as a Prometheus textfile-collector file
//	anything     plain sample table
//
// The sample table is the format read by the rttest plotting scripts:
// a header line, then one space-separated line per sample with the
// iteration, the scheduled time since the first wakeup, the latency in
// nanoseconds and the minor and major pagefaults of that iteration.
package rtsink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alexshd/rttest"
)

// Sink receives the output of one session.
type Sink interface {
	Write(name string, samples []rttest.Sample, res rttest.Results) error
}

// Stdout is the target that writes the report to standard output.
const Stdout = "-"

// ErrNoTarget is returned by Open for an empty target.
var ErrNoTarget = errors.New("rtsink: no output target")

// Open returns the sink for target. File targets are created or truncated
// on each Write.
func Open(target string) (Sink, error) {
	if target == "" {
		return nil, ErrNoTarget
	}
	if target == Stdout {
		return &reportSink{w: os.Stdout}, nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".zst":
		return &tableSink{path: target, compression: compressZstd}, nil
	case ".lz4":
		return &tableSink{path: target, compression: compressLZ4}, nil
	case ".cbor":
		return &cborSink{path: target}, nil
	case ".prom":
		return &promSink{path: target}, nil
	default:
		return &tableSink{path: target, compression: compressNone}, nil
	}
}

// ThreadTarget derives the target for the i-th measured thread. Thread 0
// keeps target; others get -i inserted before the extension, so
// "latency.txt.zst" becomes "latency.txt-1.zst". Stdout is shared.
func ThreadTarget(target string, thread int) string {
	if thread == 0 || target == "" || target == Stdout {
		return target
	}
	ext := filepath.Ext(target)
	return strings.TrimSuffix(target, ext) + "-" + strconv.Itoa(thread) + ext
}

// createFile opens path for writing, truncating any previous results.
func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating results file: %w", err)
	}
	return f, nil
}
