package rtsink

import (
	"fmt"
	"io"
	"strings"

	"github.com/alexshd/rttest"
)

// WriteReport writes the human-readable statistics block. The
// "Key: value" lines keep the layout the jitter-averaging script parses;
// all times are nanoseconds.
func WriteReport(w io.Writer, name string, res rttest.Results) error {
	var b strings.Builder

	if name != "" {
		fmt.Fprintf(&b, "rttest statistics for %s:\n", name)
	} else {
		b.WriteString("rttest statistics:\n")
	}
	fmt.Fprintf(&b, "  - Minor pagefaults: %d\n", res.MinorPagefaults)
	fmt.Fprintf(&b, "  - Major pagefaults: %d\n", res.MajorPagefaults)
	b.WriteString("\n")

	b.WriteString("  Latency (time after deadline was missed):\n")
	fmt.Fprintf(&b, "    - Min: %d\n", int64(res.MinLatency))
	fmt.Fprintf(&b, "    - Max: %d\n", int64(res.MaxLatency))
	fmt.Fprintf(&b, "    - Mean: %.2f\n", res.MeanLatency)
	fmt.Fprintf(&b, "    - Standard deviation: %.2f\n", res.LatencyStddev)
	b.WriteString("\n")

	b.WriteString("  Jitter (change in latency between wakeups):\n")
	fmt.Fprintf(&b, "    - Min: %d\n", int64(res.MinJitter))
	fmt.Fprintf(&b, "    - Max: %d\n", int64(res.MaxJitter))
	fmt.Fprintf(&b, "    - Mean: %.2f\n", res.MeanJitter)
	fmt.Fprintf(&b, "    - Standard deviation: %.2f\n", res.JitterStddev)
	b.WriteString("\n")

	b.WriteString("  Tail:\n")
	fmt.Fprintf(&b, "    - P50: %d\n", int64(res.LatencyP50))
	fmt.Fprintf(&b, "    - P99: %d\n", int64(res.LatencyP99))
	fmt.Fprintf(&b, "    - P99.9: %d\n", int64(res.LatencyP999))
	fmt.Fprintf(&b, "    - Missed deadlines: %d of %d\n", res.MissedDeadlines, res.Samples)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// reportSink writes only the statistics block.
type reportSink struct {
	w io.Writer
}

func (s *reportSink) Write(name string, _ []rttest.Sample, res rttest.Results) error {
	return WriteReport(s.w, name, res)
}
