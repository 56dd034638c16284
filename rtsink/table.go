package rtsink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexshd/rttest"
)

// TableHeader is the first line of a sample table.
const TableHeader = "iteration timestamp latency minor_pagefaults major_pagefaults"

// WriteTable writes samples in the plotting-script format.
func WriteTable(w io.Writer, samples []rttest.Sample) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(TableHeader + "\n"); err != nil {
		return err
	}

	var line []byte
	var first int64
	if len(samples) > 0 {
		first = samples[0].Scheduled
	}
	for k, s := range samples {
		line = line[:0]
		line = strconv.AppendInt(line, int64(k), 10)
		line = append(line, ' ')
		line = strconv.AppendInt(line, s.Scheduled-first, 10)
		line = append(line, ' ')
		line = strconv.AppendInt(line, int64(s.Latency), 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, s.MinorFaults, 10)
		line = append(line, ' ')
		line = strconv.AppendUint(line, s.MajorFaults, 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// tableSink writes the sample table to a file, optionally compressed.
type tableSink struct {
	path        string
	compression compression
}

func (s *tableSink) Write(name string, samples []rttest.Sample, res rttest.Results) (err error) {
	f, err := createFile(s.path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing results file: %w", closeErr)
		}
	}()

	w, err := s.compression.wrap(f)
	if err != nil {
		return err
	}
	if err := WriteTable(w, samples); err != nil {
		w.Close()
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", s.path, err)
	}
	return nil
}

// Row is one parsed line of a sample table.
type Row struct {
	Iteration   int
	Timestamp   int64 // ns since the first scheduled wakeup
	Latency     time.Duration
	MinorFaults uint64
	MajorFaults uint64
}

// ReadTable reads a table file written by a sink from Open, decompressing
// according to the extension.
func ReadTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()

	c := compressNone
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		c = compressZstd
	case ".lz4":
		c = compressLZ4
	}
	r, done, err := c.decompress(f)
	if err != nil {
		return nil, err
	}
	defer done()

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: empty table", path)
	}
	if header := scanner.Text(); header != TableHeader {
		return nil, fmt.Errorf("%s: unexpected header %q", path, header)
	}

	var rows []Row
	for line := 2; scanner.Scan(); line++ {
		row, err := parseRow(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func parseRow(line string) (Row, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Row{}, fmt.Errorf("expected 5 columns, got %d", len(fields))
	}
	var (
		row  Row
		errs [5]error
		lat  int64
	)
	row.Iteration, errs[0] = strconv.Atoi(fields[0])
	row.Timestamp, errs[1] = strconv.ParseInt(fields[1], 10, 64)
	lat, errs[2] = strconv.ParseInt(fields[2], 10, 64)
	row.MinorFaults, errs[3] = strconv.ParseUint(fields[3], 10, 64)
	row.MajorFaults, errs[4] = strconv.ParseUint(fields[4], 10, 64)
	if err := errors.Join(errs[:]...); err != nil {
		return Row{}, err
	}
	row.Latency = time.Duration(lat)
	return row, nil
}
