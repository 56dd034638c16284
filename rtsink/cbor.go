package rtsink

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/alexshd/rttest"
)

// Record is the CBOR document written for a session.
type Record struct {
	Name    string          `cbor:"name"`
	Results rttest.Results  `cbor:"results"`
	Samples []rttest.Sample `cbor:"samples"`
}

var encMode cbor.EncMode

func init() {
	var err error
	// Deterministic encoding so identical runs produce identical bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("rtsink: CBOR encoder initialization failed: " + err.Error())
	}
}

// MarshalRecord encodes a record.
func MarshalRecord(r Record) ([]byte, error) {
	return encMode.Marshal(r)
}

// UnmarshalRecord decodes a record written by a .cbor sink.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding rttest record: %w", err)
	}
	return r, nil
}

type cborSink struct {
	path string
}

func (s *cborSink) Write(name string, samples []rttest.Sample, res rttest.Results) error {
	data, err := MarshalRecord(Record{Name: name, Results: res, Samples: samples})
	if err != nil {
		return fmt.Errorf("encoding rttest record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
