package rtargs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexshd/rttest"
)

// periodUnits are tried in order, so two-letter suffixes come before "s".
var periodUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ns", time.Nanosecond},
	{"us", time.Microsecond},
	{"µs", time.Microsecond},
	{"ms", time.Millisecond},
	{"s", time.Second},
}

// ParsePeriod parses an update period such as "500us", "1ms" or "2s".
// A bare number is in microseconds.
func ParsePeriod(s string) (time.Duration, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	unit := time.Microsecond
	for _, u := range periodUnits {
		if strings.HasSuffix(in, u.suffix) {
			in = strings.TrimSpace(strings.TrimSuffix(in, u.suffix))
			unit = u.unit
			break
		}
	}
	n, err := strconv.ParseInt(in, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: expected an integer with optional ns, us, ms or s suffix", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid period %q: must be positive", s)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid period %q: out of range", s)
	}
	return time.Duration(n) * unit, nil
}

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"kb", 10},
	{"mb", 20},
	{"gb", 30},
	{"b", 0},
}

// ParseSize parses a byte size such as "512kb" or "64mb". A bare number is
// in megabytes.
func ParseSize(s string) (int, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	shift := uint(20)
	for _, u := range sizeUnits {
		if strings.HasSuffix(in, u.suffix) {
			in = strings.TrimSpace(strings.TrimSuffix(in, u.suffix))
			shift = u.shift
			break
		}
	}
	n, err := strconv.ParseInt(in, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: expected an integer with optional b, kb, mb or gb suffix", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: must not be negative", s)
	}
	if n > int64(maxInt>>shift) {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int(n) << shift, nil
}

const maxInt = int(^uint(0) >> 1)

// periodValue is a pflag.Value and yaml.Unmarshaler for ParsePeriod.
type periodValue time.Duration

func (p *periodValue) String() string { return time.Duration(*p).String() }
func (p *periodValue) Type() string   { return "period" }

func (p *periodValue) Set(s string) error {
	d, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = periodValue(d)
	return nil
}

func (p *periodValue) UnmarshalYAML(node *yaml.Node) error {
	return p.Set(node.Value)
}

// sizeValue is a pflag.Value and yaml.Unmarshaler for ParseSize.
type sizeValue int

func (v *sizeValue) String() string { return strconv.Itoa(int(*v)) + "b" }
func (v *sizeValue) Type() string   { return "size" }

func (v *sizeValue) Set(s string) error {
	n, err := ParseSize(s)
	if err != nil {
		return err
	}
	*v = sizeValue(n)
	return nil
}

func (v *sizeValue) UnmarshalYAML(node *yaml.Node) error {
	return v.Set(node.Value)
}

// policyValue is a pflag.Value and yaml.Unmarshaler for rttest.ParsePolicy.
type policyValue rttest.Policy

func (p *policyValue) String() string { return rttest.Policy(*p).String() }
func (p *policyValue) Type() string   { return "policy" }

func (p *policyValue) Set(s string) error {
	policy, err := rttest.ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = policyValue(policy)
	return nil
}

func (p *policyValue) UnmarshalYAML(node *yaml.Node) error {
	return p.Set(node.Value)
}
