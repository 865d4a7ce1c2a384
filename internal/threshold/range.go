// Package threshold parses and evaluates Nagios plugin ranges.
//
//	10      0 <= v <= 10
//	10:     v >= 10
//	~:10    v <= 10
//	10:20   10 <= v <= 20
//	@10:20  alert when 10 <= v <= 20
//
// A range describes the band a value must stay in; with a leading "@" the
// band is where the value must not be.
package threshold

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRange reports a range expression that cannot be parsed.
var ErrInvalidRange = errors.New("invalid range")

// Range is a parsed threshold expression. Infinite bounds are math.Inf.
type Range struct {
	Invert bool
	Start  float64
	End    float64

	raw       string
	startText string
	endText   string
}

// Parse reads a range in the [@]start:end notation.
func Parse(text string) (Range, error) {
	s := strings.TrimSpace(text)
	r := Range{raw: s}

	if strings.HasPrefix(s, "@") {
		r.Invert = true
		s = s[1:]
	}
	if s == "" {
		return Range{}, fmt.Errorf("%w %q: empty", ErrInvalidRange, text)
	}

	startText, endText, hasColon := strings.Cut(s, ":")
	if !hasColon {
		startText, endText = "0", s
	}
	if strings.Contains(endText, ":") {
		return Range{}, fmt.Errorf("%w %q: too many ':'", ErrInvalidRange, text)
	}

	switch startText {
	case "~":
		r.Start = math.Inf(-1)
	case "":
		startText = "0"
	default:
		v, err := parseBound(startText)
		if err != nil {
			return Range{}, fmt.Errorf("%w %q: start: %v", ErrInvalidRange, text, err)
		}
		r.Start = v
	}

	if endText == "" {
		r.End = math.Inf(1)
	} else {
		v, err := parseBound(endText)
		if err != nil {
			return Range{}, fmt.Errorf("%w %q: end: %v", ErrInvalidRange, text, err)
		}
		r.End = v
	}

	if r.Start > r.End {
		return Range{}, fmt.Errorf("%w %q: start is greater than end", ErrInvalidRange, text)
	}

	r.startText = startText
	r.endText = endText
	return r, nil
}

// MustParse is Parse for ranges known to be valid; it panics otherwise.
func MustParse(text string) Range {
	r, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return r
}

func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func (r Range) String() string { return r.raw }

// StartText is the lower bound as written ("0" for the "A" and ":A" forms).
func (r Range) StartText() string { return r.startText }

// EndText is the upper bound as written, empty when unbounded.
func (r Range) EndText() string { return r.endText }

func (r Range) LowerUnbounded() bool { return math.IsInf(r.Start, -1) }

func (r Range) UpperUnbounded() bool { return math.IsInf(r.End, 1) }

// Contains reports whether v passes the range.
func (r Range) Contains(v float64) bool {
	return r.Check(v) == Pass
}

// Outcome classifies an evaluation so callers can say which bound was crossed.
type Outcome int

const (
	Pass Outcome = iota
	// Above: v > end of a "~:end" range.
	Above
	// Below: v < start of a "start:" range.
	Below
	// Outside: v left a band bounded on both sides.
	Outside
	// AtOrBelow: v <= end of an inverted "@~:end" range.
	AtOrBelow
	// AtOrAbove: v >= start of an inverted "@start:" range.
	AtOrAbove
	// Inside: v fell in an inverted band bounded on both sides, or in "@~:".
	Inside
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Above:
		return "above"
	case Below:
		return "below"
	case Outside:
		return "outside"
	case AtOrBelow:
		return "at_or_below"
	case AtOrAbove:
		return "at_or_above"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

// Check evaluates v and reports how it failed, if it did.
func (r Range) Check(v float64) Outcome {
	inside := v >= r.Start && v <= r.End

	if !r.Invert {
		if inside {
			return Pass
		}
		switch {
		case r.LowerUnbounded():
			return Above
		case r.UpperUnbounded():
			return Below
		default:
			return Outside
		}
	}

	if !inside {
		return Pass
	}
	switch {
	case r.LowerUnbounded() && r.UpperUnbounded():
		return Inside
	case r.LowerUnbounded():
		return AtOrBelow
	case r.UpperUnbounded():
		return AtOrAbove
	default:
		return Inside
	}
}
