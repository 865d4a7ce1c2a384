// Package units renders numeric values for status messages.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode selects how values are displayed. It never affects comparisons.
type Mode int

const (
	Raw Mode = iota
	Size
	SI
)

type unit struct {
	factor int64
	suffix string
}

var (
	sizeUnits = []unit{
		{1 << 50, " PiB"},
		{1 << 40, " TiB"},
		{1 << 30, " GiB"},
		{1 << 20, " MiB"},
		{1 << 10, " KiB"},
		{1, " bytes"},
	}
	siUnits = []unit{
		{1e15, "P"},
		{1e12, "T"},
		{1e9, "G"},
		{1e6, "M"},
		{1e3, "K"},
		{1, "B"},
	}
)

// ParseMode accepts "raw" (or "str", or empty), "size" and "SI" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "str":
		return Raw, nil
	case "size":
		return Size, nil
	case "si":
		return SI, nil
	default:
		return Raw, fmt.Errorf("unknown field type %q (want str, size or SI)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case Size:
		return "size"
	case SI:
		return "SI"
	default:
		return "raw"
	}
}

// Format renders value in the mode. The value is truncated to an integer and
// divided by the largest unit it reaches; values that do not parse as numbers
// are returned unchanged.
func (m Mode) Format(value string) string {
	var table []unit
	switch m {
	case Size:
		table = sizeUnits
	case SI:
		table = siUnits
	default:
		return value
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return value
	}
	n := int64(math.Trunc(f))

	u := table[len(table)-1]
	for _, candidate := range table {
		if n >= candidate.factor {
			u = candidate
			break
		}
	}
	return strconv.FormatInt(n/u.factor, 10) + u.suffix
}
