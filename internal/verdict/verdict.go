// Package verdict aggregates rule results into a plugin status line.
package verdict

import (
	"strings"
)

// Code is a plugin exit status.
type Code int

const (
	OK       Code = 0
	Warning  Code = 1
	Critical Code = 2
	Unknown  Code = 3
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Verdict collects failure text per tier, status narration and perf data.
// The zero value is an empty OK verdict.
type Verdict struct {
	status   string
	warning  string
	critical string
	unknown  string
	perfdata []string
}

func (v *Verdict) AppendWarning(failure, status string) {
	v.warning += failure
	v.status += status
}

func (v *Verdict) AppendCritical(failure, status string) {
	v.critical += failure
	v.status += status
}

func (v *Verdict) AppendUnknown(failure, status string) {
	v.unknown += failure
	v.status += status
}

// AppendMetrics adds performance data plus the warning and critical text
// produced by metric ranges.
func (v *Verdict) AppendMetrics(perfdata, warning, critical string) {
	if perfdata = strings.TrimSpace(perfdata); perfdata != "" {
		v.perfdata = append(v.perfdata, perfdata)
	}
	v.AppendWarning(warning, "")
	v.AppendCritical(critical, "")
}

// Code returns the most severe tier with failure text:
// UNKNOWN, then CRITICAL, then WARNING, else OK.
func (v *Verdict) Code() Code {
	switch {
	case v.unknown != "":
		return Unknown
	case v.critical != "":
		return Critical
	case v.warning != "":
		return Warning
	default:
		return OK
	}
}

// Message renders "LABEL:<status><critical><warning><unknown>[|perfdata]".
func (v *Verdict) Message() string {
	var b strings.Builder
	b.WriteString(v.Code().String())
	b.WriteByte(':')
	b.WriteString(v.status)
	b.WriteString(v.critical)
	b.WriteString(v.warning)
	b.WriteString(v.unknown)
	if perf := v.Perfdata(); perf != "" {
		b.WriteByte('|')
		b.WriteString(perf)
	}
	return b.String()
}

func (v *Verdict) Status() string { return v.status }

func (v *Verdict) WarningText() string { return v.warning }

func (v *Verdict) CriticalText() string { return v.critical }

func (v *Verdict) UnknownText() string { return v.unknown }

// Perfdata is the space separated performance data.
func (v *Verdict) Perfdata() string { return strings.Join(v.perfdata, " ") }
