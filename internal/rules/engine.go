package rules

import (
	"fmt"
	"strings"

	"github.com/y0f/check-http-json/internal/jsonpath"
	"github.com/y0f/check-http-json/internal/jsontree"
	"github.com/y0f/check-http-json/internal/threshold"
	"github.com/y0f/check-http-json/internal/units"
	"github.com/y0f/check-http-json/internal/verdict"
)

// Engine holds compiled rules. It keeps no state between evaluations.
type Engine struct {
	mode      units.Mode
	separator string
	warning   tier
	critical  tier
	metrics   []metricRule
}

func (e *Engine) Separator() string { return e.separator }

func (e *Engine) Mode() units.Mode { return e.mode }

// Evaluate runs the warning tier, the critical tier and the metrics against
// doc and returns a fresh verdict.
func (e *Engine) Evaluate(doc *jsontree.Node) *verdict.Verdict {
	v := &verdict.Verdict{}
	v.AppendWarning(e.warning.check(doc, e.mode))
	v.AppendCritical(e.critical.check(doc, e.mode))
	v.AppendMetrics(collectMetrics(doc, e.mode, e.metrics))
	return v
}

// Metric is one resolved performance value.
type Metric struct {
	Label string
	Value string
	UOM   string
}

// Metrics returns the metric values present in doc, in rule order.
func (e *Engine) Metrics(doc *jsontree.Node) []Metric {
	var out []Metric
	for _, m := range e.metrics {
		if m.broken != nil {
			continue
		}
		r := m.path.Resolve(doc)
		if !r.Found() {
			continue
		}
		out = append(out, Metric{Label: m.alias, Value: r.Node().String(), UOM: m.uom})
	}
	return out
}

func (t tier) check(doc *jsontree.Node, mode units.Mode) (failure, success string) {
	f, s := checkThresholds(doc, mode, t.thresholds)
	failure, success = failure+f, success+s
	f, s = checkEquality(doc, mode, t.equality)
	failure, success = failure+f, success+s
	f, s = checkExistence(doc, t.existence)
	return failure + f, success + s
}

// CheckExistence fails for every key that does not resolve in doc.
func CheckExistence(doc *jsontree.Node, separator string, keys []string) (failure, success string, err error) {
	c := &compiler{separator: orDefault(separator)}
	compiled := c.existence("key_exists", keys)
	if err := c.err(); err != nil {
		return "", "", err
	}
	failure, success = checkExistence(doc, compiled)
	return failure, success, nil
}

// CheckEquality checks "key,value[:value...]" pairs.
func CheckEquality(doc *jsontree.Node, separator string, mode units.Mode, pairs []string) (failure, success string, err error) {
	c := &compiler{separator: orDefault(separator)}
	compiled := c.equality("key_equals", pairs)
	if err := c.err(); err != nil {
		return "", "", err
	}
	failure, success = checkEquality(doc, mode, compiled)
	return failure, success, nil
}

// CheckThresholds checks "key,range" pairs.
func CheckThresholds(doc *jsontree.Node, separator string, mode units.Mode, pairs []string) (failure, success string, err error) {
	c := &compiler{separator: orDefault(separator)}
	compiled := c.thresholds("threshold", pairs)
	if err := c.err(); err != nil {
		return "", "", err
	}
	failure, success = checkThresholds(doc, mode, compiled)
	return failure, success, nil
}

// CollectMetrics renders perf data for the metric specs and returns the
// warning and critical text produced by their ranges.
func CollectMetrics(doc *jsontree.Node, separator string, mode units.Mode, specs []string) (perfdata, warning, critical string, err error) {
	c := &compiler{separator: orDefault(separator)}
	compiled := c.metrics("metric", specs)
	if err := c.err(); err != nil {
		return "", "", "", err
	}
	perfdata, warning, critical = collectMetrics(doc, mode, compiled)
	return perfdata, warning, critical, nil
}

func orDefault(separator string) string {
	if separator == "" {
		return jsonpath.DefaultSeparator
	}
	return separator
}

func checkExistence(doc *jsontree.Node, rules []existenceRule) (failure, success string) {
	var f strings.Builder
	for _, r := range rules {
		if r.broken != nil {
			f.WriteString(r.brokenText())
			continue
		}
		if !r.path.Resolve(doc).Found() {
			fmt.Fprintf(&f, " Key %s did not exist.", r.alias)
		}
	}
	return f.String(), ""
}

func checkEquality(doc *jsontree.Node, mode units.Mode, rules []equalityRule) (failure, success string) {
	var f, s strings.Builder
	for _, r := range rules {
		if r.broken != nil {
			f.WriteString(r.brokenText())
			continue
		}
		res := r.path.Resolve(doc)
		shown := "not found"
		if res.Found() {
			shown = mode.Format(res.Node().String())
		}
		if res.Found() && matchesAny(res.Node().String(), r.alternatives) {
			fmt.Fprintf(&s, " Value for key %s (%s) does match %s.", r.alias, shown, r.expected)
		} else {
			fmt.Fprintf(&f, " Value for key %s (%s) did not match %s.", r.alias, shown, r.expected)
		}
	}
	return f.String(), s.String()
}

func matchesAny(actual string, alternatives []string) bool {
	for _, a := range alternatives {
		if actual == a {
			return true
		}
	}
	return false
}

func checkThresholds(doc *jsontree.Node, mode units.Mode, rules []thresholdRule) (failure, success string) {
	var f, s strings.Builder
	for _, r := range rules {
		if r.broken != nil {
			f.WriteString(r.brokenText())
			continue
		}
		res := r.path.Resolve(doc)
		if !res.Found() {
			fmt.Fprintf(&f, " Key %s did not exist.", r.alias)
			continue
		}
		fail, ok := rangeText(r.alias, res.Node(), r.rng, mode)
		f.WriteString(fail)
		s.WriteString(ok)
	}
	return f.String(), s.String()
}

// rangeText evaluates one value against rng and phrases the result after
// the bound that was crossed.
func rangeText(alias string, n *jsontree.Node, rng threshold.Range, mode units.Mode) (failure, success string) {
	raw := n.String()
	val, err := n.Float()
	if err != nil {
		return fmt.Sprintf(" Value for key %s (%s) is not numeric.", alias, raw), ""
	}

	shown := mode.Format(raw)
	start := boundText(rng.StartText(), mode)
	end := boundText(rng.EndText(), mode)
	prefix := fmt.Sprintf(" Value for key %s (%s) was", alias, shown)

	switch rng.Check(val) {
	case threshold.Above:
		return fmt.Sprintf("%s greater than %s.", prefix, end), ""
	case threshold.Below:
		return fmt.Sprintf("%s less than %s.", prefix, start), ""
	case threshold.Outside:
		return fmt.Sprintf("%s outside the range '%s : %s'.", prefix, start, end), ""
	case threshold.AtOrBelow:
		return fmt.Sprintf("%s less than or equal to %s.", prefix, end), ""
	case threshold.AtOrAbove:
		return fmt.Sprintf("%s greater than or equal to %s.", prefix, start), ""
	case threshold.Inside:
		if rng.LowerUnbounded() && rng.UpperUnbounded() {
			return fmt.Sprintf("%s inside the range '~:'.", prefix), ""
		}
		return fmt.Sprintf("%s inside the range '%s : %s'.", prefix, start, end), ""
	}

	not := ""
	if rng.Invert {
		not = " not"
	}
	var band string
	switch {
	case rng.LowerUnbounded() && rng.UpperUnbounded():
		band = "~:"
	case rng.LowerUnbounded():
		band = ":" + end
	case rng.UpperUnbounded():
		band = start + ":"
	default:
		band = start + " : " + end
	}
	return "", fmt.Sprintf("%s%s in range '%s'.", prefix, not, band)
}

func boundText(text string, mode units.Mode) string {
	if text == "" {
		return "infinity"
	}
	return mode.Format(text)
}

func collectMetrics(doc *jsontree.Node, mode units.Mode, rules []metricRule) (perfdata, warning, critical string) {
	var perf []string
	var w, c strings.Builder
	for _, m := range rules {
		if m.broken != nil {
			// Metrics have no tier of their own; a broken path is critical.
			c.WriteString(m.brokenText())
			continue
		}
		res := m.path.Resolve(doc)
		if !res.Found() {
			continue
		}

		var rec strings.Builder
		fmt.Fprintf(&rec, "'%s'=%s%s", m.alias, res.Node().String(), m.uom)
		for _, field := range m.fields {
			rec.WriteString(";" + strings.TrimSpace(field))
		}
		perf = append(perf, rec.String())

		if m.warn != nil {
			fail, _ := rangeText(m.alias, res.Node(), *m.warn, mode)
			w.WriteString(fail)
		}
		for _, r := range []*threshold.Range{m.crit, m.minimum, m.maximum} {
			if r == nil {
				continue
			}
			fail, _ := rangeText(m.alias, res.Node(), *r, mode)
			c.WriteString(fail)
		}
	}
	return strings.Join(perf, " "), w.String(), c.String()
}
