// Package rules compiles check directives and evaluates them against a JSON
// document.
//
// Rule strings use the plugin's command line notation:
//
//	existence   key[>alias]
//	equality    key[>alias],value[:value...]
//	threshold   key[>alias],range
//	metric      key[>alias][,uom[,warn,crit[,min,max]]]
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/y0f/check-http-json/internal/jsonpath"
	"github.com/y0f/check-http-json/internal/threshold"
	"github.com/y0f/check-http-json/internal/units"
)

// ErrMalformed reports a rule string missing required parts.
var ErrMalformed = errors.New("malformed rule")

// ConfigError ties a compile failure to the list and entry it came from.
type ConfigError struct {
	List  string
	Entry string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s rule %q: %v", e.List, e.Entry, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RuleSet is the raw rule configuration of one check.
type RuleSet struct {
	Separator string
	FieldType string

	Warning           []string // thresholds, warning tier
	Critical          []string // thresholds, critical tier
	KeyExists         []string
	KeyExistsCritical []string
	KeyEquals         []string
	KeyEqualsCritical []string
	Metrics           []string
}

// Empty reports whether the set holds no rules at all.
func (rs RuleSet) Empty() bool {
	return len(rs.Warning)+len(rs.Critical)+len(rs.KeyExists)+len(rs.KeyExistsCritical)+
		len(rs.KeyEquals)+len(rs.KeyEqualsCritical)+len(rs.Metrics) == 0
}

type keyRef struct {
	path  jsonpath.Path
	alias string
	// broken holds a path that failed to decode. The rule then fails on
	// its own at evaluation instead of aborting the run.
	broken error
}

// brokenText is the failure line of a rule whose path could not be decoded.
func (k keyRef) brokenText() string {
	return fmt.Sprintf(" Key %s: invalid base64 in search accessor.", k.alias)
}

type existenceRule struct {
	keyRef
}

type equalityRule struct {
	keyRef
	expected     string
	alternatives []string
}

type thresholdRule struct {
	keyRef
	rng threshold.Range
}

type metricRule struct {
	keyRef
	uom     string
	fields  []string // warn, crit, min, max as written; absent fields are omitted
	warn    *threshold.Range
	crit    *threshold.Range
	minimum *threshold.Range
	maximum *threshold.Range
}

type tier struct {
	thresholds []thresholdRule
	equality   []equalityRule
	existence  []existenceRule
}

type compiler struct {
	separator string
	errs      []error
}

// err returns nil, the single failure, or all failures joined.
func (c *compiler) err() error {
	switch len(c.errs) {
	case 0:
		return nil
	case 1:
		return c.errs[0]
	default:
		return errors.Join(c.errs...)
	}
}

func (c *compiler) fail(list, entry string, err error) {
	c.errs = append(c.errs, &ConfigError{List: list, Entry: entry, Err: err})
}

// splitAlias splits "key>alias". Anything but exactly one ">" leaves the
// whole string as both key and alias.
func splitAlias(s string) (key, alias string) {
	parts := strings.Split(s, ">")
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return s, s
}

func (c *compiler) key(s string) (keyRef, error) {
	key, alias := splitAlias(strings.TrimSpace(s))
	if key == "" {
		return keyRef{}, fmt.Errorf("%w: empty key", ErrMalformed)
	}
	p, err := jsonpath.Parse(key, c.separator)
	if errors.Is(err, jsonpath.ErrDecode) {
		return keyRef{alias: alias, broken: err}, nil
	}
	if err != nil {
		return keyRef{}, err
	}
	return keyRef{path: p, alias: alias}, nil
}

func (c *compiler) existence(list string, entries []string) []existenceRule {
	var out []existenceRule
	for _, entry := range entries {
		ref, err := c.key(entry)
		if err != nil {
			c.fail(list, entry, err)
			continue
		}
		out = append(out, existenceRule{keyRef: ref})
	}
	return out
}

func (c *compiler) equality(list string, entries []string) []equalityRule {
	var out []equalityRule
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, ",")
		if !ok {
			c.fail(list, entry, fmt.Errorf("%w: want key,value", ErrMalformed))
			continue
		}
		ref, err := c.key(k)
		if err != nil {
			c.fail(list, entry, err)
			continue
		}
		out = append(out, equalityRule{keyRef: ref, expected: v, alternatives: strings.Split(v, ":")})
	}
	return out
}

func (c *compiler) thresholds(list string, entries []string) []thresholdRule {
	var out []thresholdRule
	for _, entry := range entries {
		i := strings.LastIndex(entry, ",")
		if i < 0 {
			c.fail(list, entry, fmt.Errorf("%w: want key,range", ErrMalformed))
			continue
		}
		ref, err := c.key(entry[:i])
		if err != nil {
			c.fail(list, entry, err)
			continue
		}
		rng, err := threshold.Parse(entry[i+1:])
		if err != nil {
			c.fail(list, entry, err)
			continue
		}
		out = append(out, thresholdRule{keyRef: ref, rng: rng})
	}
	return out
}

func (c *compiler) metrics(list string, entries []string) []metricRule {
	var out []metricRule
	for _, entry := range entries {
		m, err := c.metric(entry)
		if err != nil {
			c.fail(list, entry, err)
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *compiler) metric(entry string) (metricRule, error) {
	fields := strings.Split(entry, ",")
	switch len(fields) {
	case 1, 2, 4, 6:
	default:
		return metricRule{}, fmt.Errorf("%w: want key[,uom[,warn,crit[,min,max]]], got %d fields", ErrMalformed, len(fields))
	}

	ref, err := c.key(fields[0])
	if err != nil {
		return metricRule{}, err
	}
	m := metricRule{keyRef: ref}
	if len(fields) >= 2 {
		m.uom = strings.TrimSpace(fields[1])
	}
	if len(fields) >= 4 {
		m.fields = append(m.fields, fields[2:]...)
	}

	optional := func(text, prefix, suffix string) (*threshold.Range, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		r, err := threshold.Parse(prefix + text + suffix)
		if err != nil {
			return nil, err
		}
		return &r, nil
	}

	if len(fields) >= 4 {
		if m.warn, err = optional(fields[2], "", ""); err != nil {
			return metricRule{}, fmt.Errorf("warn: %w", err)
		}
		if m.crit, err = optional(fields[3], "", ""); err != nil {
			return metricRule{}, fmt.Errorf("crit: %w", err)
		}
	}
	if len(fields) == 6 {
		if m.minimum, err = optional(fields[4], "", ":"); err != nil {
			return metricRule{}, fmt.Errorf("min: %w", err)
		}
		if m.maximum, err = optional(fields[5], "~:", ""); err != nil {
			return metricRule{}, fmt.Errorf("max: %w", err)
		}
	}
	return m, nil
}

// Compile parses every rule of rs. All malformed entries are reported
// together as *ConfigError values joined into one error.
func Compile(rs RuleSet) (*Engine, error) {
	mode, err := units.ParseMode(rs.FieldType)
	if err != nil {
		return nil, &ConfigError{List: "field_type", Entry: rs.FieldType, Err: err}
	}
	sep := rs.Separator
	if sep == "" {
		sep = jsonpath.DefaultSeparator
	}

	c := &compiler{separator: sep}
	e := &Engine{
		mode:      mode,
		separator: sep,
		warning: tier{
			thresholds: c.thresholds("warning", rs.Warning),
			equality:   c.equality("key_equals", rs.KeyEquals),
			existence:  c.existence("key_exists", rs.KeyExists),
		},
		critical: tier{
			thresholds: c.thresholds("critical", rs.Critical),
			equality:   c.equality("key_equals_critical", rs.KeyEqualsCritical),
			existence:  c.existence("key_exists_critical", rs.KeyExistsCritical),
		},
		metrics: c.metrics("metric", rs.Metrics),
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return e, nil
}
