// Package jsonpath resolves path expressions against a jsontree document.
//
// A path is a list of segments joined by a separator (default "."). Besides
// plain keys, a segment may carry an array accessor in parentheses: either a
// position, as in "beans(0)", or a search "(name=base64(value))" that picks
// the first element whose "name" field equals the decoded value. The value is
// base64 encoded so that it may contain separators and parentheses.
//
//	beans(0).val
//	(0)_gauges_jvm.buffers.direct.capacity(1)_value   (separator "_")
//	beans(name=amF2YS5sYW5nOnR5cGU9TWVtb3J5).usage
package jsonpath

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultSeparator = "."

	arrayOpen  = '('
	arrayClose = ')'
)

var (
	// ErrSyntax reports a malformed path expression.
	ErrSyntax = errors.New("invalid path")
	// ErrDecode reports a search accessor whose value is not valid base64.
	ErrDecode = errors.New("invalid base64 in search accessor")
)

// SegmentKind tells how a segment moves through the tree.
type SegmentKind int

const (
	KeySegment SegmentKind = iota
	IndexSegment
	SearchSegment
)

// Segment is one typed step of a parsed path.
type Segment struct {
	Kind SegmentKind
	// Name is the member name for KeySegment.
	Name string
	// Index is the position for IndexSegment.
	Index int
	// Field and Value describe a SearchSegment: the first element where
	// Field resolves to Value is selected.
	Field Path
	Value string
}

func (s Segment) String() string {
	switch s.Kind {
	case KeySegment:
		return s.Name
	case IndexSegment:
		return "(" + strconv.Itoa(s.Index) + ")"
	case SearchSegment:
		return fmt.Sprintf("(%s=%q)", s.Field.raw, s.Value)
	default:
		return "?"
	}
}

// Path is a parsed path expression.
type Path struct {
	raw       string
	separator string
	segments  []Segment
}

func (p Path) String() string { return p.raw }

func (p Path) Segments() []Segment { return p.segments }

// Parse splits expr into typed segments. An empty separator means
// DefaultSeparator.
func Parse(expr, separator string) (Path, error) {
	if separator == "" {
		separator = DefaultSeparator
	}
	p := Path{raw: expr, separator: separator}

	rest := expr
	for rest != "" {
		sep := strings.Index(rest, separator)
		open := strings.IndexByte(rest, arrayOpen)

		if open < 0 || (sep >= 0 && sep < open) {
			if sep < 0 {
				p.segments = append(p.segments, Segment{Kind: KeySegment, Name: rest})
				break
			}
			p.segments = append(p.segments, Segment{Kind: KeySegment, Name: rest[:sep]})
			rest = rest[sep+len(separator):]
			continue
		}

		if open > 0 {
			p.segments = append(p.segments, Segment{Kind: KeySegment, Name: rest[:open]})
		}
		closing := strings.IndexByte(rest[open:], arrayClose)
		if closing < 0 {
			return Path{}, fmt.Errorf("%w %q: missing %q", ErrSyntax, expr, arrayClose)
		}
		closing += open

		seg, err := parseAccessor(rest[open+1:closing], separator)
		if err != nil {
			return Path{}, fmt.Errorf("%w in %q", err, expr)
		}
		p.segments = append(p.segments, seg)

		rest = strings.TrimPrefix(rest[closing+1:], separator)
	}
	return p, nil
}

// MustParse is Parse for expressions known to be valid; it panics otherwise.
func MustParse(expr, separator string) Path {
	p, err := Parse(expr, separator)
	if err != nil {
		panic(err)
	}
	return p
}

func parseAccessor(content, separator string) (Segment, error) {
	if content == "" {
		return Segment{}, fmt.Errorf("%w: empty accessor", ErrSyntax)
	}
	if isDecimal(content) {
		idx, err := strconv.Atoi(content)
		if err != nil {
			return Segment{}, fmt.Errorf("%w: index %s: %v", ErrSyntax, content, err)
		}
		return Segment{Kind: IndexSegment, Index: idx}, nil
	}

	name, encoded, ok := strings.Cut(content, "=")
	if !ok {
		return Segment{}, fmt.Errorf("%w: accessor %q is neither an index nor name=value", ErrSyntax, content)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %q: %v", ErrDecode, encoded, err)
	}
	field, err := Parse(name, separator)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Kind: SearchSegment, Field: field, Value: string(decoded)}, nil
}

func isDecimal(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
