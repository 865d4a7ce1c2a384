// Package jsontree holds a decoded JSON document as a tree of typed nodes.
//
// Unlike decoding into `any`, a Node keeps the kind of every value explicit,
// preserves object key order and keeps numbers as their literal JSON text so
// they can be shown exactly as the endpoint sent them.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the JSON type held by a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrNotNumeric is returned by Float for nodes that have no numeric reading.
var ErrNotNumeric = errors.New("value is not numeric")

// Member is one key/value pair of an object, in document order.
type Member struct {
	Key   string
	Value *Node
}

// Node is an immutable JSON value.
type Node struct {
	kind    Kind
	text    string // string contents or number literal
	boolean bool
	members []Member
	index   map[string]int
	items   []*Node
}

func NewNull() *Node { return &Node{kind: Null} }

func NewBool(b bool) *Node { return &Node{kind: Bool, boolean: b} }

// NewNumber wraps a JSON number literal such as "42" or "1.5e3".
func NewNumber(literal string) *Node { return &Node{kind: Number, text: literal} }

func NewString(s string) *Node { return &Node{kind: String, text: s} }

// NewObject builds an object from members. A repeated key keeps its first
// position and takes the last value, matching how decoders treat duplicates.
func NewObject(members ...Member) *Node {
	n := &Node{kind: Object, index: make(map[string]int, len(members))}
	for _, m := range members {
		n.set(m.Key, m.Value)
	}
	return n
}

func NewArray(items ...*Node) *Node {
	return &Node{kind: Array, items: items}
}

func (n *Node) set(key string, v *Node) {
	if i, ok := n.index[key]; ok {
		n.members[i].Value = v
		return
	}
	n.index[key] = len(n.members)
	n.members = append(n.members, Member{Key: key, Value: v})
}

func (n *Node) Kind() Kind { return n.kind }

// Get returns the member named key when n is an object.
func (n *Node) Get(key string) (*Node, bool) {
	if n.kind != Object {
		return nil, false
	}
	i, ok := n.index[key]
	if !ok {
		return nil, false
	}
	return n.members[i].Value, true
}

// At returns the i-th element when n is an array and i is in bounds.
func (n *Node) At(i int) (*Node, bool) {
	if n.kind != Array || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// Len is the number of members or elements; zero for scalars.
func (n *Node) Len() int {
	switch n.kind {
	case Object:
		return len(n.members)
	case Array:
		return len(n.items)
	default:
		return 0
	}
}

func (n *Node) Items() []*Node { return n.items }

func (n *Node) Members() []Member { return n.members }

// Float coerces numbers and numeric strings to float64. Magnitudes beyond
// float64 become ±Inf.
func (n *Node) Float() (float64, error) {
	var text string
	switch n.kind {
	case Number:
		text = n.text
	case String:
		text = strings.TrimSpace(n.text)
	default:
		return 0, ErrNotNumeric
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, ErrNotNumeric
	}
	return f, nil
}

// String renders the value for comparisons and messages: strings verbatim,
// numbers as their literal, containers as compact JSON.
func (n *Node) String() string {
	switch n.kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(n.boolean)
	case Number, String:
		return n.text
	default:
		b, _ := n.MarshalJSON()
		return string(b)
	}
}

func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(n.boolean))
	case Number:
		buf.WriteString(n.text)
	case String:
		return writeQuoted(buf, n.text)
	case Object:
		buf.WriteByte('{')
		for i, m := range n.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeQuoted(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case Array:
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unknown node kind %d", int(n.kind))
	}
	return nil
}

func writeQuoted(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
