package jsonpath

import (
	"github.com/y0f/check-http-json/internal/jsontree"
)

// Result is the outcome of a lookup. A present JSON null is Found; only a
// missing location is NotFound.
type Result struct {
	node *jsontree.Node
}

// NotFound is the zero Result.
var NotFound = Result{}

func Found(n *jsontree.Node) Result { return Result{node: n} }

func (r Result) Found() bool { return r.node != nil }

// Node returns the resolved node, or nil when nothing was found.
func (r Result) Node() *jsontree.Node { return r.node }

// Resolve parses expr and resolves it against root.
func Resolve(root *jsontree.Node, expr, separator string) (Result, error) {
	p, err := Parse(expr, separator)
	if err != nil {
		return NotFound, err
	}
	return p.Resolve(root), nil
}

// Resolve walks the tree segment by segment, left to right.
func (p Path) Resolve(root *jsontree.Node) Result {
	cur := root
	if cur == nil {
		return NotFound
	}
	for _, seg := range p.segments {
		next, ok := step(cur, seg)
		if !ok {
			return NotFound
		}
		cur = next
	}
	return Found(cur)
}

func step(cur *jsontree.Node, seg Segment) (*jsontree.Node, bool) {
	switch seg.Kind {
	case KeySegment:
		return cur.Get(seg.Name)
	case IndexSegment:
		return cur.At(seg.Index)
	case SearchSegment:
		if cur.Kind() != jsontree.Array {
			return nil, false
		}
		for _, item := range cur.Items() {
			r := seg.Field.Resolve(item)
			if r.Found() && r.Node().String() == seg.Value {
				return item, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}
