package jsonpath

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/y0f/check-http-json/internal/jsontree"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func mustTree(t *testing.T, doc string) *jsontree.Node {
	t.Helper()
	n, err := jsontree.Parse([]byte(doc))
	require.NoError(t, err)
	return n
}

func TestParseSegments(t *testing.T) {
	p, err := Parse("(0)_gauges_jvm.buffers.direct.capacity(1)_value", "_")
	require.NoError(t, err)

	segs := p.Segments()
	require.Len(t, segs, 5)
	assert.Equal(t, Segment{Kind: IndexSegment, Index: 0}, segs[0])
	assert.Equal(t, Segment{Kind: KeySegment, Name: "gauges"}, segs[1])
	assert.Equal(t, Segment{Kind: KeySegment, Name: "jvm.buffers.direct.capacity"}, segs[2])
	assert.Equal(t, Segment{Kind: IndexSegment, Index: 1}, segs[3])
	assert.Equal(t, Segment{Kind: KeySegment, Name: "value"}, segs[4])
}

func TestParseSearchSegment(t *testing.T) {
	p, err := Parse("beans(name="+b64("java.lang:type=Memory (raw)")+").used", "")
	require.NoError(t, err)

	segs := p.Segments()
	require.Len(t, segs, 3)
	assert.Equal(t, "beans", segs[0].Name)
	assert.Equal(t, SearchSegment, segs[1].Kind)
	assert.Equal(t, "java.lang:type=Memory (raw)", segs[1].Value)
	assert.Equal(t, "name", segs[1].Field.String())
	assert.Equal(t, "used", segs[2].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"beans(0", ErrSyntax},
		{"beans()", ErrSyntax},
		{"beans(abc)", ErrSyntax},
		{"beans(-1)", ErrSyntax},
		{"beans(name=***)", ErrDecode},
	}
	for _, tt := range tests {
		_, err := Parse(tt.expr, ".")
		require.Error(t, err, tt.expr)
		assert.True(t, errors.Is(err, tt.want), "%s: got %v", tt.expr, err)
	}
}

func TestResolve(t *testing.T) {
	doc := mustTree(t, `{
		"status": "ok",
		"empty": null,
		"data": {"count": 42, "list": [10, 20, [30, 40]]},
		"beans": [
			{"name": "a.b (x)", "val": 1},
			{"name": "c:d=e", "val": 2, "tags": {"env": "prod"}}
		],
		"": "blank"
	}`)

	tests := []struct {
		path  string
		found bool
		want  string
	}{
		{"", true, doc.String()},
		{"status", true, "ok"},
		{"empty", true, "null"},
		{"data.count", true, "42"},
		{"data.list(1)", true, "20"},
		{"data.list(2)(1)", true, "40"},
		{"data.list(2).(0)", true, "30"},
		{"data.", true, `{"count":42,"list":[10,20,[30,40]]}`},
		{"beans(0).val", true, "1"},
		{"beans(1)val", true, "2"},
		{"beans(name=" + b64("c:d=e") + ").val", true, "2"},
		{"beans(name=" + b64("a.b (x)") + ").val", true, "1"},
		{"beans(tags.env=" + b64("prod") + ").name", true, "c:d=e"},
		{"data.list(=" + b64("20") + ")", true, "20"},
		{"", true, doc.String()},
		{"missing", false, ""},
		{"status.deeper", false, ""},
		{"data.list(3)", false, ""},
		{"data.count(0)", false, ""},
		{"nothere(0)", false, ""},
		{"beans(name=" + b64("zzz") + ")", false, ""},
		{"status(name=" + b64("ok") + ")", false, ""},
	}
	for _, tt := range tests {
		r, err := Resolve(doc, tt.path, ".")
		require.NoError(t, err, tt.path)
		require.Equal(t, tt.found, r.Found(), "path %q", tt.path)
		if tt.found {
			assert.Equal(t, tt.want, r.Node().String(), "path %q", tt.path)
		} else {
			assert.Nil(t, r.Node())
		}
	}
}

func TestResolveCustomSeparator(t *testing.T) {
	doc := mustTree(t, `[{"gauges":{"jvm.buffers.direct.capacity":[{"value":215415},{"value":1234}]}}]`)

	r, err := Resolve(doc, "(0)_gauges_jvm.buffers.direct.capacity(1)_value", "_")
	require.NoError(t, err)
	require.True(t, r.Found())
	assert.Equal(t, "1234", r.Node().String())

	r, err = Resolve(doc, "(0)::gauges::jvm.buffers.direct.capacity(0)::value", "::")
	require.NoError(t, err)
	require.True(t, r.Found())
	assert.Equal(t, "215415", r.Node().String())
}

func TestFoundNullDiffersFromNotFound(t *testing.T) {
	doc := mustTree(t, `{"a": null}`)

	r, err := Resolve(doc, "a", ".")
	require.NoError(t, err)
	assert.True(t, r.Found())
	assert.Equal(t, jsontree.Null, r.Node().Kind())

	r, err = Resolve(doc, "b", ".")
	require.NoError(t, err)
	assert.False(t, r.Found())
	assert.Equal(t, NotFound, r)
}

type pathStep struct {
	key   string
	index int
	isKey bool
}

// buildTree wraps leaf so that steps address it, padding arrays and adding
// sibling members along the way.
func buildTree(steps []pathStep, leaf *jsontree.Node, sibling string) *jsontree.Node {
	n := leaf
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.isKey {
			n = jsontree.NewObject(
				jsontree.Member{Key: s.key, Value: n},
				jsontree.Member{Key: sibling + "_" + strconv.Itoa(i), Value: jsontree.NewNumber("0")},
			)
			continue
		}
		items := make([]*jsontree.Node, s.index+2)
		for j := range items {
			items[j] = jsontree.NewNull()
		}
		items[s.index] = n
		n = jsontree.NewArray(items...)
	}
	return n
}

func renderPath(steps []pathStep, sep string) string {
	var b strings.Builder
	for i, s := range steps {
		if s.isKey {
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString(s.key)
			continue
		}
		b.WriteString("(" + strconv.Itoa(s.index) + ")")
	}
	return b.String()
}

func TestResolveExistingLeafProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sep := rapid.SampledFrom([]string{".", "_", "/", "::"}).Draw(t, "sep")
		n := rapid.IntRange(0, 8).Draw(t, "depth")
		steps := make([]pathStep, n)
		for i := range steps {
			if rapid.Bool().Draw(t, "is_key") {
				steps[i] = pathStep{isKey: true, key: rapid.StringMatching(`[a-z0-9]{1,6}`).Draw(t, "key")}
			} else {
				steps[i] = pathStep{index: rapid.IntRange(0, 4).Draw(t, "index")}
			}
		}
		leaf := jsontree.NewString(rapid.StringMatching(`[ -~]{0,12}`).Draw(t, "leaf"))
		root := buildTree(steps, leaf, "zz")
		path := renderPath(steps, sep)

		r, err := Resolve(root, path, sep)
		if err != nil {
			t.Fatalf("resolve %q: %v", path, err)
		}
		if !r.Found() || r.Node() != leaf {
			t.Fatalf("path %q did not reach the leaf", path)
		}

		missing := path + sep + "missing"
		if path == "" {
			missing = "missing"
		}
		r, err = Resolve(root, missing, sep)
		if err != nil {
			t.Fatalf("resolve %q: %v", missing, err)
		}
		if r.Found() {
			t.Fatalf("path %q should not resolve", missing)
		}
	})
}
