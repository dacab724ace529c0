package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/expr"
)

func ptr(s string) *string { return &s }

func TestMaterializePlacement(t *testing.T) {
	testCases := []struct {
		Name   string
		In     string
		Anchor int
		Raw    string
		Out    string
	}{
		{"last line", "(+ 1 2)", 0, "3", "(+ 1 2)\n#; 3\n"},
		{"next line taken", "(+ 1 2)\n(* 3 4)", 0, "3", "(+ 1 2)\n#; 3\n\n(* 3 4)"},
		{"one blank line", "(a)\n\n(b)", 0, "1", "(a)\n#; 1\n\n(b)"},
		{"one trailing blank", "(a)\n", 0, "1", "(a)\n#; 1\n"},
		{"two blank lines", "(a)\n\n\n(b)", 0, "1", "(a)\n#; 1\n\n(b)"},
		{"old result", "(a)\n#; old\n\n(b)", 0, "new", "(a)\n#; new\n\n(b)"},
		{"old multi-line result", "(a)\n#; 1\n#; 2\n(b)", 0, "3", "(a)\n#; 3\n(b)"},
		{"multi-line value", "(a)\n\n\n", 0, "1\n2 \n", "(a)\n#; 1\n#; 2\n\n"},
		{"trimmed", "(a)", 0, "  \"s\"\n", "(a)\n#; \"s\"\n"},
		{"middle anchor", "(a)\n(b)\n(c)", 1, "b", "(a)\n(b)\n#; b\n\n(c)"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			buf := document.New(tc.In)
			m := New(buf)
			mark, err := m.Materialize(Text(tc.Raw), tc.Anchor)
			require.NoError(t, err)
			assert.Equal(t, tc.Out, buf.String())

			span, ok := m.Registry().Span(mark.ID)
			require.True(t, ok)
			assert.Equal(t, tc.Anchor+1, span.Start.Line)
			assert.True(t, IsResultLine(buf.Line(span.End.Line)))
		})
	}
}

func TestMaterializeTwice(t *testing.T) {
	buf := document.New("(+ 1 2)\n(* 3 4)")
	m := New(buf)

	first, err := m.Materialize(Text("3"), 0)
	require.NoError(t, err)
	once := buf.String()

	_, err = m.Materialize(Text("3"), 0)
	require.NoError(t, err)
	assert.Equal(t, once, buf.String())

	// The replaced result's mark is gone.
	_, ok := m.Registry().Get(first.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Registry().Len())
}

func TestMaterializeShiftsMarks(t *testing.T) {
	buf := document.New("(a)\n(b)")
	m := New(buf)

	second, err := m.Materialize(Text("b"), 1)
	require.NoError(t, err)
	_, err = m.Materialize(Text("a"), 0)
	require.NoError(t, err)

	assert.Equal(t, "(a)\n#; a\n\n(b)\n#; b\n", buf.String())
	span, ok := m.Registry().Span(second.ID)
	require.True(t, ok)
	assert.Equal(t, expr.Pos(4, 0), span.Start)
}

func TestMaterializeNoAnchor(t *testing.T) {
	buf := document.New("(a)")
	m := New(buf)
	_, err := m.Materialize(Text("1"), 3)
	assert.ErrorIs(t, err, ErrNoAnchor)
	assert.Equal(t, "(a)", buf.String())
}

func TestCycleVariant(t *testing.T) {
	buf := document.New("(a)\n\n(b)")
	m := New(buf)

	v := Value{Raw: "1", Pretty: ptr("one"), Rendered: ptr("<b>1</b>")}
	mark, err := m.Materialize(v, 0)
	require.NoError(t, err)
	before := buf.String()

	assert.Equal(t, []string{VariantRaw, VariantPretty, VariantRendered}, mark.View.Variants())
	assert.Equal(t, "1", mark.View.Render())

	require.True(t, m.CycleVariant(mark.ID, 1))
	assert.Equal(t, "one", mark.View.Render())
	require.True(t, m.CycleVariant(mark.ID, 1))
	assert.Equal(t, "<b>1</b>", mark.View.Render())
	require.True(t, m.CycleVariant(mark.ID, 1))
	assert.Equal(t, 0, mark.View.Index())
	require.True(t, m.CycleVariant(mark.ID, -1))
	assert.Equal(t, VariantRendered, mark.View.Label())

	assert.Equal(t, before, buf.String())
	assert.False(t, m.CycleVariant(MarkID("missing"), 1))
}

func TestCycleAt(t *testing.T) {
	buf := document.New("(a)\n\n(b)")
	m := New(buf)
	v := Value{Raw: "1", Pretty: ptr("one")}
	mark, err := m.Materialize(v, 0)
	require.NoError(t, err)
	require.Equal(t, "(a)\n#; 1\n\n(b)", buf.String())

	got, ok := m.CycleAt(1, 1)
	require.True(t, ok)
	assert.Equal(t, mark.ID, got.ID)
	assert.Equal(t, "one", mark.View.Render())

	// The blank line below a result addresses it.
	_, ok = m.CycleAt(2, 1)
	require.True(t, ok)
	assert.Equal(t, "1", mark.View.Render())

	_, ok = m.CycleAt(0, 1)
	assert.False(t, ok)
	_, ok = m.CycleAt(3, 1)
	assert.False(t, ok)
}

func TestSingleVariantCycles(t *testing.T) {
	w := NewView(Text("x"))
	assert.Equal(t, 0, w.Cycle(1))
	assert.Equal(t, 0, w.Cycle(-3))
	w.Update(5)
	assert.Equal(t, "x", w.Render())
}

func TestClear(t *testing.T) {
	buf := document.New("(a)\n(b)")
	m := New(buf)
	_, err := m.Materialize(Text("b"), 1)
	require.NoError(t, err)
	_, err = m.Materialize(Text("a"), 0)
	require.NoError(t, err)
	require.Equal(t, "(a)\n#; a\n\n(b)\n#; b\n", buf.String())

	buf.SetCursor(expr.Pos(3, 1))
	assert.Equal(t, 2, m.Clear())
	assert.Equal(t, "(a)\n\n(b)\n", buf.String())
	assert.Equal(t, expr.Pos(2, 1), buf.Cursor())
	assert.Equal(t, 0, m.Registry().Len())
	assert.Empty(t, buf.Marks())
}

func TestClearFirstLine(t *testing.T) {
	buf := document.New("#; stale\n(a)")
	m := New(buf)
	assert.Equal(t, 1, m.Clear())
	assert.Equal(t, "(a)", buf.String())

	buf = document.New("#; only")
	m = New(buf)
	assert.Equal(t, 1, m.Clear())
	assert.Equal(t, "", buf.String())
}

func TestEditDestroysMark(t *testing.T) {
	buf := document.New("(a)")
	m := New(buf)
	mark, err := m.Materialize(Text("1"), 0)
	require.NoError(t, err)

	// Deleting the result line by hand.
	buf.Replace(buf.LineEnd(0), buf.LineEnd(1), "")
	_, ok := m.Registry().Get(mark.ID)
	assert.False(t, ok)
	_, ok = m.CycleAt(1, 1)
	assert.False(t, ok)
}
