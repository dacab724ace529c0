package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/notebook/internal/expr"
)

func TestBufferText(t *testing.T) {
	b := New("(+ 1 2)\n(* 3 4)\n")
	assert.Equal(t, 3, b.LineCount())
	assert.Equal(t, "(* 3 4)", b.Line(1))
	assert.Equal(t, "", b.Line(7))

	assert.Equal(t, "(+ 1 2)", b.Text(expr.Span{Start: expr.Pos(0, 0), End: expr.Pos(0, 7)}))
	assert.Equal(t, "2)\n(*", b.Text(expr.Span{Start: expr.Pos(0, 5), End: expr.Pos(1, 2)}))
	assert.Equal(t, expr.Pos(1, 7), b.LineEnd(1))
}

func TestBufferTextRunes(t *testing.T) {
	b := New("(λ x)")
	assert.Equal(t, "λ", b.Text(expr.Span{Start: expr.Pos(0, 1), End: expr.Pos(0, 2)}))
}

func TestBufferReplace(t *testing.T) {
	b := New("ab\ncd")
	v := b.Version()

	end := b.InsertText(expr.Pos(0, 1), "X\nY")
	assert.Equal(t, expr.Pos(1, 1), end)
	assert.Equal(t, "aX\nYb\ncd", b.String())
	assert.NotEqual(t, v, b.Version())

	end = b.Replace(expr.Pos(0, 1), expr.Pos(2, 1), "")
	assert.Equal(t, expr.Pos(0, 1), end)
	assert.Equal(t, "ad", b.String())
}

func TestBufferMarksShift(t *testing.T) {
	b := New("(a)\n(b)\n(c)")
	first := b.MarkRegion(expr.Pos(0, 0), expr.Pos(0, 3), nil)
	third := b.MarkRegion(expr.Pos(2, 0), expr.Pos(2, 3), "widget")

	// Insertion at the end of the first mark leaves it in place.
	b.InsertText(expr.Pos(0, 3), "\n\n")

	span, ok := b.FindMark(first)
	require.True(t, ok)
	assert.Equal(t, expr.Span{Start: expr.Pos(0, 0), End: expr.Pos(0, 3)}, span)

	span, ok = b.FindMark(third)
	require.True(t, ok)
	assert.Equal(t, expr.Span{Start: expr.Pos(4, 0), End: expr.Pos(4, 3)}, span)
	assert.Equal(t, "(c)", b.Text(span))

	w, ok := b.Widget(third)
	require.True(t, ok)
	assert.Equal(t, "widget", w)
}

func TestBufferMarksDestroyed(t *testing.T) {
	b := New("(a)\n#; 1\n(b)")
	result := b.MarkRegion(expr.Pos(1, 0), expr.Pos(1, 4), nil)
	source := b.MarkRegion(expr.Pos(0, 0), expr.Pos(0, 3), nil)
	after := b.MarkRegion(expr.Pos(2, 0), expr.Pos(2, 3), nil)

	b.Replace(expr.Pos(0, 3), expr.Pos(1, 4), "")
	assert.Equal(t, "(a)\n(b)", b.String())

	_, ok := b.FindMark(result)
	assert.False(t, ok)

	_, ok = b.FindMark(source)
	assert.True(t, ok)

	span, ok := b.FindMark(after)
	require.True(t, ok)
	assert.Equal(t, expr.Pos(1, 0), span.Start)

	assert.Equal(t, []MarkHandle{source, after}, b.Marks())

	b.ClearMark(source)
	b.SetText("new")
	assert.Empty(t, b.Marks())
}

func TestBufferCursor(t *testing.T) {
	b := New("abc\ndef")
	b.SetCursor(expr.Pos(5, 5))
	assert.Equal(t, expr.Pos(1, 3), b.Cursor())

	b.SetCursor(expr.Pos(1, 1))
	b.InsertText(expr.Pos(0, 0), "x\n")
	assert.Equal(t, expr.Pos(2, 1), b.Cursor())

	b.InsertText(expr.Pos(2, 1), "yy")
	assert.Equal(t, expr.Pos(2, 3), b.Cursor())
}

func TestBufferNotify(t *testing.T) {
	b := New("")
	var got []string
	b.OnNotify(func(n Notice) { got = append(got, n.Message) })

	b.Notify("hello", 3*time.Second)
	require.Len(t, b.Notifications(), 1)
	assert.Equal(t, 3*time.Second, b.Notifications()[0].Duration)
	assert.Equal(t, []string{"hello"}, got)
}
