// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package document provides an in-memory editing surface: line-addressed
// text, a cursor, position-tracked marks and user notifications.
package document

import (
	"sort"
	"strings"
	"sync"
	"time"

	"nickandperla.net/notebook/internal/expr"
)

// MarkHandle identifies a mark on a Buffer.
type MarkHandle uint64

type mark struct {
	span   expr.Span
	widget any
}

// Notice is a transient message for the user.
type Notice struct {
	Message  string
	Duration time.Duration
	At       time.Time
}

// Buffer is a mutable document. All methods are safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	lines    []string
	version  uint64
	cursor   expr.Position
	marks    map[MarkHandle]*mark
	nextMark MarkHandle
	notices  []Notice
	onNotify func(Notice)
}

// New creates a buffer holding text.
func New(text string) *Buffer {
	return &Buffer{
		lines: strings.Split(text, "\n"),
		marks: make(map[MarkHandle]*mark),
	}
}

// OnNotify registers a callback invoked for every notice.
func (b *Buffer) OnNotify(fn func(Notice)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onNotify = fn
}

// LineCount returns the number of lines. An empty buffer has one line.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Line returns line i, or "" if i is out of range.
func (b *Buffer) Line(i int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// HasLine returns true if line i exists.
func (b *Buffer) HasLine(i int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return i >= 0 && i < len(b.lines)
}

// Lines returns a copy of all lines.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Version changes on every edit.
func (b *Buffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// String returns the whole document.
func (b *Buffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}

// Text returns the text covered by span.
func (b *Buffer) Text(span expr.Span) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start, end := b.clip(span.Start), b.clip(span.End)
	if end.Less(start) {
		start, end = end, start
	}
	if start.Line == end.Line {
		r := []rune(b.lines[start.Line])
		return string(r[start.Col:end.Col])
	}
	var sb strings.Builder
	sb.WriteString(string([]rune(b.lines[start.Line])[start.Col:]))
	for i := start.Line + 1; i < end.Line; i++ {
		sb.WriteByte('\n')
		sb.WriteString(b.lines[i])
	}
	sb.WriteByte('\n')
	sb.WriteString(string([]rune(b.lines[end.Line])[:end.Col]))
	return sb.String()
}

// LineEnd returns the position after the last rune of line.
func (b *Buffer) LineEnd(line int) expr.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clip(expr.Pos(line, int(^uint(0)>>1)))
}

// Cursor returns the cursor position.
func (b *Buffer) Cursor() expr.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cursor
}

// SetCursor moves the cursor, clipped to the document.
func (b *Buffer) SetCursor(p expr.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = b.clip(p)
}

// clip clamps p into the document (caller must hold lock).
func (b *Buffer) clip(p expr.Position) expr.Position {
	if p.Line < 0 {
		return expr.Pos(0, 0)
	}
	if p.Line >= len(b.lines) {
		last := len(b.lines) - 1
		return expr.Pos(last, len([]rune(b.lines[last])))
	}
	n := len([]rune(b.lines[p.Line]))
	if p.Col < 0 {
		p.Col = 0
	}
	if p.Col > n {
		p.Col = n
	}
	return p
}

// InsertText inserts s at p and returns the position after the insertion.
func (b *Buffer) InsertText(p expr.Position, s string) expr.Position {
	return b.Replace(p, p, s)
}

// Replace substitutes s for the text between start and end and returns the
// position after the inserted text. Marks overlapping removed text are
// destroyed; marks after the edit move with the text.
func (b *Buffer) Replace(start, end expr.Position, s string) expr.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, end = b.clip(start), b.clip(end)
	if end.Less(start) {
		start, end = end, start
	}

	before := string([]rune(b.lines[start.Line])[:start.Col])
	after := string([]rune(b.lines[end.Line])[end.Col:])
	ins := strings.Split(s, "\n")
	k := len(ins) - 1

	repl := make([]string, len(ins))
	copy(repl, ins)
	repl[0] = before + repl[0]
	last := expr.Pos(start.Line+k, len([]rune(repl[k])))
	repl[k] += after

	lines := make([]string, 0, len(b.lines)-(end.Line-start.Line)+k)
	lines = append(lines, b.lines[:start.Line]...)
	lines = append(lines, repl...)
	lines = append(lines, b.lines[end.Line+1:]...)
	b.lines = lines
	b.version++

	removed := start.Less(end)
	for h, m := range b.marks {
		if removed && m.span.Start.Less(end) && start.Less(m.span.End) {
			delete(b.marks, h)
			continue
		}
		m.span.Start = shift(m.span.Start, start, end, last)
		m.span.End = shift(m.span.End, start, end, last)
	}

	switch {
	case b.cursor.Less(start):
	case !end.Less(b.cursor):
		b.cursor = last
	default:
		b.cursor = shift(b.cursor, start, end, last)
	}
	return last
}

// shift maps p across an edit that replaced [start, end) with text ending at
// last. Positions at or before start stay put.
func shift(p, start, end, last expr.Position) expr.Position {
	if !start.Less(p) {
		return p
	}
	if p.Less(end) {
		return last
	}
	if p.Line == end.Line {
		return expr.Pos(last.Line, last.Col+p.Col-end.Col)
	}
	return expr.Pos(p.Line+last.Line-end.Line, p.Col)
}

// SetText replaces the whole document and destroys every mark.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = strings.Split(text, "\n")
	b.version++
	b.marks = make(map[MarkHandle]*mark)
	b.cursor = b.clip(b.cursor)
}

// MarkRegion registers a tracked region. widget may be nil for a bookmark.
func (b *Buffer) MarkRegion(start, end expr.Position, widget any) MarkHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextMark++
	h := b.nextMark
	b.marks[h] = &mark{
		span:   expr.NewSpan(b.clip(start), b.clip(end)),
		widget: widget,
	}
	return h
}

// FindMark returns the current region of a mark, or false once the mark has
// been destroyed.
func (b *Buffer) FindMark(h MarkHandle) (expr.Span, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.marks[h]
	if !ok {
		return expr.Span{}, false
	}
	return m.span, true
}

// Widget returns the widget attached to a live mark.
func (b *Buffer) Widget(h MarkHandle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.marks[h]
	if !ok {
		return nil, false
	}
	return m.widget, true
}

// ClearMark destroys a mark. Unknown handles are ignored.
func (b *Buffer) ClearMark(h MarkHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.marks, h)
}

// Marks returns the live marks in creation order.
func (b *Buffer) Marks() []MarkHandle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]MarkHandle, 0, len(b.marks))
	for h := range b.marks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Notify posts a notice for d.
func (b *Buffer) Notify(message string, d time.Duration) {
	n := Notice{Message: message, Duration: d, At: time.Now()}
	b.mu.Lock()
	b.notices = append(b.notices, n)
	fn := b.onNotify
	b.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Notifications returns every notice posted so far.
func (b *Buffer) Notifications() []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Notice, len(b.notices))
	copy(out, b.notices)
	return out
}
