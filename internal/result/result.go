// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package result writes evaluator replies into a document as prefixed
// result lines and tracks their display state.
package result

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/expr"
	"nickandperla.net/notebook/internal/token"
)

// Prefix starts every result line. It reads as a datum comment, so the
// scanner skips result lines.
const Prefix = token.ResultPrefix

// ErrNoAnchor is returned when a result has no source line to attach to.
var ErrNoAnchor = errors.New("anchor line out of range")

// Surface is the part of an editing surface the materializer needs.
type Surface interface {
	LineCount() int
	Line(i int) string
	LineEnd(line int) expr.Position
	Replace(start, end expr.Position, s string) expr.Position
	MarkRegion(start, end expr.Position, widget any) document.MarkHandle
	FindMark(h document.MarkHandle) (expr.Span, bool)
	ClearMark(h document.MarkHandle)
}

// IsResultLine returns true if line was written by a Materializer.
func IsResultLine(line string) bool {
	return strings.HasPrefix(line, Prefix)
}

// Lines formats raw as result lines.
func Lines(raw string) []string {
	parts := strings.Split(strings.TrimSpace(raw), "\n")
	for i, p := range parts {
		parts[i] = Prefix + strings.TrimRight(p, " \t\r")
	}
	return parts
}

// Materializer places results below the expressions that produced them.
type Materializer struct {
	mu       sync.Mutex
	surface  Surface
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		m.logger = l
	}
}

// New creates a Materializer over surface.
func New(surface Surface, opts ...Option) *Materializer {
	m := &Materializer{
		surface:  surface,
		registry: NewRegistry(surface),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the marks written so far.
func (m *Materializer) Registry() *Registry {
	return m.registry
}

// Materialize writes v on the lines after anchorLine and registers a view
// for it. An old result directly below the anchor is replaced. Otherwise the
// result goes on a fresh line, with a blank line opened after it unless one
// is already there.
func (m *Materializer) Materialize(v Value, anchorLine int) (*Mark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.surface
	n := s.LineCount()
	if anchorLine < 0 || anchorLine >= n {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoAnchor, anchorLine, n)
	}

	body := Lines(v.Raw)
	text := strings.Join(body, "\n")
	line := func(i int) (string, bool) {
		if i >= n {
			return "", false
		}
		return s.Line(i), true
	}

	from := s.LineEnd(anchorLine)
	to := from
	next, hasNext := line(anchorLine + 1)
	after, hasAfter := line(anchorLine + 2)

	switch {
	case hasNext && IsResultLine(next):
		last := anchorLine + 1
		for last+1 < n && IsResultLine(s.Line(last+1)) {
			last++
		}
		to = s.LineEnd(last)
		text = "\n" + text
	case !hasNext || next != "":
		text = "\n" + text + "\n"
	case !hasAfter || after != "":
		text = "\n" + text
	default:
		from = expr.Pos(anchorLine+1, 0)
		to = from
	}
	s.Replace(from, to, text)

	start := expr.Pos(anchorLine+1, 0)
	end := s.LineEnd(anchorLine + len(body))
	view := NewView(v)
	mark := m.registry.Add(s.MarkRegion(start, end, view), view)

	m.logger.Debug("materialized result",
		"mark", mark.ID,
		"line", anchorLine+1,
		"variants", len(view.Variants()))
	return mark, nil
}

// CycleVariant moves the displayed variant of a mark by delta. No
// evaluator is involved.
func (m *Materializer) CycleVariant(id MarkID, delta int) bool {
	mark, ok := m.registry.Get(id)
	if !ok {
		return false
	}
	i := mark.View.Cycle(delta)
	m.logger.Debug("cycled result view", "mark", id, "variant", mark.View.Label(), "index", i)
	return true
}

// CycleAt cycles the mark on line. A blank line addresses the mark on the
// line above it.
func (m *Materializer) CycleAt(line, delta int) (*Mark, bool) {
	mark, ok := m.registry.At(line)
	if !ok && line > 0 && strings.TrimSpace(m.surface.Line(line)) == "" {
		mark, ok = m.registry.At(line - 1)
	}
	if !ok {
		return nil, false
	}
	return mark, m.CycleVariant(mark.ID, delta)
}

// Clear removes every result line from the document and destroys all
// marks. Lines that remain keep their relative order, so a cursor on a
// source line stays on it.
func (m *Materializer) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.surface
	removed := 0
	for i := s.LineCount() - 1; i >= 0; i-- {
		if !IsResultLine(s.Line(i)) {
			continue
		}
		switch {
		case i > 0:
			s.Replace(s.LineEnd(i-1), s.LineEnd(i), "")
		case s.LineCount() > 1:
			s.Replace(expr.Pos(0, 0), expr.Pos(1, 0), "")
		default:
			s.Replace(expr.Pos(0, 0), s.LineEnd(0), "")
		}
		removed++
	}
	m.registry.Reset()

	m.logger.Debug("cleared results", "lines", removed)
	return removed
}
