// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package expr defines document positions and expression spans.
package expr

import (
	"errors"
	"fmt"
)

var (
	ErrUnbalancedDelimiters = errors.New("unbalanced delimiters")
	ErrMalformedString      = errors.New("malformed string literal")
	ErrEvaluatorFault       = errors.New("evaluator fault")
	ErrEmptyExpression      = errors.New("empty expression")
	ErrNoExpression         = errors.New("could not select expression")
	ErrBlocked              = errors.New("resolve error before continuing evaluation")
)

// Position is a zero-based line and rune column.
type Position struct {
	Line int
	Col  int
}

// Pos is shorthand for Position{line, col}.
func Pos(line, col int) Position {
	return Position{Line: line, Col: col}
}

// Compare orders positions by line, then column.
func (p Position) Compare(o Position) int {
	if p.Line != o.Line {
		if p.Line < o.Line {
			return -1
		}
		return 1
	}
	switch {
	case p.Col < o.Col:
		return -1
	case p.Col > o.Col:
		return 1
	}
	return 0
}

// Less returns true if p comes strictly before o.
func (p Position) Less(o Position) bool { return p.Compare(o) < 0 }

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Span is a half-open document range [Start, End).
type Span struct {
	Start Position
	End   Position
}

// NewSpan orders a and b into a span.
func NewSpan(a, b Position) Span {
	if b.Less(a) {
		a, b = b, a
	}
	return Span{Start: a, End: b}
}

// IsEmpty returns true if the span covers nothing.
func (s Span) IsEmpty() bool { return s.Start.Compare(s.End) >= 0 }

// Contains returns true if p lies inside the span.
func (s Span) Contains(p Position) bool {
	return s.Start.Compare(p) <= 0 && p.Less(s.End)
}

// Overlaps returns true if the two spans share at least one position.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Less(o.End) && o.Start.Less(s.End)
}

func (s Span) String() string {
	return fmt.Sprintf("[%v, %v)", s.Start, s.End)
}

// Direction selects which way a boundary search walks.
type Direction int

const (
	Backward Direction = iota
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}
