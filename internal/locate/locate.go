// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package locate finds the boundaries of top-level expressions in a token
// stream: the expression nearest a cursor, and every expression of a
// document in order.
package locate

import (
	"nickandperla.net/notebook/internal/expr"
	"nickandperla.net/notebook/internal/scanner"
	"nickandperla.net/notebook/internal/token"
)

// Locator resolves expression spans over a token stream.
type Locator struct {
	stream *scanner.Stream
}

// New creates a Locator.
func New(stream *scanner.Stream) *Locator {
	return &Locator{stream: stream}
}

// FindBoundaryToken walks from pos in direction dir and returns the first
// candidate token: not a comment, not inside a comment mode, at depth 0.
// Backward considers tokens starting before pos.Col on pos.Line, forward
// those starting at or after it.
func (l *Locator) FindBoundaryToken(pos expr.Position, dir expr.Direction) (token.Token, bool) {
	n := l.stream.LineCount()
	if n == 0 {
		return token.Token{}, false
	}
	if pos.Line >= n {
		pos = expr.Pos(n-1, int(^uint(0)>>1))
	}
	if pos.Line < 0 {
		pos = expr.Pos(0, 0)
	}

	if dir == expr.Forward {
		for line := pos.Line; line < n; line++ {
			for _, t := range l.stream.TokensForLine(line) {
				if line == pos.Line && t.Start < pos.Col {
					continue
				}
				if t.Candidate() {
					return t, true
				}
			}
		}
		return token.Token{}, false
	}

	for line := pos.Line; line >= 0; line-- {
		toks := l.stream.TokensForLine(line)
		for i := len(toks) - 1; i >= 0; i-- {
			t := toks[i]
			if line == pos.Line && t.Start >= pos.Col {
				continue
			}
			if t.Candidate() {
				return t, true
			}
		}
	}
	return token.Token{}, false
}

// ResolveSpan turns a boundary token into the span of its whole expression.
func (l *Locator) ResolveSpan(tok token.Token) (expr.Span, error) {
	var (
		span  expr.Span
		first = tok
		err   error
	)
	switch tok.Type {
	case token.Bracket:
		var match token.Token
		if match, err = l.MatchBracket(tok); err == nil {
			if tok.Closes() {
				first = match
				span = expr.Span{Start: start(match), End: end(tok)}
			} else {
				span = expr.Span{Start: start(tok), End: end(match)}
			}
		}
	case token.String:
		first, span, err = l.stringSpan(tok)
	case token.Other:
		span, err = l.prefixSpan(tok)
	default:
		span = expr.Span{Start: start(tok), End: end(tok)}
	}
	if err != nil {
		return expr.Span{}, err
	}
	return l.widen(first, span), nil
}

// Nearest resolves the expression under or before pos, falling back to the
// one after it.
func (l *Locator) Nearest(pos expr.Position) (expr.Span, error) {
	tok, ok := l.FindBoundaryToken(pos, expr.Backward)
	if !ok {
		tok, ok = l.FindBoundaryToken(pos, expr.Forward)
	}
	if !ok {
		return expr.Span{}, expr.ErrNoExpression
	}
	return l.ResolveSpan(tok)
}

// MatchBracket finds the bracket paired with tok by counting nesting depth
// over bracket tokens only, so brackets in strings and comments never count.
func (l *Locator) MatchBracket(tok token.Token) (token.Token, error) {
	n := l.stream.LineCount()
	depth := 0
	check := func(t token.Token) (token.Token, bool, error) {
		if t.Type != token.Bracket {
			return token.Token{}, false, nil
		}
		if t.Opens() == tok.Opens() {
			depth++
		} else {
			depth--
		}
		if depth > 0 {
			return token.Token{}, false, nil
		}
		o, c := tok.Rune(), t.Rune()
		if tok.Closes() {
			o, c = c, o
		}
		if !token.Matches(o, c) {
			return token.Token{}, true, expr.ErrUnbalancedDelimiters
		}
		return t, true, nil
	}

	switch {
	case tok.Opens():
		for line := tok.Line; line < n; line++ {
			for _, t := range l.stream.TokensForLine(line) {
				if line == tok.Line && t.Start < tok.Start {
					continue
				}
				if m, done, err := check(t); done {
					return m, err
				}
			}
		}
	case tok.Closes():
		for line := tok.Line; line >= 0; line-- {
			toks := l.stream.TokensForLine(line)
			for i := len(toks) - 1; i >= 0; i-- {
				t := toks[i]
				if line == tok.Line && t.Start > tok.Start {
					continue
				}
				if m, done, err := check(t); done {
					return m, err
				}
			}
		}
	}
	return token.Token{}, expr.ErrUnbalancedDelimiters
}

// stringSpan joins the tokens of a string literal split over several lines.
// Each direction takes at most one step per document line.
func (l *Locator) stringSpan(tok token.Token) (token.Token, expr.Span, error) {
	first, last := tok, tok
	limit := l.stream.LineCount()

	for steps := 0; !first.OpensString(); steps++ {
		prev, ok := l.stream.Prev(first)
		if !ok || steps >= limit || prev.Type != token.String {
			return token.Token{}, expr.Span{}, expr.ErrMalformedString
		}
		first = prev
	}
	for steps := 0; !last.ClosesString(); steps++ {
		next, ok := l.stream.Next(last)
		if !ok || steps >= limit || next.Type != token.String {
			return token.Token{}, expr.Span{}, expr.ErrMalformedString
		}
		last = next
	}
	return first, expr.Span{Start: start(first), End: end(last)}, nil
}

// prefixSpan covers a quote-like prefix and the datum that follows it.
func (l *Locator) prefixSpan(tok token.Token) (expr.Span, error) {
	cur := tok
	for steps := l.stream.LineCount() + 1; steps > 0; steps-- {
		next, ok := l.stream.Next(cur)
		if !ok || next.State.Depth != tok.State.Depth || next.Type == token.Comment || next.Closes() {
			return expr.Span{Start: start(tok), End: end(cur)}, nil
		}
		switch next.Type {
		case token.Other:
			cur = next
			continue
		case token.Bracket:
			match, err := l.MatchBracket(next)
			if err != nil {
				return expr.Span{}, err
			}
			return expr.Span{Start: start(tok), End: end(match)}, nil
		case token.String:
			_, span, err := l.stringSpan(next)
			if err != nil {
				return expr.Span{}, err
			}
			return expr.Span{Start: start(tok), End: span.End}, nil
		default:
			return expr.Span{Start: start(tok), End: end(next)}, nil
		}
	}
	return expr.Span{Start: start(tok), End: end(cur)}, nil
}

// widen extends span over prefix tokens directly in front of first.
func (l *Locator) widen(first token.Token, span expr.Span) expr.Span {
	for {
		prev, ok := l.stream.Prev(first)
		if !ok || prev.Type != token.Other || prev.State != first.State {
			return span
		}
		first = prev
		span.Start = start(prev)
	}
}

func start(t token.Token) expr.Position { return expr.Pos(t.Line, t.Start) }
func end(t token.Token) expr.Position   { return expr.Pos(t.Line, t.End) }
