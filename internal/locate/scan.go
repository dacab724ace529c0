// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package locate

import (
	"nickandperla.net/notebook/internal/expr"
	"nickandperla.net/notebook/internal/token"
)

// ScanDocument returns every top-level expression in document order: bracket
// groups rooted at depth 0, string literals and bare atoms. Comments,
// commented datums and result lines are skipped. An unmatched trailing group
// or string is dropped.
func (l *Locator) ScanDocument() []expr.Span {
	var (
		spans  []expr.Span
		open   *expr.Position // start of an unmatched depth-0 opener
		str    *expr.Position // start of a depth-0 string spanning lines
		prefix *expr.Position // start of pending quote-like prefixes
	)

	startAt := func(t token.Token) *expr.Position {
		p := start(t)
		if prefix != nil {
			p = *prefix
			prefix = nil
		}
		return &p
	}

	for line := 0; line < l.stream.LineCount(); line++ {
		for _, t := range l.stream.TokensForLine(line) {
			if !t.Candidate() {
				continue
			}
			switch t.Type {
			case token.Bracket:
				switch {
				case open == nil && t.Opens():
					open = startAt(t)
				case open != nil:
					spans = append(spans, expr.Span{Start: *open, End: end(t)})
					open = nil
				}

			case token.String:
				if open != nil {
					continue
				}
				if t.State.Mode == token.InString {
					if str != nil && t.ClosesString() {
						spans = append(spans, expr.Span{Start: *str, End: end(t)})
						str = nil
					}
					continue
				}
				p := startAt(t)
				if !t.ClosesString() {
					str = p
					continue
				}
				spans = append(spans, expr.Span{Start: *p, End: end(t)})

			case token.Other:
				if open == nil && prefix == nil {
					p := start(t)
					prefix = &p
				}

			default:
				if open != nil {
					continue
				}
				spans = append(spans, expr.Span{Start: *startAt(t), End: end(t)})
			}
		}
	}
	return spans
}
