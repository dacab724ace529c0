// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package scanner

import (
	"fmt"

	"nickandperla.net/notebook/internal/token"
)

// Source is the document text a Stream tokenizes. Version must change on
// every edit.
type Source interface {
	LineCount() int
	Line(i int) string
	Version() uint64
}

// Stream derives per-line tokens from a Source on demand. Results are cached
// for the current document version only.
type Stream struct {
	src     Source
	version uint64
	valid   bool
	states  []State // states[i] is the state at the start of line i
	tokens  map[int][]token.Token
}

// NewStream creates a Stream over src.
func NewStream(src Source) *Stream {
	return &Stream{src: src}
}

// LineCount returns the number of lines in the document.
func (s *Stream) LineCount() int {
	return s.src.LineCount()
}

func (s *Stream) sync() {
	v := s.src.Version()
	if s.valid && v == s.version {
		return
	}
	s.version = v
	s.valid = true
	s.states = []State{Initial()}
	s.tokens = make(map[int][]token.Token)
}

// Invalidate drops every cached token.
func (s *Stream) Invalidate() {
	s.valid = false
}

// TokensForLine returns the tokens of line in column order. It panics if line
// is out of range.
func (s *Stream) TokensForLine(line int) []token.Token {
	s.sync()
	if n := s.src.LineCount(); line < 0 || line >= n {
		panic(fmt.Sprintf("scanner: line %d out of range [0, %d)", line, n))
	}
	s.ensure(line + 1)
	return s.tokens[line]
}

// StateAt returns the lexical state at the start of line. Passing LineCount
// yields the state at the end of the document.
func (s *Stream) StateAt(line int) State {
	s.sync()
	if n := s.src.LineCount(); line < 0 || line > n {
		panic(fmt.Sprintf("scanner: line %d out of range [0, %d]", line, n))
	}
	s.ensure(line)
	return s.states[line]
}

// ensure scans lines until the state at the start of line is known.
func (s *Stream) ensure(line int) {
	for len(s.states) <= line {
		i := len(s.states) - 1
		toks, next := ScanLine(i, s.src.Line(i), s.states[i])
		s.tokens[i] = toks
		s.states = append(s.states, next)
	}
}

// Next returns the token that follows tok in document order.
func (s *Stream) Next(tok token.Token) (token.Token, bool) {
	toks := s.TokensForLine(tok.Line)
	for _, t := range toks {
		if t.Start >= tok.End && t.Start > tok.Start {
			return t, true
		}
	}
	for line := tok.Line + 1; line < s.LineCount(); line++ {
		if toks := s.TokensForLine(line); len(toks) > 0 {
			return toks[0], true
		}
	}
	return token.Token{}, false
}

// Prev returns the token that precedes tok in document order.
func (s *Stream) Prev(tok token.Token) (token.Token, bool) {
	toks := s.TokensForLine(tok.Line)
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].End <= tok.Start && toks[i].Start < tok.Start {
			return toks[i], true
		}
	}
	for line := tok.Line - 1; line >= 0; line-- {
		if toks := s.TokensForLine(line); len(toks) > 0 {
			return toks[len(toks)-1], true
		}
	}
	return token.Token{}, false
}
