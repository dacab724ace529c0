// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner tokenizes notebook documents one line at a time, carrying
// the lexical state (depth, open strings, block and datum comments) from each
// line into the next.
package scanner

import (
	"strings"
	"unicode"

	"nickandperla.net/notebook/internal/token"
)

// State is the lexical state at a line boundary.
type State struct {
	depth int
	str   bool // inside a string literal
	block int  // #| |# nesting
	// Datum comments: pending counts #; markers still waiting for their datum,
	// datum is the depth a commented bracket group closes back to (-1 if none),
	// datumStr is set while a commented string literal is open.
	pending  int
	datum    int
	datumStr bool
}

// Initial returns the state at the top of a document.
func Initial() State {
	return State{datum: -1}
}

// Depth returns the bracket depth at the boundary.
func (st State) Depth() int { return st.depth }

// InString returns true if a string literal is open at the boundary.
func (st State) InString() bool { return st.str }

// InBlockComment returns true if a #| comment is open at the boundary.
func (st State) InBlockComment() bool { return st.block > 0 }

// Scanner tokenizes a single line rune-by-rune.
type Scanner struct {
	reader *strings.Reader
	buf    strings.Builder
	line   int
	col    int // column of the next rune
	start  int // column where the current token started
	state  State
	tokens []token.Token
}

// ScanLine tokenizes text as line number line, starting from state st. It
// returns the tokens in column order and the state at the end of the line.
func ScanLine(line int, text string, st State) ([]token.Token, State) {
	if st == (State{}) {
		st = Initial()
	}
	if !st.str && st.block == 0 && strings.HasPrefix(text, token.ResultPrefix) {
		n := len([]rune(text))
		return []token.Token{{
			Line:  line,
			Start: 0,
			End:   n,
			Type:  token.Comment,
			State: token.State{Depth: st.depth, Mode: token.InComment},
			Text:  text,
		}}, st
	}

	s := &Scanner{
		reader: strings.NewReader(text),
		line:   line,
		state:  st,
	}
	s.run()
	return s.tokens, s.state
}

func (s *Scanner) read() (rune, bool) {
	r, _, err := s.reader.ReadRune()
	if err != nil {
		return 0, false
	}
	s.col++
	s.buf.WriteRune(r)
	return r, true
}

func (s *Scanner) peek() (rune, bool) {
	r, _, err := s.reader.ReadRune()
	if err != nil {
		return 0, false
	}
	s.reader.UnreadRune()
	return r, true
}

func (s *Scanner) skip() {
	if _, _, err := s.reader.ReadRune(); err == nil {
		s.col++
	}
}

func (s *Scanner) begin() {
	s.buf.Reset()
	s.start = s.col
}

func (s *Scanner) run() {
	if s.state.str {
		s.begin()
		s.scanStringBody()
		if s.col > s.start {
			s.emitStringContinuation()
		}
	} else if s.state.block > 0 {
		for {
			r, ok := s.peek()
			if !ok || !unicode.IsSpace(r) {
				break
			}
			s.skip()
		}
		if _, ok := s.peek(); !ok {
			return
		}
		s.begin()
		s.scanBlockBody()
		s.emitRaw(token.Comment, token.InNestedComment, s.state.depth)
	}

	for {
		r, ok := s.peek()
		if !ok {
			return
		}
		if unicode.IsSpace(r) {
			s.skip()
			continue
		}

		s.begin()
		switch {
		case r == token.RuneComment:
			for {
				if _, ok := s.read(); !ok {
					break
				}
			}
			s.emitRaw(token.Comment, token.InComment, s.state.depth)

		case r == token.RuneQuote:
			s.read()
			s.scanStringBody()
			s.emitString()

		case token.IsOpen(r):
			s.read()
			s.emitOpen()

		case token.IsClose(r):
			s.read()
			s.emitClose()

		case r == token.RuneHash:
			s.read()
			s.scanHash()

		case r == '\'' || r == '`':
			s.read()
			s.emitPrefix()

		case r == ',':
			s.read()
			if n, ok := s.peek(); ok && n == '@' {
				s.read()
			}
			s.emitPrefix()

		default:
			s.scanWord()
			s.emitDatum(token.Atom)
		}
	}
}

// scanStringBody consumes runes up to and including an unescaped quote, or
// to the end of the line, and records whether the literal is still open.
func (s *Scanner) scanStringBody() {
	escaped := false
	for {
		r, ok := s.read()
		if !ok {
			s.state.str = true
			return
		}
		switch {
		case escaped:
			escaped = false
		case r == token.RuneEscape:
			escaped = true
		case r == token.RuneQuote:
			s.state.str = false
			return
		}
	}
}

func (s *Scanner) scanBlockBody() {
	for {
		r, ok := s.read()
		if !ok {
			return
		}
		n, _ := s.peek()
		switch {
		case r == token.RuneHash && n == token.RuneBlockEdge:
			s.read()
			s.state.block++
		case r == token.RuneBlockEdge && n == token.RuneHash:
			s.read()
			s.state.block--
			if s.state.block == 0 {
				return
			}
		}
	}
}

func (s *Scanner) scanHash() {
	n, ok := s.peek()
	if !ok {
		s.emitDatum(token.Atom)
		return
	}
	switch {
	case n == token.RuneBlockEdge:
		s.read()
		s.state.block = 1
		s.scanBlockBody()
		s.emitRaw(token.Comment, token.InNestedComment, s.state.depth)

	case n == token.RuneComment:
		s.read()
		s.emitRaw(token.Comment, token.InDatumComment, s.state.depth)
		if s.state.datum < 0 && !s.state.datumStr {
			s.state.pending++
		}

	case n == token.RuneEscape:
		// #\( is a character, not a bracket.
		s.read()
		s.read()
		s.scanWord()
		s.emitDatum(token.Atom)

	case token.IsOpen(n):
		s.emitPrefix()

	case n == '\'' || n == '`':
		s.read()
		s.emitPrefix()

	case n == ',':
		s.read()
		if n, ok := s.peek(); ok && n == '@' {
			s.read()
		}
		s.emitPrefix()

	default:
		s.scanWord()
		s.emitDatum(token.Atom)
	}
}

func (s *Scanner) scanWord() {
	for {
		r, ok := s.peek()
		if !ok || isDelimiter(r) {
			return
		}
		s.read()
	}
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || token.IsOpen(r) || token.IsClose(r) ||
		r == token.RuneQuote || r == token.RuneComment
}

func (s *Scanner) emitRaw(tt token.Type, mode token.Mode, depth int) {
	s.tokens = append(s.tokens, token.Token{
		Line:  s.line,
		Start: s.start,
		End:   s.col,
		Type:  tt,
		State: token.State{Depth: depth, Mode: mode},
		Text:  s.buf.String(),
	})
}

// commented reports whether the token about to be emitted lies inside a
// datum comment. Starting a datum consumes one pending #; marker.
func (s *Scanner) commented(startsDatum bool) bool {
	if s.state.datum >= 0 || s.state.datumStr {
		return true
	}
	if s.state.pending == 0 {
		return false
	}
	if startsDatum {
		s.state.pending--
	}
	return true
}

func (s *Scanner) emitDatum(tt token.Type) {
	if s.commented(true) {
		s.emitRaw(token.Comment, token.InDatumComment, s.state.depth)
		return
	}
	s.emitRaw(tt, token.Normal, s.state.depth)
}

func (s *Scanner) emitPrefix() {
	if s.commented(false) {
		s.emitRaw(token.Comment, token.InDatumComment, s.state.depth)
		return
	}
	s.emitRaw(token.Other, token.Normal, s.state.depth)
}

func (s *Scanner) emitString() {
	inGroup := s.state.datum >= 0
	if s.commented(true) {
		if !inGroup && s.state.str {
			s.state.datumStr = true
		}
		s.emitRaw(token.Comment, token.InDatumComment, s.state.depth)
		return
	}
	s.emitRaw(token.String, token.Normal, s.state.depth)
}

func (s *Scanner) emitStringContinuation() {
	if s.state.datumStr || s.state.datum >= 0 {
		if !s.state.str {
			s.state.datumStr = false
		}
		s.emitRaw(token.Comment, token.InDatumComment, s.state.depth)
		return
	}
	s.emitRaw(token.String, token.InString, s.state.depth)
}

func (s *Scanner) emitOpen() {
	depth := s.state.depth
	inGroup := s.state.datum >= 0
	if s.commented(true) {
		if !inGroup {
			s.state.datum = depth
		}
		s.emitRaw(token.Comment, token.InDatumComment, depth)
	} else {
		s.emitRaw(token.Bracket, token.Normal, depth)
	}
	s.state.depth++
}

func (s *Scanner) emitClose() {
	if s.state.depth > 0 {
		s.state.depth--
	}
	depth := s.state.depth
	if s.state.datum >= 0 {
		if depth <= s.state.datum {
			s.state.datum = -1
		}
		s.emitRaw(token.Comment, token.InDatumComment, depth)
		return
	}
	s.emitRaw(token.Bracket, token.Normal, depth)
}
