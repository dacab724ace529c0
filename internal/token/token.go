// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines the per-line tokens produced for a notebook document
// and the lexical state they carry.
package token

import "fmt"

// Type classifies a token.
type Type int

const (
	Other   Type = iota // prefix tokens: ' ` , ,@ #' #
	Bracket             // ( ) [ ] { }
	String              // a string literal or one line of it
	Atom                // symbols, numbers, booleans, characters
	Comment             // ; comments, #| |# blocks, #; datums, result lines
)

// Mode is the lexical mode in effect when a token starts.
type Mode int

const (
	Normal Mode = iota
	InComment
	InString
	InNestedComment
	InDatumComment
)

// Delimiter runes.
const (
	RuneQuote     = '"'
	RuneEscape    = '\\'
	RuneComment   = ';'
	RuneHash      = '#'
	RuneBlockEdge = '|'
)

// ResultPrefix starts every line written by the result materializer. It is a
// datum comment, so result lines stay inert for the evaluator.
const ResultPrefix = "#; "

// State is the lexical context of a token.
type State struct {
	Depth int
	Mode  Mode
}

// Token is a half-open column range [Start, End) on Line. Columns count runes.
type Token struct {
	Line  int
	Start int
	End   int
	Type  Type
	State State
	Text  string
}

// IsOpen returns true if r opens a bracket group.
func IsOpen(r rune) bool {
	switch r {
	case '(', '[', '{':
		return true
	}
	return false
}

// IsClose returns true if r closes a bracket group.
func IsClose(r rune) bool {
	switch r {
	case ')', ']', '}':
		return true
	}
	return false
}

// Matches returns true if open and close form a pair.
func Matches(open, close rune) bool {
	switch open {
	case '(':
		return close == ')'
	case '[':
		return close == ']'
	case '{':
		return close == '}'
	}
	return false
}

// Rune returns the first rune of the token text, or 0.
func (t Token) Rune() rune {
	for _, r := range t.Text {
		return r
	}
	return 0
}

// Opens returns true for an opening bracket token.
func (t Token) Opens() bool {
	return t.Type == Bracket && IsOpen(t.Rune())
}

// Closes returns true for a closing bracket token.
func (t Token) Closes() bool {
	return t.Type == Bracket && IsClose(t.Rune())
}

// OpensString returns true if a string token begins its literal: it starts
// with a quote and is not the continuation of an earlier line.
func (t Token) OpensString() bool {
	if t.Type != String || t.State.Mode == InString {
		return false
	}
	return t.Rune() == RuneQuote
}

// ClosesString returns true if a string token ends its literal with an
// unescaped quote that is not also its opening quote.
func (t Token) ClosesString() bool {
	if t.Type != String {
		return false
	}
	runes := []rune(t.Text)
	n := len(runes)
	if n == 0 || runes[n-1] != RuneQuote {
		return false
	}
	if t.OpensString() && n == 1 {
		return false
	}
	escapes := 0
	for i := n - 2; i >= 0 && runes[i] == RuneEscape; i-- {
		escapes++
	}
	return escapes%2 == 0
}

// Candidate reports whether the token may bound a top-level expression: not a
// comment, not inside any comment mode, and at depth 0.
func (t Token) Candidate() bool {
	if t.Type == Comment {
		return false
	}
	switch t.State.Mode {
	case InComment, InNestedComment, InDatumComment:
		return false
	}
	return t.State.Depth == 0
}

// String returns the string representation of a token type.
func (tt Type) String() string {
	switch tt {
	case Other:
		return "other"
	case Bracket:
		return "bracket"
	case String:
		return "string"
	case Atom:
		return "atom"
	case Comment:
		return "comment"
	}
	return "unknown"
}

// String returns the string representation of a mode.
func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case InComment:
		return "comment"
	case InString:
		return "string"
	case InNestedComment:
		return "nested-comment"
	case InDatumComment:
		return "datum-comment"
	}
	return "unknown"
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q %d:%d-%d depth=%d mode=%s", t.Type, t.Text, t.Line, t.Start, t.End, t.State.Depth, t.State.Mode)
}
