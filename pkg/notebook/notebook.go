// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package notebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/eval"
	"nickandperla.net/notebook/internal/expr"
	"nickandperla.net/notebook/internal/locate"
	"nickandperla.net/notebook/internal/provider"
	"nickandperla.net/notebook/internal/result"
	"nickandperla.net/notebook/internal/scanner"
	"nickandperla.net/notebook/internal/store"
)

// NoticeNoExpression is shown when nothing can be selected at the cursor.
const NoticeNoExpression = "could not select expression"

// Errors returned by the commands.
var (
	ErrNoExpression = expr.ErrNoExpression
	ErrBlocked      = expr.ErrBlocked
	ErrFault        = expr.ErrEvaluatorFault
)

// Notebook is one document connected to an evaluator.
type Notebook struct {
	buf        *document.Buffer
	locator    *locate.Locator
	results    *result.Materializer
	session    *eval.Session
	transport  eval.Transport
	transcript store.Transcript
	logger     *slog.Logger
	onNotice   func(Notice)

	processCmd string
	httpURL    string
	timeout    time.Duration
	dbPath     string
	sessionID  string
}

// New creates a notebook with the given options. Without an evaluator
// option every evaluation faults.
func New(opts ...Option) (*Notebook, error) {
	n := &Notebook{
		timeout: 30 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.buf == nil {
		n.buf = document.New("")
	}
	if n.onNotice != nil {
		n.buf.OnNotify(n.onNotice)
	}

	switch {
	case n.transport != nil:
	case n.processCmd != "":
		p, err := provider.NewProcess(n.processCmd, provider.WithProcessLogger(n.logger))
		if err != nil {
			return nil, err
		}
		n.transport = p
	case n.httpURL != "":
		n.transport = provider.NewHTTP(n.httpURL, provider.WithHTTPTimeout(n.timeout))
	}

	if n.dbPath != "" && n.transcript == nil {
		s, err := store.NewSQLite(n.dbPath)
		if err != nil {
			if n.transport != nil {
				n.transport.Close()
			}
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		n.transcript = s
	}

	n.locator = locate.New(scanner.NewStream(n.buf))
	n.results = result.New(n.buf, result.WithLogger(n.logger))

	sessOpts := []eval.Option{eval.WithLogger(n.logger)}
	if n.transport != nil {
		sessOpts = append(sessOpts, eval.WithTransport(n.transport))
	}
	if n.transcript != nil {
		sessOpts = append(sessOpts, eval.WithTranscript(n.transcript))
	}
	if n.sessionID != "" {
		sessOpts = append(sessOpts, eval.WithID(n.sessionID))
	}
	n.session = eval.NewSession(n.buf, n.results, sessOpts...)
	return n, nil
}

// Balanced returns true if text leaves no bracket group, string or block
// comment open. Interactive front ends use it to decide when input is
// complete.
func Balanced(text string) bool {
	st := scanner.Initial()
	for i, line := range strings.Split(text, "\n") {
		_, st = scanner.ScanLine(i, line, st)
	}
	return st.Depth() == 0 && !st.InString() && !st.InBlockComment()
}

// EvaluateNearestExpression evaluates the top-level expression under or
// before the cursor, or after it when there is none before.
func (n *Notebook) EvaluateNearestExpression() error {
	cursor := n.buf.Cursor()
	span, err := n.locator.Nearest(cursor)
	if err != nil {
		n.logger.Debug("no expression selected", "cursor", cursor, "error", err)
		n.buf.Notify(NoticeNoExpression, eval.NoticeDuration)
		if !errors.Is(err, expr.ErrNoExpression) {
			err = fmt.Errorf("%w: %w", expr.ErrNoExpression, err)
		}
		return err
	}
	return n.session.SubmitOne(span)
}

// EvaluateDocument evaluates every top-level expression in order. A
// document without expressions is not an error.
func (n *Notebook) EvaluateDocument() error {
	spans := n.locator.ScanDocument()
	n.logger.Debug("evaluate document", "expressions", len(spans))
	return n.session.SubmitAll(spans)
}

// ClearAllResults removes every result from the document, discards queued
// expressions and clears the error flag. It returns the number of result
// lines removed.
func (n *Notebook) ClearAllResults() int {
	removed := n.results.Clear()
	n.session.Reset()
	return removed
}

// CycleDisplayedVariant switches the result at the cursor to another of its
// variants. It returns false if there is no result there.
func (n *Notebook) CycleDisplayedVariant(delta int) bool {
	_, ok := n.results.CycleAt(n.buf.Cursor().Line, delta)
	return ok
}

// AcknowledgeError clears the error flag so evaluation can continue.
func (n *Notebook) AcknowledgeError() bool {
	return n.session.Acknowledge()
}

// ViewAt returns the result view covering line.
func (n *Notebook) ViewAt(line int) (*View, bool) {
	m, ok := n.results.Registry().At(line)
	if !ok {
		return nil, false
	}
	return m.View, true
}

// Views returns the live result views in the order they were produced.
func (n *Notebook) Views() []*View {
	marks := n.results.Registry().Marks()
	out := make([]*View, len(marks))
	for i, m := range marks {
		out[i] = m.View
	}
	return out
}

// Wait blocks until no evaluation is outstanding.
func (n *Notebook) Wait(ctx context.Context) error {
	return n.session.Wait(ctx)
}

// Text returns the document.
func (n *Notebook) Text() string {
	return n.buf.String()
}

// SetText replaces the document and drops every result mark.
func (n *Notebook) SetText(text string) {
	n.buf.SetText(text)
	n.results.Registry().Reset()
	n.session.Reset()
}

// Append adds text on a new line at the end of the document and puts the
// cursor after it.
func (n *Notebook) Append(text string) {
	last := n.buf.LineCount() - 1
	end := n.buf.LineEnd(last)
	if n.buf.Line(last) != "" {
		text = "\n" + text
	}
	n.buf.SetCursor(n.buf.InsertText(end, text))
}

// Cursor returns the cursor position.
func (n *Notebook) Cursor() (line, col int) {
	p := n.buf.Cursor()
	return p.Line, p.Col
}

// SetCursor moves the cursor.
func (n *Notebook) SetCursor(line, col int) {
	n.buf.SetCursor(expr.Pos(line, col))
}

// Buffer returns the underlying document.
func (n *Notebook) Buffer() *document.Buffer {
	return n.buf
}

// State returns the evaluation state.
func (n *Notebook) State() State {
	return n.session.State()
}

// ErrorFlag returns true while evaluation is blocked by a fault.
func (n *Notebook) ErrorFlag() bool {
	return n.session.ErrorFlag()
}

// Err returns the fault blocking evaluation.
func (n *Notebook) Err() error {
	return n.session.Err()
}

// SessionID returns the id evaluations are recorded under.
func (n *Notebook) SessionID() string {
	return n.session.ID()
}

// Notices returns every notice posted so far.
func (n *Notebook) Notices() []Notice {
	return n.buf.Notifications()
}

// Stats reports the number of evaluations sent, how many faulted and the
// total time spent waiting on replies.
func (n *Notebook) Stats() (sent, faults int, waited time.Duration) {
	return n.session.Dispatches().Stats()
}

// History returns recorded evaluations, newest first.
func (n *Notebook) History(limit int) ([]Entry, error) {
	if n.transcript == nil {
		return nil, nil
	}
	return n.transcript.History(limit)
}

// Sessions summarizes recorded sessions, most recent first.
func (n *Notebook) Sessions(limit int) ([]Summary, error) {
	if n.transcript == nil {
		return nil, nil
	}
	return n.transcript.Sessions(limit)
}

// Close releases resources.
func (n *Notebook) Close() error {
	var errs []error
	if n.transport != nil {
		errs = append(errs, n.transport.Close())
	}
	if n.transcript != nil {
		errs = append(errs, n.transcript.Close())
	}
	return errors.Join(errs...)
}
