// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/expr"
	"nickandperla.net/notebook/internal/result"
	"nickandperla.net/notebook/internal/store"
)

// NoticeBlocked is shown when a submission is refused after a fault.
const NoticeBlocked = "Resolve error before continuing evaluation"

var errNoTransport = errors.New("no evaluator transport")

// Session sequences the evaluation of one document. Queued expressions are
// held as surface bookmarks, so results written above them move them along
// and each dispatch sees the document as the previous result left it.
type Session struct {
	mu         sync.Mutex
	id         string
	surface    Surface
	results    *result.Materializer
	transport  Transport
	transcript Transcript
	logger     *slog.Logger
	dispatches *Dispatches

	queue   []document.MarkHandle
	last    document.MarkHandle // source of the latest dispatch
	flight  *Dispatch
	errored bool
	fault   error
	idle    chan struct{} // closed while nothing is outstanding
}

// Option configures a Session.
type Option func(*Session)

// WithTransport sets the evaluator transport. The session binds itself as
// the transport's receiver.
func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithTranscript records every completed evaluation.
func WithTranscript(t Transcript) Option {
	return func(s *Session) { s.transcript = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithID sets the session id used in transcripts.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// NewSession creates a Session writing results through results.
func NewSession(surface Surface, results *result.Materializer, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		surface:    surface,
		results:    results,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		dispatches: NewDispatches(),
		idle:       make(chan struct{}),
	}
	close(s.idle)
	for _, opt := range opts {
		opt(s)
	}
	if s.transport != nil {
		s.transport.Bind(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Dispatches returns the request bookkeeping.
func (s *Session) Dispatches() *Dispatches {
	return s.dispatches
}

// State returns the sequencer state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	switch {
	case s.flight == nil:
		return Idle
	case len(s.queue) > 0:
		return Draining
	default:
		return Dispatched
	}
}

// Pending returns the number of queued, undispatched expressions.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ErrorFlag returns true while submissions are refused.
func (s *Session) ErrorFlag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored
}

// Err returns the fault that set the error flag.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// LastDispatch returns the current end of the most recently dispatched
// expression.
func (s *Session) LastDispatch() (expr.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == 0 {
		return expr.Position{}, false
	}
	span, ok := s.surface.FindMark(s.last)
	return span.End, ok
}

// SubmitOne evaluates span, or queues it behind the outstanding request.
func (s *Session) SubmitOne(span expr.Span) error {
	return s.submit([]expr.Span{span}, false)
}

// SubmitAll replaces the undispatched queue with spans and starts
// draining it. A request already outstanding is not cancelled.
func (s *Session) SubmitAll(spans []expr.Span) error {
	return s.submit(spans, true)
}

func (s *Session) submit(spans []expr.Span, replace bool) error {
	s.mu.Lock()
	if s.errored {
		s.mu.Unlock()
		s.logger.Warn("submission refused", "session", s.id, "spans", len(spans))
		s.surface.Notify(NoticeBlocked, NoticeDuration)
		return expr.ErrBlocked
	}
	if replace {
		s.dropQueue()
	}
	for _, span := range spans {
		s.queue = append(s.queue, s.surface.MarkRegion(span.Start, span.End, nil))
	}
	var next *Dispatch
	if s.flight == nil {
		next = s.advance()
	}
	s.mu.Unlock()

	return s.send(next)
}

// Value materializes the reply to the outstanding request below its source
// and dispatches the next queued expression.
func (s *Session) Value(v result.Value) {
	s.mu.Lock()
	d := s.flight
	if d == nil {
		s.mu.Unlock()
		s.logger.Warn("discarding unexpected value", "session", s.id, "raw", v.Raw)
		return
	}
	s.flight = nil
	s.dispatches.Complete(nil)

	if span, ok := s.surface.FindMark(s.last); ok {
		if mark, err := s.results.Materialize(v, span.End.Line); err != nil {
			s.logger.Warn("result not materialized", "session", s.id, "id", d.ID, "error", err)
		} else {
			s.logger.Debug("result", "session", s.id, "id", d.ID, "mark", mark.ID, "latency", d.Latency)
		}
	} else {
		s.logger.Warn("source expression removed, dropping result", "session", s.id, "id", d.ID)
	}

	s.record(d, v, nil)
	next := s.advance()
	s.mu.Unlock()

	_ = s.send(next)
}

// Fault sets the error flag and discards the queue. Submissions are refused
// until Acknowledge or Reset.
func (s *Session) Fault(err error) {
	if !errors.Is(err, expr.ErrEvaluatorFault) {
		err = fmt.Errorf("%w: %w", expr.ErrEvaluatorFault, err)
	}

	s.mu.Lock()
	d := s.flight
	s.flight = nil
	if d != nil {
		s.dispatches.Complete(err)
	}
	s.errored = true
	s.fault = err
	if d != nil {
		s.record(d, result.Value{}, err)
	}
	dropped := len(s.queue)
	s.dropQueue()
	s.mu.Unlock()

	s.logger.Error("evaluator fault", "session", s.id, "dropped", dropped, "error", err)
	s.surface.Notify(err.Error(), NoticeDuration)

	s.mu.Lock()
	if s.flight == nil {
		s.settle()
	}
	s.mu.Unlock()
}

// Acknowledge clears the error flag. It returns false if it was not set.
func (s *Session) Acknowledge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.errored
	s.errored = false
	s.fault = nil
	return was
}

// Reset clears the error flag and the queue. An outstanding request still
// completes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropQueue()
	s.errored = false
	s.fault = nil
	if s.flight == nil && s.last != 0 {
		s.surface.ClearMark(s.last)
		s.last = 0
	}
}

// Wait blocks until nothing is outstanding or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// advance pops queued expressions until one can be dispatched (caller must
// hold lock). Expressions edited away or empty are skipped.
func (s *Session) advance() *Dispatch {
	for len(s.queue) > 0 {
		h := s.queue[0]
		s.queue = s.queue[1:]
		span, ok := s.surface.FindMark(h)
		s.surface.ClearMark(h)
		if !ok {
			s.logger.Debug("queued expression removed", "session", s.id)
			continue
		}
		text := strings.TrimSpace(s.surface.Text(span))
		if text == "" {
			continue
		}

		if s.last != 0 {
			s.surface.ClearMark(s.last)
		}
		s.last = s.surface.MarkRegion(span.Start, span.End, nil)
		s.surface.SetCursor(span.End)
		s.flight = s.dispatches.Register(text)
		s.busy()
		return s.flight
	}
	s.settle()
	return nil
}

func (s *Session) send(d *Dispatch) error {
	if d == nil {
		return nil
	}
	s.logger.Debug("dispatch", "session", s.id, "id", d.ID, "source", d.Source)
	err := errNoTransport
	if s.transport != nil {
		err = s.transport.Send(KindEval, d.Source+"\n", true)
	}
	if err != nil {
		s.Fault(err)
	}
	return err
}

// dropQueue releases every queued bookmark (caller must hold lock).
func (s *Session) dropQueue() {
	for _, h := range s.queue {
		s.surface.ClearMark(h)
	}
	s.queue = nil
}

func (s *Session) busy() {
	select {
	case <-s.idle:
		s.idle = make(chan struct{})
	default:
	}
}

func (s *Session) settle() {
	select {
	case <-s.idle:
	default:
		close(s.idle)
	}
}

// record writes d to the transcript (caller must hold lock).
func (s *Session) record(d *Dispatch, v result.Value, err error) {
	if s.transcript == nil {
		return
	}
	e := store.Entry{
		Session: s.id,
		Seq:     d.Seq,
		Source:  d.Source,
		Raw:     v.Raw,
		Latency: d.Latency,
	}
	if v.Pretty != nil {
		e.Pretty = *v.Pretty
	}
	if v.Rendered != nil {
		e.Rendered = *v.Rendered
	}
	if err != nil {
		e.Fault = err.Error()
	}
	if _, err := s.transcript.Record(e); err != nil {
		s.logger.Warn("transcript write failed", "session", s.id, "error", err)
	}
}
