// Package eval sequences top-level expressions through an external
// evaluator, one outstanding request at a time.
package eval

import (
	"time"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/expr"
	"nickandperla.net/notebook/internal/result"
	"nickandperla.net/notebook/internal/store"
)

// KindEval is the request kind for an expression to evaluate.
const KindEval = "eval"

// NoticeDuration is how long user-visible notices stay up.
const NoticeDuration = 3 * time.Second

// Transport hands requests to an evaluator. Replies arrive later through
// the bound Receiver, possibly before Send returns.
type Transport interface {
	Bind(r Receiver)
	Send(kind, payload string, expectReply bool) error
	Close() error
}

// Receiver accepts evaluator completions.
type Receiver interface {
	Value(v result.Value)
	Fault(err error)
}

// Surface is the part of the editing surface the session needs.
type Surface interface {
	Text(span expr.Span) string
	MarkRegion(start, end expr.Position, widget any) document.MarkHandle
	FindMark(h document.MarkHandle) (expr.Span, bool)
	ClearMark(h document.MarkHandle)
	SetCursor(p expr.Position)
	Notify(message string, d time.Duration)
}

// Transcript records completed evaluations.
type Transcript interface {
	Record(e store.Entry) (store.Entry, error)
}

// State is the sequencer state.
type State int

const (
	// Idle has nothing outstanding.
	Idle State = iota
	// Dispatched has one request outstanding and nothing queued.
	Dispatched
	// Draining has one request outstanding and more queued behind it.
	Draining
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatched:
		return "dispatched"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}
