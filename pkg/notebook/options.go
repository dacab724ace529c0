// Package notebook provides the public API for the s-expression notebook:
// a document, an evaluator connection and the commands an editor binds to
// keys.
package notebook

import (
	"log/slog"
	"time"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/eval"
	"nickandperla.net/notebook/internal/provider"
	"nickandperla.net/notebook/internal/result"
	"nickandperla.net/notebook/internal/store"
)

// Option configures a Notebook.
type Option func(*Notebook)

// Value is an evaluator reply.
type Value = result.Value

// View displays one variant of a Value.
type View = result.View

// Notice is a transient message for the user.
type Notice = document.Notice

// State is the evaluation sequencer state.
type State = eval.State

// Sequencer states.
const (
	Idle       = eval.Idle
	Dispatched = eval.Dispatched
	Draining   = eval.Draining
)

// Transport interface for custom evaluator connections.
type Transport = eval.Transport

// Receiver accepts evaluator completions.
type Receiver = eval.Receiver

// Entry is one recorded evaluation.
type Entry = store.Entry

// Summary describes one recorded session.
type Summary = store.Summary

// Transcript interface for custom transcript stores.
type Transcript = store.Transcript

// WithText sets the initial document.
func WithText(text string) Option {
	return func(n *Notebook) {
		n.buf = document.New(text)
	}
}

// WithBuffer uses an existing document.
func WithBuffer(b *document.Buffer) Option {
	return func(n *Notebook) {
		n.buf = b
	}
}

// WithTransport sets a custom evaluator connection.
func WithTransport(t Transport) Option {
	return func(n *Notebook) {
		n.transport = t
	}
}

// WithMockEvaluator configures a mock evaluator with a custom handler (for
// testing). The handler receives each expression without its trailing
// newline. Replies are delivered asynchronously.
func WithMockEvaluator(handler func(source string) (Value, error)) Option {
	return func(n *Notebook) {
		n.transport = provider.NewMockHandler(handler)
	}
}

// WithMockResponse configures a mock evaluator with a fixed reply.
func WithMockResponse(raw string) Option {
	return func(n *Notebook) {
		n.transport = provider.NewMock(raw)
	}
}

// WithEcho configures an evaluator that replies with each expression's own
// source.
func WithEcho() Option {
	return func(n *Notebook) {
		n.transport = provider.NewEcho()
	}
}

// WithProcess runs the evaluator as a subprocess of command.
func WithProcess(command string) Option {
	return func(n *Notebook) {
		n.processCmd = command
	}
}

// WithHTTP posts expressions to an evaluator at url.
func WithHTTP(url string) Option {
	return func(n *Notebook) {
		n.httpURL = url
	}
}

// WithTimeout sets the timeout for HTTP evaluator requests.
func WithTimeout(timeout time.Duration) Option {
	return func(n *Notebook) {
		n.timeout = timeout
	}
}

// WithSQLiteStore records evaluations in a SQLite database at path.
func WithSQLiteStore(path string) Option {
	return func(n *Notebook) {
		n.dbPath = path
	}
}

// WithMemoryStore records evaluations in memory (for testing).
func WithMemoryStore() Option {
	return func(n *Notebook) {
		n.transcript = store.NewMemory()
	}
}

// WithTranscript records evaluations in t.
func WithTranscript(t Transcript) Option {
	return func(n *Notebook) {
		n.transcript = t
	}
}

// WithSessionID sets the id evaluations are recorded under.
func WithSessionID(id string) Option {
	return func(n *Notebook) {
		n.sessionID = id
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notebook) {
		n.logger = l
	}
}

// WithNoticeHandler is called for every notice.
func WithNoticeHandler(fn func(Notice)) Option {
	return func(n *Notebook) {
		n.onNotice = fn
	}
}
