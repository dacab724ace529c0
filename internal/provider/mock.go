package provider

import (
	"strings"
	"sync"
	"time"

	"nickandperla.net/notebook/internal/eval"
	"nickandperla.net/notebook/internal/result"
)

// Mock is a mock evaluator for testing.
type Mock struct {
	Response result.Value
	Handler  func(payload string) (result.Value, error)
	Delay    time.Duration
	Sync     bool

	mu       sync.Mutex
	recv     eval.Receiver
	payloads []string
	wg       sync.WaitGroup
}

// MockOption configures the Mock evaluator.
type MockOption func(*Mock)

// WithMockDelay delays every reply by d.
func WithMockDelay(d time.Duration) MockOption {
	return func(m *Mock) { m.Delay = d }
}

// WithMockSync delivers replies before Send returns.
func WithMockSync() MockOption {
	return func(m *Mock) { m.Sync = true }
}

// NewMock creates a new mock evaluator with a fixed response.
func NewMock(raw string, opts ...MockOption) *Mock {
	m := &Mock{Response: result.Text(raw)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMockHandler creates a mock evaluator with a custom handler. The
// handler sees the payload without its trailing newline.
func NewMockHandler(handler func(payload string) (result.Value, error), opts ...MockOption) *Mock {
	m := &Mock{Handler: handler}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewEcho creates a mock evaluator replying with the payload itself.
func NewEcho(opts ...MockOption) *Mock {
	return NewMockHandler(func(payload string) (result.Value, error) {
		return result.Text(payload), nil
	}, opts...)
}

// Bind sets the receiver for replies.
func (m *Mock) Bind(r eval.Receiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recv = r
}

// Send records payload and schedules the reply.
func (m *Mock) Send(kind, payload string, expectReply bool) error {
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	recv := m.recv
	m.mu.Unlock()

	if !expectReply || recv == nil {
		return nil
	}

	reply := func() {
		v, err := m.Response, error(nil)
		if m.Handler != nil {
			v, err = m.Handler(strings.TrimSuffix(payload, "\n"))
		}
		if err != nil {
			recv.Fault(err)
			return
		}
		recv.Value(v)
	}

	if m.Sync {
		reply()
		return nil
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if m.Delay > 0 {
			time.Sleep(m.Delay)
		}
		reply()
	}()
	return nil
}

// Payloads returns every payload sent so far.
func (m *Mock) Payloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.payloads...)
}

// Close waits for pending replies.
func (m *Mock) Close() error {
	m.wg.Wait()
	return nil
}
