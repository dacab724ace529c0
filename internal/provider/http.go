package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"nickandperla.net/notebook/internal/eval"
)

// HTTP is an evaluator reached by POSTing requests to a URL.
type HTTP struct {
	URL     string
	Timeout time.Duration

	mu     sync.Mutex
	recv   eval.Receiver
	client *http.Client
	wg     sync.WaitGroup
}

// HTTPOption configures the HTTP evaluator.
type HTTPOption func(*HTTP)

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) { h.Timeout = timeout }
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// NewHTTP creates a new HTTP evaluator.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		URL:     url,
		Timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{Timeout: h.Timeout}
	}
	return h
}

// Bind sets the receiver for replies.
func (h *HTTP) Bind(r eval.Receiver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recv = r
}

// Send posts the request and delivers the reply from a goroutine.
func (h *HTTP) Send(kind, payload string, expectReply bool) error {
	jsonBody, err := json.Marshal(Request{Kind: kind, Payload: payload})
	if err != nil {
		return err
	}

	h.mu.Lock()
	recv := h.recv
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		body, err := h.post(jsonBody)
		if !expectReply || recv == nil {
			return
		}
		if err != nil {
			recv.Fault(err)
			return
		}
		deliver(recv, body)
	}()
	return nil
}

func (h *HTTP) post(jsonBody []byte) ([]byte, error) {
	resp, err := h.client.Post(h.URL, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evaluator error: %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return body, nil
}

// Close waits for requests in flight.
func (h *HTTP) Close() error {
	h.wg.Wait()
	return nil
}
