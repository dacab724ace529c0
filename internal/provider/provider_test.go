package provider

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/notebook/internal/result"
)

type recorder struct {
	mu     sync.Mutex
	values []result.Value
	faults []error
	events chan struct{}
}

func newRecorder() *recorder {
	return &recorder{events: make(chan struct{}, 16)}
}

func (r *recorder) Value(v result.Value) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	r.events <- struct{}{}
}

func (r *recorder) Fault(err error) {
	r.mu.Lock()
	r.faults = append(r.faults, err)
	r.mu.Unlock()
	r.events <- struct{}{}
}

func (r *recorder) await(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.events:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for reply %d", i+1)
		}
	}
}

func TestDecodeReply(t *testing.T) {
	v, err := DecodeReply([]byte(`["3"]`))
	require.NoError(t, err)
	assert.Equal(t, "3", v.Raw)
	assert.Nil(t, v.Pretty)
	assert.Nil(t, v.Rendered)

	v, err = DecodeReply([]byte(` ["(1 2)", "(1\n 2)", "<ol/>"]` + "\n"))
	require.NoError(t, err)
	require.NotNil(t, v.Pretty)
	require.NotNil(t, v.Rendered)
	assert.Equal(t, "(1\n 2)", *v.Pretty)
	assert.Equal(t, "<ol/>", *v.Rendered)

	v, err = DecodeReply([]byte(`["x", null, "r"]`))
	require.NoError(t, err)
	assert.Nil(t, v.Pretty)
	assert.Equal(t, "r", *v.Rendered)

	_, err = DecodeReply([]byte(`{"fault": "car: contract violation"}`))
	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "car: contract violation", f.Message)

	for _, bad := range []string{``, `[]`, `[null]`, `["a","b","c","d"]`, `{}`, `3`, `[1]`, `{"fault": `} {
		_, err := DecodeReply([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedReply, bad)
	}
}

func TestEncodeReply(t *testing.T) {
	pretty, rendered := "P", "R"
	testCases := []struct {
		In  result.Value
		Out string
	}{
		{result.Text("x"), `["x"]`},
		{result.Value{Raw: "x", Pretty: &pretty}, `["x","P"]`},
		{result.Value{Raw: "x", Rendered: &rendered}, `["x",null,"R"]`},
	}
	for _, tc := range testCases {
		data, err := EncodeReply(tc.In)
		require.NoError(t, err)
		assert.Equal(t, tc.Out, string(data))

		back, err := DecodeReply(data)
		require.NoError(t, err)
		assert.Equal(t, tc.In, back)
	}
}

func TestMock(t *testing.T) {
	rec := newRecorder()
	m := NewMock("42", WithMockSync())
	m.Bind(rec)

	require.NoError(t, m.Send("eval", "(answer)\n", true))
	require.NoError(t, m.Send("eval", "(ignored)\n", false))
	assert.Len(t, rec.values, 1)
	assert.Equal(t, "42", rec.values[0].Raw)
	assert.Equal(t, []string{"(answer)\n", "(ignored)\n"}, m.Payloads())
}

func TestMockHandlerAsync(t *testing.T) {
	rec := newRecorder()
	m := NewMockHandler(func(payload string) (result.Value, error) {
		if payload == "(fail)" {
			return result.Value{}, errors.New("failed")
		}
		return result.Text("<" + payload + ">"), nil
	}, WithMockDelay(time.Millisecond))
	m.Bind(rec)

	require.NoError(t, m.Send("eval", "(ok)\n", true))
	rec.await(t, 1)
	require.NoError(t, m.Send("eval", "(fail)\n", true))
	rec.await(t, 1)
	require.NoError(t, m.Close())

	require.Len(t, rec.values, 1)
	assert.Equal(t, "<(ok)>", rec.values[0].Raw)
	require.Len(t, rec.faults, 1)
	assert.EqualError(t, rec.faults[0], "failed")
}

func TestEcho(t *testing.T) {
	rec := newRecorder()
	m := NewEcho(WithMockSync())
	m.Bind(rec)
	require.NoError(t, m.Send("eval", "(+ 1 2)\n", true))
	assert.Equal(t, "(+ 1 2)", rec.values[0].Raw)
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil || req.Kind != "eval" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch req.Payload {
		case "(+ 1 2)\n":
			w.Write([]byte(`["3", "three"]`))
		case "(car '())\n":
			w.Write([]byte(`{"fault": "car: contract violation"}`))
		default:
			http.Error(w, "unknown", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	rec := newRecorder()
	h := NewHTTP(srv.URL, WithHTTPTimeout(5*time.Second))
	h.Bind(rec)

	require.NoError(t, h.Send("eval", "(+ 1 2)\n", true))
	rec.await(t, 1)
	require.NoError(t, h.Send("eval", "(car '())\n", true))
	rec.await(t, 1)
	require.NoError(t, h.Send("eval", "(what)\n", true))
	rec.await(t, 1)
	require.NoError(t, h.Close())

	require.Len(t, rec.values, 1)
	assert.Equal(t, "3", rec.values[0].Raw)
	assert.Equal(t, "three", *rec.values[0].Pretty)

	require.Len(t, rec.faults, 2)
	var f *Fault
	assert.True(t, errors.As(rec.faults[0], &f))
	assert.ErrorContains(t, rec.faults[1], "500")
}

func TestProcess(t *testing.T) {
	rec := newRecorder()
	p, err := NewProcess(`sh -c 'while read -r line; do echo "[\"ok\", \"OK\"]"; done'`)
	require.NoError(t, err)
	p.Bind(rec)

	require.NoError(t, p.Send("eval", "(a)\n", true))
	require.NoError(t, p.Send("eval", "(b)\n", true))
	rec.await(t, 2)
	require.NoError(t, p.Close())

	require.Len(t, rec.values, 2)
	assert.Equal(t, "ok", rec.values[1].Raw)
	assert.Equal(t, "OK", *rec.values[1].Pretty)
	assert.Empty(t, rec.faults)
}

func TestProcessExit(t *testing.T) {
	rec := newRecorder()
	p, err := NewProcess(`sh -c 'read -r line; echo "{\"fault\": \"no\"}"; exit 3'`)
	require.NoError(t, err)
	p.Bind(rec)

	require.NoError(t, p.Send("eval", "(a)\n", true))
	rec.await(t, 2)

	require.Len(t, rec.faults, 2)
	assert.EqualError(t, rec.faults[0], "no")
	assert.ErrorContains(t, rec.faults[1], "evaluator exited")

	assert.Error(t, p.Send("eval", "(b)\n", true))
	assert.NoError(t, p.Close())
}

func TestProcessCommand(t *testing.T) {
	_, err := NewProcess("")
	assert.Error(t, err)

	_, err = NewProcess(`sh -c 'unterminated`)
	assert.Error(t, err)

	_, err = NewProcess("/nonexistent/evaluator")
	assert.Error(t, err)
}
