package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/notebook/pkg/notebook"
)

func newREPL(t *testing.T, opts ...notebook.Option) (*repl, *bytes.Buffer) {
	t.Helper()
	nb, err := notebook.New(append([]notebook.Option{notebook.WithEcho(), notebook.WithMemoryStore()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { nb.Close() })
	var buf bytes.Buffer
	return &repl{nb: nb, out: newPrinter(&buf, false), latest: -1}, &buf
}

func TestPrinterDocument(t *testing.T) {
	var buf bytes.Buffer
	newPrinter(&buf, true).document("(a)\n#; A\n")
	assert.Equal(t, "(a)\n"+colorCyan+"#; A"+colorReset+"\n", buf.String())

	buf.Reset()
	newPrinter(&buf, false).document("(a)\n#; A\n")
	assert.Equal(t, "(a)\n#; A\n", buf.String())
}

func TestREPLEvaluate(t *testing.T) {
	r, out := newREPL(t)

	r.evaluate("(+ 1 2)")
	assert.Equal(t, "#; (+ 1 2)\n", out.String())
	assert.Equal(t, 1, r.latest)

	out.Reset()
	r.evaluate("(define (f x)\n  x)")
	assert.Equal(t, "#; (define (f x)\n#;   x)\n", out.String())
	assert.Equal(t, "(+ 1 2)\n#; (+ 1 2)\n(define (f x)\n  x)\n#; (define (f x)\n#;   x)\n", r.nb.Text())
}

func TestREPLCommands(t *testing.T) {
	r, out := newREPL(t)
	r.evaluate("(a)")
	out.Reset()

	assert.True(t, r.command([]string{":doc"}))
	assert.Equal(t, "(a)\n#; (a)\n", out.String())

	out.Reset()
	assert.True(t, r.command([]string{":next"}))
	assert.Equal(t, "#; (a)\n", out.String())

	out.Reset()
	assert.True(t, r.command([]string{":stats"}))
	assert.Contains(t, out.String(), "1 sent, 0 faults")

	out.Reset()
	assert.True(t, r.command([]string{":history"}))
	assert.Contains(t, out.String(), "=> (a)")

	out.Reset()
	assert.True(t, r.command([]string{":clear"}))
	assert.Equal(t, "removed 1 result line\n", out.String())
	assert.Equal(t, "(a)\n", r.nb.Text())
	assert.Equal(t, -1, r.latest)

	out.Reset()
	assert.True(t, r.command([]string{":prev"}))
	assert.Equal(t, "no result\n", out.String())

	out.Reset()
	assert.True(t, r.command([]string{":ack"}))
	assert.Equal(t, "no error to acknowledge\n", out.String())

	out.Reset()
	assert.True(t, r.command([]string{":bogus"}))
	assert.Contains(t, out.String(), "unknown command :bogus")

	assert.False(t, r.command([]string{":quit"}))
}

func TestREPLLoadWrite(t *testing.T) {
	r, out := newREPL(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.scm")
	require.NoError(t, os.WriteFile(in, []byte("(x)\n(y)"), 0644))

	assert.True(t, r.command([]string{":load", in}))
	assert.Equal(t, "(x)\n(y)\n", out.String())

	out.Reset()
	assert.True(t, r.command([]string{":run"}))
	assert.Equal(t, "(x)\n#; (x)\n\n(y)\n#; (y)\n", out.String())

	saved := filepath.Join(dir, "out.scm")
	assert.True(t, r.command([]string{":write", saved}))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, r.nb.Text(), string(data))

	out.Reset()
	assert.True(t, r.command([]string{":load"}))
	assert.True(t, strings.HasPrefix(out.String(), "usage"))
}

func TestREPLFault(t *testing.T) {
	r, out := newREPL(t, notebook.WithMockEvaluator(func(string) (notebook.Value, error) {
		return notebook.Value{}, assert.AnError
	}))

	r.evaluate("(boom)")
	assert.Contains(t, out.String(), "error: ")
	assert.Contains(t, out.String(), "use :ack to continue")
	assert.Equal(t, -1, r.latest)

	out.Reset()
	r.evaluate("(again)")
	assert.Contains(t, out.String(), "resolve error before continuing")

	assert.True(t, r.command([]string{":ack"}))
	assert.False(t, r.nb.ErrorFlag())
}

func TestBatch(t *testing.T) {
	nb, err := notebook.New(notebook.WithText("(a)\n(b)"), notebook.WithEcho())
	require.NoError(t, err)
	defer nb.Close()

	var buf bytes.Buffer
	assert.Equal(t, 0, runBatch(nb, newPrinter(&buf, false)))
	assert.Equal(t, "(a)\n#; (a)\n\n(b)\n#; (b)\n", buf.String())
}
