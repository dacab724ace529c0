// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package provider

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kballard/go-shellquote"

	"nickandperla.net/notebook/internal/eval"
)

// maxReply bounds one reply line.
const maxReply = 16 << 20

// Process is an evaluator running as a subprocess. Requests are written to
// its stdin and replies read from its stdout, one JSON document per line.
type Process struct {
	Command string

	mu      sync.Mutex
	recv    eval.Receiver
	wmu     sync.Mutex // guards stdin
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  io.Writer
	logger  *slog.Logger
	done    chan struct{}
	closing atomic.Bool
}

// ProcessOption configures the Process evaluator.
type ProcessOption func(*Process)

// WithProcessStderr sets where the subprocess's stderr goes.
func WithProcessStderr(w io.Writer) ProcessOption {
	return func(p *Process) { p.stderr = w }
}

// WithProcessLogger sets the logger.
func WithProcessLogger(l *slog.Logger) ProcessOption {
	return func(p *Process) { p.logger = l }
}

// NewProcess starts command, split with shell quoting rules.
func NewProcess(command string, opts ...ProcessOption) (*Process, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("evaluator command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("evaluator command is empty")
	}

	p := &Process{
		Command: command,
		stderr:  os.Stderr,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.cmd = exec.Command(argv[0], argv[1:]...)
	p.cmd.Stderr = p.stderr
	if p.stdin, err = p.cmd.StdinPipe(); err != nil {
		return nil, err
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start evaluator: %w", err)
	}
	p.logger.Info("evaluator started", "command", command, "pid", p.cmd.Process.Pid)

	go p.read(stdout)
	return p, nil
}

// Bind sets the receiver for replies.
func (p *Process) Bind(r eval.Receiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recv = r
}

func (p *Process) receiver() eval.Receiver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recv
}

// Send writes one request line.
func (p *Process) Send(kind, payload string, expectReply bool) error {
	line, err := json.Marshal(Request{Kind: kind, Payload: payload})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	select {
	case <-p.done:
		return errors.New("evaluator has exited")
	default:
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err = p.stdin.Write(line)
	return err
}

func (p *Process) read(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), maxReply)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		deliver(p.receiver(), sc.Bytes())
	}

	err := sc.Err()
	if werr := p.cmd.Wait(); err == nil {
		err = werr
	}
	close(p.done)

	if p.closing.Load() {
		return
	}
	if err == nil {
		err = errors.New("evaluator exited")
	} else {
		err = fmt.Errorf("evaluator exited: %w", err)
	}
	p.logger.Warn("evaluator stopped", "command", p.Command, "error", err)
	if r := p.receiver(); r != nil {
		r.Fault(err)
	}
}

// Close closes stdin and waits briefly for the subprocess to exit before
// killing it.
func (p *Process) Close() error {
	if !p.closing.CompareAndSwap(false, true) {
		return nil
	}
	p.wmu.Lock()
	err := p.stdin.Close()
	p.wmu.Unlock()
	if errors.Is(err, os.ErrClosed) {
		err = nil
	}

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return err
}
