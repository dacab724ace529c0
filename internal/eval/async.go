// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatch is one request handed to the evaluator.
type Dispatch struct {
	ID      string
	Seq     int
	Source  string
	Sent    time.Time
	Latency time.Duration
	Err     error

	done chan struct{}
}

// Done is closed once the evaluator has replied or faulted.
func (d *Dispatch) Done() <-chan struct{} {
	return d.done
}

// Dispatches tracks the requests of one session. At most one is
// outstanding at a time.
type Dispatches struct {
	mu      sync.Mutex
	current *Dispatch
	handles map[string]*Dispatch
	counter atomic.Int64
	faults  int
	total   time.Duration
}

// NewDispatches creates a new dispatch registry.
func NewDispatches() *Dispatches {
	return &Dispatches{
		handles: make(map[string]*Dispatch),
	}
}

// Register records source as the outstanding request.
func (r *Dispatches) Register(source string) *Dispatch {
	n := r.counter.Add(1)
	d := &Dispatch{
		ID:     fmt.Sprintf("_eval_%d", n),
		Seq:    int(n),
		Source: source,
		Sent:   time.Now(),
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.handles[d.ID] = d
	r.current = d
	r.mu.Unlock()
	return d
}

// Current returns the outstanding request, or nil.
func (r *Dispatches) Current() *Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Complete finishes the outstanding request with err and returns it.
func (r *Dispatches) Complete(err error) *Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.current
	if d == nil {
		return nil
	}
	r.current = nil
	d.Latency = time.Since(d.Sent)
	d.Err = err
	r.total += d.Latency
	if err != nil {
		r.faults++
	}
	close(d.done)
	return d
}

// Get retrieves a dispatch by ID.
func (r *Dispatches) Get(id string) *Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[id]
}

// Stats reports the number of requests sent, how many faulted and the
// total time spent waiting on completed ones.
func (r *Dispatches) Stats() (sent, faults int, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.counter.Load()), r.faults, r.total
}
