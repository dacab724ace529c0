// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package result

import (
	"sync"

	"github.com/google/uuid"

	"nickandperla.net/notebook/internal/document"
	"nickandperla.net/notebook/internal/expr"
)

// MarkID identifies a materialized result for the life of a session.
type MarkID string

// Mark ties a View to the region of the document it was written to. The
// region is owned by the surface; a Mark never caches a line number.
type Mark struct {
	ID     MarkID
	Handle document.MarkHandle
	View   *View
}

// Registry holds the result marks of one document.
type Registry struct {
	mu      sync.Mutex
	surface Surface
	marks   map[MarkID]*Mark
	order   []MarkID
}

// NewRegistry creates an empty registry over surface.
func NewRegistry(surface Surface) *Registry {
	return &Registry{
		surface: surface,
		marks:   make(map[MarkID]*Mark),
	}
}

// Add registers a surface mark carrying view.
func (r *Registry) Add(h document.MarkHandle, view *View) *Mark {
	m := &Mark{
		ID:     MarkID(uuid.NewString()),
		Handle: h,
		View:   view,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks[m.ID] = m
	r.order = append(r.order, m.ID)
	return m
}

// Get returns a live mark. Marks whose region was destroyed are pruned.
func (r *Registry) Get(id MarkID) (*Mark, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.marks[id]
	if !ok {
		return nil, false
	}
	if _, live := r.surface.FindMark(m.Handle); !live {
		r.drop(id)
		return nil, false
	}
	return m, true
}

// Span returns the current region of a mark.
func (r *Registry) Span(id MarkID) (expr.Span, bool) {
	m, ok := r.Get(id)
	if !ok {
		return expr.Span{}, false
	}
	return r.surface.FindMark(m.Handle)
}

// At returns the live mark whose region covers line.
func (r *Registry) At(line int) (*Mark, bool) {
	for _, m := range r.Marks() {
		span, ok := r.surface.FindMark(m.Handle)
		if ok && span.Start.Line <= line && line <= span.End.Line {
			return m, true
		}
	}
	return nil, false
}

// Marks returns the live marks in creation order.
func (r *Registry) Marks() []*Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	out := make([]*Mark, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.marks[id])
	}
	return out
}

// Len returns the number of live marks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	return len(r.order)
}

// Reset destroys every mark, on the surface too.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.marks {
		r.surface.ClearMark(m.Handle)
	}
	r.marks = make(map[MarkID]*Mark)
	r.order = nil
}

// prune drops marks destroyed by edits (caller must hold lock).
func (r *Registry) prune() {
	for _, id := range append([]MarkID(nil), r.order...) {
		if _, live := r.surface.FindMark(r.marks[id].Handle); !live {
			r.drop(id)
		}
	}
}

func (r *Registry) drop(id MarkID) {
	delete(r.marks, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
