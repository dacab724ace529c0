// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package result

import "sync"

// Value is an evaluator reply: the raw printed form, plus an optional
// pretty-printed form and an optional rendered form.
type Value struct {
	Raw      string
	Pretty   *string
	Rendered *string
}

// Text returns a Value holding only raw text.
func Text(raw string) Value {
	return Value{Raw: raw}
}

// Variant names, in display order.
const (
	VariantRaw      = "raw"
	VariantPretty   = "pretty"
	VariantRendered = "rendered"
)

type variant struct {
	name string
	text string
}

func (v Value) variants() []variant {
	out := []variant{{VariantRaw, v.Raw}}
	if v.Pretty != nil {
		out = append(out, variant{VariantPretty, *v.Pretty})
	}
	if v.Rendered != nil {
		out = append(out, variant{VariantRendered, *v.Rendered})
	}
	return out
}

// View displays one of the variants of a Value. It is attached to the
// result line of a document as a widget.
type View struct {
	mu       sync.Mutex
	value    Value
	variants []variant
	index    int
}

// NewView creates a View showing the raw variant.
func NewView(v Value) *View {
	return &View{value: v, variants: v.variants()}
}

// Value returns the value being displayed.
func (w *View) Value() Value {
	return w.value
}

// Variants returns the variant names available for display.
func (w *View) Variants() []string {
	out := make([]string, len(w.variants))
	for i, v := range w.variants {
		out[i] = v.name
	}
	return out
}

// Index returns the index of the displayed variant.
func (w *View) Index() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

// Update selects variant i, taken modulo the number of variants.
func (w *View) Update(i int) {
	n := len(w.variants)
	w.mu.Lock()
	w.index = ((i % n) + n) % n
	w.mu.Unlock()
}

// Cycle moves the selection by delta, wrapping in both directions, and
// returns the new index.
func (w *View) Cycle(delta int) int {
	n := len(w.variants)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index = ((w.index+delta)%n + n) % n
	return w.index
}

// Label returns the name of the displayed variant.
func (w *View) Label() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.variants[w.index].name
}

// Render returns the text of the displayed variant.
func (w *View) Render() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.variants[w.index].text
}
