package store

import (
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory transcript.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory creates a new in-memory transcript.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends an entry.
func (m *Memory) Record(e Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.entries = append(m.entries, e)
	return e, nil
}

// History returns the most recent entries, newest first.
func (m *Memory) History(limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Session returns the entries of one session.
func (m *Memory) Session(id string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Session == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// Sessions summarizes sessions, most recent first.
func (m *Memory) Sessions(limit int) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := make(map[string]*Summary)
	var out []*Summary
	for _, e := range m.entries {
		s, ok := byID[e.Session]
		if !ok {
			s = &Summary{Session: e.Session, First: e.At}
			byID[e.Session] = s
			out = append(out, s)
		}
		s.Entries++
		if e.Failed() {
			s.Faults++
		}
		s.Last = e.At
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Last.After(out[j].Last) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	res := make([]Summary, len(out))
	for i, s := range out {
		res[i] = *s
	}
	return res, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}
