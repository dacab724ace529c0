// Package store persists evaluation transcripts.
package store

import "time"

// Entry is one evaluation: the source sent to the evaluator and its reply
// or fault.
type Entry struct {
	ID       int64
	Session  string
	Seq      int
	Source   string
	Raw      string
	Pretty   string
	Rendered string
	Fault    string
	Latency  time.Duration
	At       time.Time
}

// Failed returns true if the evaluator reported a fault.
func (e Entry) Failed() bool {
	return e.Fault != ""
}

// Summary describes one session.
type Summary struct {
	Session string
	Entries int
	Faults  int
	First   time.Time
	Last    time.Time
}

// Transcript is the interface for transcript persistence.
type Transcript interface {
	// Record appends an entry. ID and At are filled in when zero.
	Record(e Entry) (Entry, error)
	// History returns the most recent entries, newest first. A limit of 0
	// returns everything.
	History(limit int) ([]Entry, error)
	// Session returns the entries of one session in the order recorded.
	Session(id string) ([]Entry, error)
	// Sessions summarizes sessions, most recent first.
	Sessions(limit int) ([]Summary, error)
	// Close releases resources.
	Close() error
}
