// Package provider connects a session to an external evaluator.
//
// Requests are JSON objects {"kind": ..., "payload": ...}. A reply is either
// an array [raw, pretty, rendered] whose last two elements are optional, or
// an object {"fault": message}.
package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"nickandperla.net/notebook/internal/eval"
	"nickandperla.net/notebook/internal/result"
)

var (
	_ eval.Transport = (*Mock)(nil)
	_ eval.Transport = (*Process)(nil)
	_ eval.Transport = (*HTTP)(nil)
)

// ErrMalformedReply is returned for a reply in neither accepted shape.
var ErrMalformedReply = errors.New("malformed evaluator reply")

// Request is the wire form of one Send.
type Request struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
}

// Fault is an error reported by the evaluator itself.
type Fault struct {
	Message string
}

func (f *Fault) Error() string {
	return f.Message
}

type faultReply struct {
	Fault *string `json:"fault"`
}

// DecodeReply parses one evaluator reply.
func DecodeReply(data []byte) (result.Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return result.Value{}, ErrMalformedReply
	}

	switch data[0] {
	case '{':
		var f faultReply
		if err := json.Unmarshal(data, &f); err != nil {
			return result.Value{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if f.Fault == nil {
			return result.Value{}, fmt.Errorf("%w: object without fault", ErrMalformedReply)
		}
		return result.Value{}, &Fault{Message: *f.Fault}
	case '[':
		var parts []*string
		if err := json.Unmarshal(data, &parts); err != nil {
			return result.Value{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if len(parts) == 0 || len(parts) > 3 || parts[0] == nil {
			return result.Value{}, fmt.Errorf("%w: %d elements", ErrMalformedReply, len(parts))
		}
		v := result.Value{Raw: *parts[0]}
		if len(parts) > 1 {
			v.Pretty = parts[1]
		}
		if len(parts) > 2 {
			v.Rendered = parts[2]
		}
		return v, nil
	}
	return result.Value{}, fmt.Errorf("%w: %.20q", ErrMalformedReply, data)
}

// EncodeReply is the inverse of DecodeReply for values.
func EncodeReply(v result.Value) ([]byte, error) {
	parts := []*string{&v.Raw}
	if v.Pretty != nil || v.Rendered != nil {
		parts = append(parts, v.Pretty)
	}
	if v.Rendered != nil {
		parts = append(parts, v.Rendered)
	}
	return json.Marshal(parts)
}

// deliver hands a reply to r.
func deliver(r eval.Receiver, data []byte) {
	if r == nil {
		return
	}
	v, err := DecodeReply(data)
	if err != nil {
		r.Fault(err)
		return
	}
	r.Value(v)
}
