// Package kvfsm is a minimal in-memory key/value state machine,
// intentionally trivial: a reference raft.StateMachine good enough to
// exercise the core end-to-end, not a production store.
package kvfsm

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Op is the wire encoding of one committed command: Set writes
// Key=Value, and an empty Key is never valid.
type Op struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FSM is a mutex-protected map applying committed Set operations, in
// the shape of the teacher's apply func([]byte) ([]byte, error)
// callback: Apply(index, data) decodes data as an Op and returns the
// previous value (if any) as its response.
type FSM struct {
	mu   sync.RWMutex
	data map[string]string
}

// New constructs an empty FSM.
func New() *FSM {
	return &FSM{data: map[string]string{}}
}

// Apply decodes data as an Op and stores it, returning the value that
// was previously stored at Key (nil if none). index is accepted for
// interface compliance and ignored beyond the commit-order guarantee
// the core already provides.
func (f *FSM) Apply(index uint64, data []byte) ([]byte, error) {
	var op Op
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("kvfsm: decode op at index %d: %w", index, err)
	}
	if op.Key == "" {
		return nil, fmt.Errorf("kvfsm: op at index %d has empty key", index)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	prev, existed := f.data[op.Key]
	f.data[op.Key] = op.Value
	if !existed {
		return nil, nil
	}
	return []byte(prev), nil
}

// Get returns the current value for key, if any.
func (f *FSM) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

// EncodeSet encodes a Set(key, value) command for Submit.
func EncodeSet(key, value string) ([]byte, error) {
	return json.Marshal(Op{Key: key, Value: value})
}
