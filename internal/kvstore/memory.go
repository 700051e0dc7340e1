package kvstore

import (
	"context"
	"sync"
)

// Memory is a volatile Backend. Setting Err makes every call fail with it.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	saves  int
	Err    error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Load returns a copy of the stored records.
func (m *Memory) Load(context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string][]byte, len(m.values))
	for k, v := range m.values {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

// Save stores value under key.
func (m *Memory) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = append([]byte(nil), value...)
	m.saves++
	return nil
}

// Reset replaces every record with values.
func (m *Memory) Reset(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values = make(map[string][]byte, len(values))
	for k, v := range values {
		m.values[k] = append([]byte(nil), v...)
	}
	return nil
}

// Saves returns the number of successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
