package modestore

import (
	"context"
	"sync"
)

// Memory keeps audio-mode flags in process memory. State is lost on restart
// and is not shared between replicas; use Redis when running more than one.
type Memory struct {
	mu    sync.RWMutex
	modes map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{modes: make(map[string]bool)}
}

// AudioMode returns the stored flag, false when the contact is unknown.
func (m *Memory) AudioMode(_ context.Context, contactID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modes[contactID], nil
}

// SetAudioMode records the flag for the contact.
func (m *Memory) SetAudioMode(_ context.Context, contactID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[contactID] = enabled
	return nil
}

// Len returns the number of contacts with a recorded flag.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modes)
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
