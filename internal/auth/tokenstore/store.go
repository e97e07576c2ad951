// Package tokenstore owns the process-wide access token.
//
// The token is persisted under two equivalent keys ("token" and "accessToken")
// so that sessions written by older releases keep working. Writers always set
// both, readers prefer "token", and Clear removes both.
package tokenstore

import (
	"sync"

	"github.com/propdesk/propdesk/internal/constants"
)

// Store reads and writes the access token.
type Store interface {
	// Get returns the stored token, or "" when none is stored.
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// pick applies the key precedence to a key/value view of the storage.
func pick(values map[string]string) string {
	if token := values[constants.TokenKey]; token != "" {
		return token
	}
	return values[constants.AccessTokenKey]
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// NewMemoryWith creates an in-memory store holding token.
func NewMemoryWith(token string) *Memory {
	m := NewMemory()
	_ = m.Set(token)
	return m
}

// Get implements Store.
func (m *Memory) Get() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pick(m.values), nil
}

// Set implements Store.
func (m *Memory) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[constants.TokenKey] = token
	m.values[constants.AccessTokenKey] = token
	return nil
}

// Clear implements Store.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, constants.TokenKey)
	delete(m.values, constants.AccessTokenKey)
	return nil
}

// SetLegacy stores token under a single key, the way older releases did.
func (m *Memory) SetLegacy(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = token
}
