// Package memory provides an in-memory ledger.DurableStore (for testing/dev).
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tarjetacolmado/ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	collections map[ledger.Collection]json.RawMessage
	runs        []ledger.AuditRun

	// injected write failures, see FailOn
	failOn map[ledger.Collection]error
}

func New() *Store {
	return &Store{
		collections: make(map[ledger.Collection]json.RawMessage),
		failOn:      make(map[ledger.Collection]error),
	}
}

// Load returns a copy of the stored payload.
func (m *Store) Load(_ context.Context, name ledger.Collection) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.collections[name]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), p...), true, nil
}

// Save replaces one collection.
func (m *Store) Save(_ context.Context, name ledger.Collection, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[name]; err != nil {
		return err
	}
	m.collections[name] = append(json.RawMessage(nil), payload...)
	return nil
}

// SaveBatch replaces several collections atomically.
func (m *Store) SaveBatch(_ context.Context, batch []ledger.CollectionPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all first (atomic check)
	for _, b := range batch {
		if err := m.failOn[b.Name]; err != nil {
			return err
		}
	}
	for _, b := range batch {
		m.collections[b.Name] = append(json.RawMessage(nil), b.Payload...)
	}
	return nil
}

// Put seeds a raw payload, bypassing failure injection. Used to stage legacy
// records in tests.
func (m *Store) Put(name ledger.Collection, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = json.RawMessage(payload)
}

// FailOn makes every later write of name return err. A nil err clears it.
func (m *Store) FailOn(name ledger.Collection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, name)
		return
	}
	m.failOn[name] = err
}

func (m *Store) SaveAuditRun(_ context.Context, run ledger.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Store) AuditRuns(_ context.Context, limit int) ([]ledger.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]ledger.AuditRun, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Reset deletes all data.
func (m *Store) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[ledger.Collection]json.RawMessage)
	m.runs = nil
	return nil
}
