// Package episode persists confirmed drift episodes: when and what kind
// of drift was confirmed, plus the window snapshot that triggered it.
package episode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Episode is one confirmed (or detected, for the non-confirming
// strategies) drift event.
type Episode struct {
	ID         string    `json:"id"`
	DetectedAt time.Time `json:"detected_at"`
	Type       string    `json:"type"`
	Strategy   int       `json:"strategy"`
	Confirmed  bool      `json:"confirmed"`
	// Values is the window snapshot captured at detection time.
	Values []float64 `json:"values,omitempty"`
}

// Store persists episodes across backends.
type Store interface {
	// Put stores an episode. First write wins per ID.
	Put(ctx context.Context, ep *Episode) error

	// Get retrieves an episode by ID. Returns nil if not found.
	Get(ctx context.Context, id string) (*Episode, error)

	// List returns the most recent episodes, newest first, up to limit.
	List(ctx context.Context, limit int) ([]*Episode, error)

	// Close releases resources
	Close() error
}

// MemoryStore is an in-memory episode store with optional file snapshot
type MemoryStore struct {
	mu       sync.RWMutex
	wg       sync.WaitGroup // in-flight snapshot writers
	store    map[string]*Episode
	snapshot string // optional file path for persistence
}

// NewMemoryStore creates an in-memory episode store
func NewMemoryStore(snapshotPath string) *MemoryStore {
	ms := &MemoryStore{
		store:    make(map[string]*Episode),
		snapshot: snapshotPath,
	}

	// Load from snapshot if exists
	if snapshotPath != "" {
		ms.loadSnapshot()
	}

	return ms
}

func (m *MemoryStore) Put(ctx context.Context, ep *Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// First write wins
	if _, exists := m.store[ep.ID]; exists {
		return nil
	}
	m.store[ep.ID] = ep

	// Persist snapshot if configured, async to avoid blocking the write
	// path; Close waits for in-flight writers.
	if m.snapshot != "" {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.saveSnapshot()
		}()
	}

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ep, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	return ep, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]*Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eps := make([]*Episode, 0, len(m.store))
	for _, ep := range m.store {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool {
		return eps[i].DetectedAt.After(eps[j].DetectedAt)
	})
	if limit > 0 && len(eps) > limit {
		eps = eps[:limit]
	}
	return eps, nil
}

func (m *MemoryStore) Close() error {
	m.wg.Wait()
	if m.snapshot != "" {
		return m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no snapshot yet
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var snapshot map[string]*Episode
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	for k, v := range snapshot {
		m.store[k] = v
	}

	return nil
}

func (m *MemoryStore) saveSnapshot() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m.store, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.snapshot, data, 0600)
}
