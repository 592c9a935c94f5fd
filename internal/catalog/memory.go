package catalog

import (
	"context"
	"math/rand"
	"sync"

	"github.com/sundog75/autocoder/pkg/models"
)

// MemoryStore is an in-memory Store used by pool and scheduler unit tests
// that need to drive many claim/release cycles quickly without paying for
// disk-backed SQLite per test. It implements the exact same Store contract
// as SQLiteStore, so tests written against it exercise real admission and
// claim logic, not a simplified stand-in.
type MemoryStore struct {
	mu       sync.Mutex
	features map[int64]models.Feature
}

// NewMemoryStore builds a MemoryStore seeded with the given features.
func NewMemoryStore(features []models.Feature) *MemoryStore {
	m := &MemoryStore{features: make(map[int64]models.Feature, len(features))}
	for _, f := range features {
		m.features[f.ID] = f
	}
	return m
}

// Snapshot implements Store.
func (m *MemoryStore) Snapshot(ctx context.Context) ([]models.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Feature, 0, len(m.features))
	for _, f := range m.features {
		out = append(out, f)
	}
	return out, nil
}

// ClaimForCoding implements Store.
func (m *MemoryStore) ClaimForCoding(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.features[id]
	if !ok {
		return ErrNotFound
	}
	if f.Passes {
		return ErrAlreadyPasses
	}
	if f.InProgress {
		return ErrAlreadyInProgress
	}
	f.InProgress = true
	m.features[id] = f
	return nil
}

// VerifyResumable implements Store.
func (m *MemoryStore) VerifyResumable(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.features[id]
	if !ok {
		return ErrNotFound
	}
	if f.Passes {
		return ErrAlreadyPasses
	}
	if !f.InProgress {
		return ErrNotInProgress
	}
	return nil
}

// ReleaseInProgress implements Store.
func (m *MemoryStore) ReleaseInProgress(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.features[id]
	if !ok {
		return ErrNotFound
	}
	f.InProgress = false
	m.features[id] = f
	return nil
}

// CountPassing implements Store.
func (m *MemoryStore) CountPassing(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, f := range m.features {
		if f.Passes {
			n++
		}
	}
	return n, nil
}

// RandomPassingNotInProgress implements Store.
func (m *MemoryStore) RandomPassingNotInProgress(ctx context.Context) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []int64
	for id, f := range m.features {
		if f.Passes && !f.InProgress {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}
	return candidates[rand.Intn(len(candidates))], true, nil
}

// HasAnyFeatures implements Store.
func (m *MemoryStore) HasAnyFeatures(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.features) > 0, nil
}

// Path implements Store. MemoryStore has no backing file.
func (m *MemoryStore) Path() string { return "" }

// Close implements Store. No-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }

// MarkPasses flips a feature to passing and clears in-progress, mirroring
// SQLiteStore.MarkPasses for tests that simulate a worker verifying a
// feature.
func (m *MemoryStore) MarkPasses(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.features[id]
	if !ok {
		return ErrNotFound
	}
	f.Passes = true
	f.InProgress = false
	m.features[id] = f
	return nil
}

var _ Store = (*MemoryStore)(nil)
