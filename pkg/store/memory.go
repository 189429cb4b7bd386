package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps scans in memory. It is used by tests and by server
// deployments that run without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[uuid.UUID]*Scan
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scans: make(map[uuid.UUID]*Scan)}
}

// Put archives a scan.
func (s *MemoryStore) Put(ctx context.Context, scan *Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans[scan.ID] = scan
	return nil
}

// Get retrieves a scan by ID.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scan, ok := s.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return scan, nil
}

// List returns the most recent scans, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	scans := make([]*Scan, 0, len(s.scans))
	for _, scan := range s.scans {
		scans = append(scans, scan)
	}
	s.mu.RUnlock()

	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	if len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}

// Close is a no-op.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }
