package cache

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// MemoryStore is a process-local store for tests and cacheless runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entity.Fingerprint]memoryEntry
}

type memoryEntry struct {
	blob      []byte
	createdAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[entity.Fingerprint]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, fp entity.Fingerprint) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[fp]
	if !ok {
		return nil, common.ErrNotFound
	}
	blob := make([]byte, len(e.blob))
	copy(blob, e.blob)
	return blob, nil
}

func (s *MemoryStore) Put(_ context.Context, fp entity.Fingerprint, blob []byte) error {
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.mu.Lock()
	s.entries[fp] = memoryEntry{blob: cp, createdAt: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Contains(_ context.Context, fp entity.Fingerprint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[fp]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]EntryMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EntryMeta, 0, len(s.entries))
	for fp, e := range s.entries {
		out = append(out, EntryMeta{
			Fingerprint: fp,
			Size:        len(e.blob),
			CreatedAt:   e.createdAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.entries))
	s.entries = make(map[entity.Fingerprint]memoryEntry)
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
