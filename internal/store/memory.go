package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

// Compile-time check: MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for tests and single-shot runs.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]map[string]string
	checkpoint *Checkpoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]string)}
}

func (s *MemoryStore) Put(_ context.Context, recs ...*record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.records[rec.Key] = encodeRecord(rec)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*record.Record, error) {
	s.mu.RLock()
	m, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", record.ErrNotFound, key)
	}
	return decodeRecord(m)
}

func (s *MemoryStore) List(_ context.Context) ([]*record.Record, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	out := make([]*record.Record, 0, len(keys))
	for _, k := range keys {
		rec, err := s.Get(context.Background(), k)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = &cp
	return nil
}

func (s *MemoryStore) LoadCheckpoint(_ context.Context) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.checkpoint == nil {
		return Checkpoint{}, false, nil
	}
	return *s.checkpoint, true, nil
}

func (s *MemoryStore) ClearCheckpoint(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = nil
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
