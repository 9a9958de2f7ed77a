package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is a map-backed DocumentStore for tests and throwaway runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]json.RawMessage // collection -> id -> data
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), data...), nil
}

func (s *MemoryStore) Put(_ context.Context, collection, id string, data json.RawMessage, merge bool) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	if merge {
		merged, err := mergeJSON(s.docs[collection][id], data)
		if err != nil {
			return time.Time{}, err
		}
		data = merged
	}
	s.docs[collection][id] = append(json.RawMessage(nil), data...)
	return time.Now().UTC(), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], id)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, collection)
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.docs[collection]))
	for id, data := range s.docs[collection] {
		out[id] = append(json.RawMessage(nil), data...)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
