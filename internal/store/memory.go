package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. It backs STORE_DRIVER=memory and the
// unit tests, which use the error overrides to simulate store failures.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]map[string]any
	writes int

	// Optional error overrides; set in tests to simulate failure paths.
	GetErr    error
	SetErr    error
	QueryErr  error
	ListErr   error
	UpdateErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]any)}
}

func (m *MemoryStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := getIn(m.docs[p.collection][p.id], p.field)
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(v)
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	return m.update(map[string]any{path: value})
}

func (m *MemoryStore) Query(_ context.Context, collection, field, equals string) ([]Entry, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	f := splitField(field)
	return m.entries(collection, func(doc any) bool { return matches(doc, f, equals) })
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Entry, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.entries(collection, func(any) bool { return true })
}

func (m *MemoryStore) Update(_ context.Context, updates map[string]any) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	return m.update(updates)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Writes returns how many successful Set/Update calls have been applied.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *MemoryStore) update(updates map[string]any) error {
	grouped, keys, err := planUpdate(updates)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		coll := m.docs[k.collection]
		if coll == nil {
			coll = make(map[string]any)
			m.docs[k.collection] = coll
		}
		doc := coll[k.id]
		for _, w := range grouped[k] {
			doc = setIn(doc, w.path.field, w.value)
		}
		if doc == nil {
			delete(coll, k.id)
		} else {
			coll[k.id] = doc
		}
	}
	m.writes++
	return nil
}

func (m *MemoryStore) entries(collection string, keep func(any) bool) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.docs[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Entry
	for _, id := range ids {
		if !keep(coll[id]) {
			continue
		}
		raw, err := json.Marshal(coll[id])
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: id, Value: raw})
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
