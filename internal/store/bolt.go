package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps one bucket per collection with the document id as key and
// the JSON body as value. Every write runs in a single bolt transaction, which
// makes Update atomic across documents.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(p.collection))
		if b == nil {
			return ErrNotFound
		}
		raw := b.Get([]byte(p.id))
		if raw == nil {
			return ErrNotFound
		}
		doc, err := decode(raw)
		if err != nil {
			return err
		}
		v, ok := getIn(doc, p.field)
		if !ok {
			return ErrNotFound
		}
		out, err = json.Marshal(v)
		return err
	})
	return out, err
}

func (s *BoltStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *BoltStore) Query(_ context.Context, collection, field, equals string) ([]Entry, error) {
	f := splitField(field)
	return s.scan(collection, func(doc any) bool { return matches(doc, f, equals) })
}

func (s *BoltStore) List(_ context.Context, collection string) ([]Entry, error) {
	return s.scan(collection, func(any) bool { return true })
}

func (s *BoltStore) Update(_ context.Context, updates map[string]any) error {
	grouped, keys, err := planUpdate(updates)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, k := range keys {
			b, err := tx.CreateBucketIfNotExists([]byte(k.collection))
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", k.collection, err)
			}
			doc, err := decode(b.Get([]byte(k.id)))
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", k.collection, k.id, err)
			}
			for _, w := range grouped[k] {
				doc = setIn(doc, w.path.field, w.value)
			}
			if doc == nil {
				if err := b.Delete([]byte(k.id)); err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(k.id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// scan walks a bucket in key order, which bolt keeps sorted bytewise.
func (s *BoltStore) scan(collection string, keep func(any) bool) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			doc, err := decode(v)
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", collection, k, err)
			}
			if !keep(doc) {
				return nil
			}
			out = append(out, Entry{Key: string(k), Value: append(json.RawMessage(nil), v...)})
			return nil
		})
	})
	return out, err
}

var _ Store = (*BoltStore)(nil)
