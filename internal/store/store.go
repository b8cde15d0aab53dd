// Package store abstracts a hierarchical key-value document store.
//
// Paths are "/"-separated: the first segment names a collection, the second
// a document, and any further segments address a field inside the document's
// JSON body ("recommendationQueue/tip-1/status"). Writing a nil value removes
// the addressed node.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no node exists at the path.
	ErrNotFound = errors.New("store: node not found")
	// ErrInvalidPath is returned for paths without a collection and document id.
	ErrInvalidPath = errors.New("store: invalid path")
)

// Entry is one child of a collection, ordered by Key in query results.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Store is implemented by the postgres, bolt and memory backends.
type Store interface {
	// Get returns the JSON encoding of the node at path.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set replaces the node at path with value.
	Set(ctx context.Context, path string, value any) error
	// Query returns the documents in collection whose field equals the given
	// string, ordered by document id.
	Query(ctx context.Context, collection, field, equals string) ([]Entry, error)
	// List returns every document in collection ordered by document id.
	List(ctx context.Context, collection string) ([]Entry, error)
	// Update applies every path->value write atomically: either all of them
	// are visible afterwards or none is.
	Update(ctx context.Context, updates map[string]any) error
	Ping(ctx context.Context) error
	Close() error
}
