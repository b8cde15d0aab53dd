package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps every document as a JSONB row of the documents table
// (see migrations/). Writes lock the touched rows with SELECT ... FOR UPDATE
// inside one transaction, so Update is atomic across documents.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL. The pool is owned by the
// store and closed by Close.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	var body []byte
	err = s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		p.collection, p.id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	v, ok := getIn(doc, p.field)
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(v)
}

func (s *PgStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *PgStore) Query(ctx context.Context, collection, field, equals string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, body FROM documents
		WHERE collection = $1 AND body #>> $2 = $3
		ORDER BY id`, collection, splitField(field), equals)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PgStore) List(ctx context.Context, collection string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PgStore) Update(ctx context.Context, updates map[string]any) error {
	grouped, keys, err := planUpdate(updates)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, k := range keys {
		var body []byte
		err := tx.QueryRow(ctx,
			`SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			k.collection, k.id).Scan(&body)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock document %s/%s: %w", k.collection, k.id, err)
		}
		doc, err := decode(body)
		if err != nil {
			return fmt.Errorf("decode document %s/%s: %w", k.collection, k.id, err)
		}
		for _, w := range grouped[k] {
			doc = setIn(doc, w.path.field, w.value)
		}

		if doc == nil {
			if _, err := tx.Exec(ctx,
				`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				k.collection, k.id); err != nil {
				return fmt.Errorf("delete document %s/%s: %w", k.collection, k.id, err)
			}
			continue
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, body, updated_at)
			VALUES ($1, $2, $3::jsonb, NOW())
			ON CONFLICT (collection, id)
			DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
			k.collection, k.id, string(data)); err != nil {
			return fmt.Errorf("upsert document %s/%s: %w", k.collection, k.id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: id, Value: body})
	}
	return out, rows.Err()
}

var _ Store = (*PgStore)(nil)
