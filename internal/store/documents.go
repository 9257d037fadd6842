package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/query"
)

// Get returns the document stored under (collection, key).
// A missing document is a lookup error.
func (s *Store) Get(ctx context.Context, collection, key string) (doc.Map, error) {
	m, _, err := getDoc(ctx, s.db, collection, key)
	return m, err
}

// Upsert stores m under (collection, key), replacing any existing document.
func (s *Store) Upsert(ctx context.Context, collection, key string, m doc.Map) error {
	if err := upsertDoc(ctx, s.db, collection, key, m); err != nil {
		return err
	}
	s.metrics.wrote(collection, 1)
	s.logger.Debug("document written", "collection", collection, "key", key)
	return nil
}

// Update applies a partial update to the document under (collection, key).
// Only the paths named in u change. A missing document is a lookup error.
func (s *Store) Update(ctx context.Context, collection, key string, u doc.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s/%s: begin tx: %w", collection, key, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := updateDoc(ctx, tx, collection, key, u); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s/%s: commit: %w", collection, key, err)
	}
	s.metrics.wrote(collection, 1)
	s.logger.Debug("document updated", "collection", collection, "key", key, "paths", u.Paths())
	return nil
}

// Delete removes the document under (collection, key). Deleting a missing
// document is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Find returns the documents of collection matching filter, ordered by the
// orderBy field paths and then by key. A nil filter matches every document.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, collection string, filter query.Predicate, orderBy ...string) ([]doc.Map, error) {
	return findDocs(ctx, s.db, query.Query{Collection: collection, Filter: filter, OrderBy: orderBy})
}

func getDoc(ctx context.Context, q queryer, collection, key string) (doc.Map, string, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND key = ?`, collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", errs.Lookup("store.get", "%s/%s not found", collection, key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	m, err := doc.UnmarshalMap([]byte(raw))
	if err != nil {
		return nil, "", fmt.Errorf("get %s/%s: decode: %w", collection, key, err)
	}
	return m, raw, nil
}

func upsertDoc(ctx context.Context, q queryer, collection, key string, m doc.Map) error {
	data, err := doc.Marshal(m)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, key, doc)
		VALUES (?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET doc = excluded.doc
	`, collection, key, string(data))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return nil
}

func updateDoc(ctx context.Context, q queryer, collection, key string, u doc.Update) error {
	m, _, err := getDoc(ctx, q, collection, key)
	if err != nil {
		return err
	}
	updated, err := doc.Apply(m, u)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	data, err := doc.Marshal(updated)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE documents SET doc = ? WHERE collection = ? AND key = ?`,
		string(data), collection, key); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	return nil
}

func findDocs(ctx context.Context, q queryer, qry query.Query) ([]doc.Map, error) {
	sqlText, params, err := query.Compile(qry)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", qry.Collection, err)
	}
	defer rows.Close()

	docs := []doc.Map{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("find %s: scan: %w", qry.Collection, err)
		}
		m, err := doc.UnmarshalMap([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("find %s: decode %s: %w", qry.Collection, key, err)
		}
		docs = append(docs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: iterate: %w", qry.Collection, err)
	}
	return docs, nil
}
