package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Document is a JSON body stored under a unique key with flat string
// metadata used for filtering.
type Document struct {
	Key       string            `json:"key"`
	Body      json.RawMessage   `json:"body"`
	Metadata  map[string]string `json:"metadata"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Put inserts or replaces the document stored under key.
func (db *DB) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO documents (key, body, metadata)
		VALUES ($1, $2::jsonb, $3::jsonb)
		ON CONFLICT (key) DO UPDATE
		SET body = EXCLUDED.body, metadata = EXCLUDED.metadata, updated_at = NOW()`,
		key, string(body), meta,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("failed to put document %s (%s): %w", key, pgErr.Code, err)
		}
		return fmt.Errorf("failed to put document %s: %w", key, err)
	}
	return nil
}

// Get returns the document under key, or nil when there is none.
func (db *DB) Get(ctx context.Context, key string) (*Document, error) {
	row := db.pool.QueryRow(ctx,
		"SELECT key, body, metadata, updated_at FROM documents WHERE key = $1",
		key,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return doc, nil
}

// Query returns every document whose metadata contains all filter pairs,
// oldest first.
func (db *DB) Query(ctx context.Context, filter map[string]string) ([]Document, error) {
	meta, err := marshalMetadata(filter)
	if err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx, `
		SELECT key, body, metadata, updated_at FROM documents
		WHERE metadata @> $1::jsonb
		ORDER BY updated_at, key`,
		meta,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc  Document
		body []byte
		meta []byte
	)
	if err := row.Scan(&doc.Key, &body, &meta, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Body = json.RawMessage(body)
	if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata on %s: %w", doc.Key, err)
	}
	return &doc, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("invalid metadata: %w", err)
	}
	return string(b), nil
}
