// Package postgres implements the document store on PostgreSQL JSONB columns.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/id"
)

//go:embed schema.sql
var schemaSQL string

// Store is a docstore.Store backed by a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("PostgreSQL document store connected")
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks a pooled connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{pool: s.pool, name: name}
}

type collection struct {
	pool *pgxpool.Pool
	name string
}

func (c *collection) Add(ctx context.Context, doc any) (string, error) {
	docID, err := id.Document()
	if err != nil {
		return "", err
	}
	data, err := docstore.Marshal(doc)
	if err != nil {
		return "", err
	}

	_, err = c.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		c.name, docID, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert %s document: %w", c.name, err)
	}
	return docID, nil
}

func (c *collection) Set(ctx context.Context, docID string, doc any) error {
	data, err := docstore.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		c.name, docID, string(data),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", c.name, docID, err)
	}
	return nil
}

func (c *collection) Get(ctx context.Context, docID string, dest any) error {
	var data []byte
	err := c.pool.QueryRow(ctx,
		`SELECT data::text FROM documents WHERE collection = $1 AND id = $2`,
		c.name, docID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", c.name, docID, docstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", c.name, docID, err)
	}
	return docstore.Document{ID: docID, Data: data}.Decode(dest)
}

func (c *collection) Update(ctx context.Context, docID string, fields map[string]any) error {
	if err := docstore.ValidateFields(fields); err != nil {
		return err
	}
	patch, err := docstore.Marshal(fields)
	if err != nil {
		return err
	}

	tag, err := c.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		c.name, docID, string(patch),
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, docID, err)
	}
	return requireRow(tag, c.name, docID)
}

func (c *collection) Delete(ctx context.Context, docID string) error {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		c.name, docID,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, docID, err)
	}
	return requireRow(tag, c.name, docID)
}

func (c *collection) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateField(q.OrderBy); err != nil {
		return nil, err
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	sql := `SELECT id, data::text FROM documents WHERE collection = $1 ORDER BY data -> $2::text ` + dir + `, id ASC`
	args := []any{c.name, q.OrderBy}
	if q.Limit > 0 {
		sql += ` LIMIT $3`
		args = append(args, q.Limit)
	}

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.Document, error) {
		var d docstore.Document
		var data []byte
		if err := row.Scan(&d.ID, &data); err != nil {
			return d, err
		}
		d.Data = data
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", c.name, err)
	}
	return docs, nil
}

func requireRow(tag pgconn.CommandTag, collection, docID string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, docID, docstore.ErrNotFound)
	}
	return nil
}
