// Package sqlite implements the document store on an embedded SQLite database,
// keeping each document as a JSON text column.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/id"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is a docstore.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates or opens the database at path, applies pragmas and the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("SQLite document store opened", "path", path)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{store: s, name: name}
}

type collection struct {
	store *Store
	name  string
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

	now := c.store.now().UnixMilli()
	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.name, docID, string(data), now, now,
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

	now := c.store.now().UnixMilli()
	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		c.name, docID, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", c.name, docID, err)
	}
	return nil
}

func (c *collection) Get(ctx context.Context, docID string, dest any) error {
	var data string
	err := c.store.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		c.name, docID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", c.name, docID, docstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", c.name, docID, err)
	}
	return docstore.Document{ID: docID, Data: []byte(data)}.Decode(dest)
}

func (c *collection) Update(ctx context.Context, docID string, fields map[string]any) error {
	if err := docstore.ValidateFields(fields); err != nil {
		return err
	}
	patch, err := docstore.Marshal(fields)
	if err != nil {
		return err
	}

	// json_patch follows RFC 7396: top-level keys are replaced, nulls remove keys.
	res, err := c.store.db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?), updated_at = ? WHERE collection = ? AND id = ?`,
		string(patch), c.store.now().UnixMilli(), c.name, docID,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, docID, err)
	}
	return requireRow(res, c.name, docID)
}

func (c *collection) Delete(ctx context.Context, docID string) error {
	res, err := c.store.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		c.name, docID,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, docID, err)
	}
	return requireRow(res, c.name, docID)
}

func (c *collection) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateField(q.OrderBy); err != nil {
		return nil, err
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	query := `SELECT id, data FROM documents WHERE collection = ? ORDER BY json_extract(data, ?) ` + dir + `, id ASC`
	args := []any{c.name, "$." + q.OrderBy}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var docID, data string
		if err := rows.Scan(&docID, &data); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", c.name, err)
		}
		docs = append(docs, docstore.Document{ID: docID, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return docs, nil
}

func requireRow(res sql.Result, collection, docID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, docID, docstore.ErrNotFound)
	}
	return nil
}
