package localdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Entity provides typed JSON storage for one key prefix.
type Entity[T any] struct {
	store  *Store
	prefix string
}

// NewEntity creates a new Entity for the given prefix.
func NewEntity[T any](store *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: store, prefix: prefix}
}

// Set stores entity under id, replacing any existing value.
func (e *Entity[T]) Set(ctx context.Context, id string, entity *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	return e.store.Set(ctx, e.prefix+id, data)
}

// Get retrieves an entity by id.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	data, err := e.store.Get(ctx, e.prefix+id)
	if err != nil {
		return nil, err
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &entity, nil
}

// Delete removes an entity by id. It is idempotent.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	return e.store.Delete(ctx, e.prefix+id)
}

// Exists reports whether an entity is stored under id.
func (e *Entity[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := e.store.Get(ctx, e.prefix+id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns an iterator over all entities with their ids.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[string, *T] {
	return func(yield func(string, *T) bool) {
		stop := errors.New("stop")
		err := e.store.Scan(ctx, e.prefix, func(key string, value []byte) error {
			var entity T
			if err := json.Unmarshal(value, &entity); err != nil {
				if e.store.logger != nil {
					e.store.logger.Warn("skipping malformed entity", "key", key, "error", err)
				}
				return nil
			}
			if !yield(strings.TrimPrefix(key, e.prefix), &entity) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) && e.store.logger != nil {
			e.store.logger.Warn("entity scan failed", "prefix", e.prefix, "error", err)
		}
	}
}
