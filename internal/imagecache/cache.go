// Package imagecache is a look-aside cache of image bytes with a durable backing store
// and an in-memory index served without I/O.
package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/localdb"
)

const storePrefix = "img:"

// Cache maps image keys to bytes. Entries are replaced on conflict and never evicted.
type Cache struct {
	db     *localdb.Store
	index  atomic.Pointer[xsync.MapOf[Key, []byte]]
	logger *slog.Logger
}

// New creates an empty cache over db. Call LoadAll to populate the index from disk.
func New(db *localdb.Store, logger *slog.Logger) *Cache {
	c := &Cache{db: db, logger: logger}
	c.index.Store(xsync.NewMapOf[Key, []byte]())
	return c
}

// Put writes data under key. The durable write happens first; the index is only
// updated once it succeeded.
func (c *Cache) Put(ctx context.Context, key Key, data []byte) error {
	if key == "" {
		return domainerrors.Validation("image key is required")
	}
	if len(data) == 0 {
		return domainerrors.Validationf("image %s has no data", key)
	}

	if err := c.db.Set(ctx, storePrefix+string(key), data); err != nil {
		return fmt.Errorf("persist image %s: %w", key, err)
	}

	c.index.Load().Store(key, bytes.Clone(data))
	return nil
}

// Get returns the cached bytes for key from the in-memory index.
func (c *Cache) Get(key Key) ([]byte, bool) {
	return c.index.Load().Load(key)
}

// Has reports whether key is indexed.
func (c *Cache) Has(key Key) bool {
	_, ok := c.Get(key)
	return ok
}

// Len returns the number of indexed images.
func (c *Cache) Len() int {
	return c.index.Load().Size()
}

// LoadAll rebuilds the index from every persisted entry and swaps it in.
// Entries indexed before the call but missing on disk are dropped.
func (c *Cache) LoadAll(ctx context.Context) error {
	fresh := xsync.NewMapOf[Key, []byte]()

	err := c.db.Scan(ctx, storePrefix, func(k string, value []byte) error {
		data := make([]byte, len(value))
		copy(data, value)
		fresh.Store(Key(k[len(storePrefix):]), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load image cache: %w", err)
	}

	c.index.Store(fresh)
	if c.logger != nil {
		c.logger.Info("image cache loaded", "entries", fresh.Size())
	}
	return nil
}

// Keys returns every indexed key.
func (c *Cache) Keys() []Key {
	idx := c.index.Load()
	keys := make([]Key, 0, idx.Size())
	idx.Range(func(k Key, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
