package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/blobstore"
	"github.com/listenupapp/bookreviews-server/internal/blobstore/cloudinary"
	"github.com/listenupapp/bookreviews-server/internal/blobstore/local"
	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/docstore/postgres"
	"github.com/listenupapp/bookreviews-server/internal/docstore/sqlite"
	"github.com/listenupapp/bookreviews-server/internal/localdb"
	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/sse"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.WithComponent("sse"))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// DocStoreHandle wraps the remote document store with shutdown capability.
type DocStoreHandle struct {
	docstore.Store
}

// Shutdown implements do.Shutdownable.
func (h *DocStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideDocStore opens the configured document store backend.
func ProvideDocStore(i do.Injector) (*DocStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		store docstore.Store
		err   error
	)
	switch cfg.DocStore.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		store, err = postgres.Open(ctx, cfg.DocStore.DSN, log.WithComponent("docstore"))
	default:
		store, err = sqlite.Open(cfg.DocStore.DSN, log.WithComponent("docstore"))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s document store: %w", cfg.DocStore.Driver, err)
	}

	log.Info("Document store initialized", "driver", cfg.DocStore.Driver)

	return &DocStoreHandle{Store: store}, nil
}

// BlobStoreHandle wraps the remote blob store with shutdown capability.
type BlobStoreHandle struct {
	blobstore.Store
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *BlobStoreHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideBlobStore opens the configured blob store backend.
func ProvideBlobStore(i do.Injector) (*BlobStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.BlobStore.Driver == "cloudinary" {
		store, err := cloudinary.New(cfg.BlobStore.CloudinaryURL, cfg.BlobStore.Folder, log.WithComponent("blobstore"))
		if err != nil {
			return nil, fmt.Errorf("open cloudinary blob store: %w", err)
		}
		log.Info("Blob store initialized", "driver", "cloudinary", "folder", cfg.BlobStore.Folder)
		return &BlobStoreHandle{Store: store}, nil
	}

	store, err := local.New(cfg.BlobStore.Path)
	if err != nil {
		return nil, fmt.Errorf("open local blob store: %w", err)
	}
	log.Info("Blob store initialized", "driver", "local", "path", cfg.BlobStore.Path)
	return &BlobStoreHandle{Store: store, close: store.Close}, nil
}

// LocalDBHandle wraps the local cache database with shutdown capability.
type LocalDBHandle struct {
	*localdb.Store
}

// Shutdown implements do.Shutdownable.
func (h *LocalDBHandle) Shutdown() error {
	return h.Close()
}

// ProvideLocalDB opens the Badger database holding the image cache and session.
func ProvideLocalDB(i do.Injector) (*LocalDBHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := filepath.Join(cfg.Storage.DataPath, "cache")
	db, err := localdb.New(path, log.WithComponent("localdb"))
	if err != nil {
		return nil, err
	}

	log.Info("Local cache database initialized", "path", path)

	return &LocalDBHandle{Store: db}, nil
}
