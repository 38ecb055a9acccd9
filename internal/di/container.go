// Package di provides dependency injection configuration for the book review server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/booklookup"
	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/di/providers"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/feed"
	"github.com/listenupapp/bookreviews-server/internal/identity"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/reviewstore"
	"github.com/listenupapp/bookreviews-server/internal/session"
	"github.com/listenupapp/bookreviews-server/internal/userdir"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideDocStore)
	do.Provide(injector, providers.ProvideBlobStore)
	do.Provide(injector, providers.ProvideLocalDB)
	do.Provide(injector, providers.ProvideImageStorages)
	do.Provide(injector, providers.ProvideImageCache)
	do.Provide(injector, providers.ProvideDownloader)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Services
	do.Provide(injector, providers.ProvideVerifier)
	do.Provide(injector, providers.ProvideBookLookup)
	do.Provide(injector, providers.ProvideUserDirectory)
	do.Provide(injector, providers.ProvideReviewStore)
	do.Provide(injector, providers.ProvideEnricher)
	do.Provide(injector, providers.ProvideSessionStore)

	// Workers
	do.Provide(injector, providers.ProvideRunner)
	do.Provide(injector, providers.ProvideFeedCoordinator)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the first feed load.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.DocStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.BlobStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.LocalDBHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*imagecache.Cache](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.ImageStorages](injector)
	_ = do.MustInvoke[*providers.DownloaderHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	_ = do.MustInvoke[*identity.Verifier](injector)
	_ = do.MustInvoke[*booklookup.Client](injector)
	_ = do.MustInvoke[*userdir.Directory](injector)
	_ = do.MustInvoke[*reviewstore.Store](injector)
	_ = do.MustInvoke[*dto.Enricher](injector)
	_ = do.MustInvoke[*session.Store](injector)

	_ = do.MustInvoke[*providers.RunnerHandle](injector)
	_ = do.MustInvoke[*feed.Coordinator](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	providers.LoadInitialFeed(injector)

	return nil
}
