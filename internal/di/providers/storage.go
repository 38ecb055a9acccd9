package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/media/covers"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
	"github.com/listenupapp/bookreviews-server/internal/ratelimit"
)

// ImageStorages groups the local image directories.
type ImageStorages struct {
	Covers  *images.Storage
	Avatars *images.Storage
}

// ProvideImageStorages provides all image storage services.
func ProvideImageStorages(i do.Injector) (*ImageStorages, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	coverFiles, err := images.NewStorage(cfg.Storage.DataPath, "covers")
	if err != nil {
		return nil, fmt.Errorf("cover storage: %w", err)
	}

	avatarFiles, err := images.NewStorage(cfg.Storage.DataPath, "avatars")
	if err != nil {
		return nil, fmt.Errorf("avatar storage: %w", err)
	}

	log.Info("Image storages initialized")

	return &ImageStorages{
		Covers:  coverFiles,
		Avatars: avatarFiles,
	}, nil
}

// ProvideImageCache provides the image cache with its index loaded from disk.
func ProvideImageCache(i do.Injector) (*imagecache.Cache, error) {
	dbHandle := do.MustInvoke[*LocalDBHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache := imagecache.New(dbHandle.Store, log.WithComponent("imagecache"))
	if err := cache.LoadAll(context.Background()); err != nil {
		return nil, fmt.Errorf("load image cache: %w", err)
	}

	log.Info("Image cache loaded", "entries", cache.Len())

	return cache, nil
}

// DownloaderHandle wraps the image downloader and its per-host limiter.
type DownloaderHandle struct {
	*covers.Downloader
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *DownloaderHandle) Shutdown() error {
	h.limiter.Stop()
	return nil
}

// ProvideDownloader provides the HTTP image downloader used for covers and profile photos.
func ProvideDownloader(i do.Injector) (*DownloaderHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	// Two requests per second per host, bursts of five.
	limiter := ratelimit.New(2, 5)
	downloader := covers.NewDownloader(limiter, log.WithComponent("downloader"))

	return &DownloaderHandle{Downloader: downloader, limiter: limiter}, nil
}
