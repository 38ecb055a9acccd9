package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/booklookup"
	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/identity"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/reviewstore"
	"github.com/listenupapp/bookreviews-server/internal/session"
	"github.com/listenupapp/bookreviews-server/internal/userdir"
)

// ProvideVerifier provides the identity token verifier.
func ProvideVerifier(i do.Injector) (*identity.Verifier, error) {
	cfg := do.MustInvoke[*config.Config](i)

	verifier, err := identity.NewVerifier(cfg.Identity.Secret, cfg.Identity.Issuer)
	if err != nil {
		return nil, fmt.Errorf("identity verifier: %w", err)
	}
	return verifier, nil
}

// ProvideBookLookup provides the book catalog client.
func ProvideBookLookup(i do.Injector) (*booklookup.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := booklookup.NewClient(booklookup.Config{
		BaseURL:           cfg.BookLookup.BaseURL,
		APIKey:            cfg.BookLookup.APIKey,
		RequestsPerSecond: cfg.BookLookup.RequestsPerSecond,
		Burst:             cfg.BookLookup.Burst,
		Timeout:           cfg.BookLookup.Timeout,
	}, log.WithComponent("booklookup"))

	log.Info("Book lookup client initialized", "base_url", cfg.BookLookup.BaseURL)

	return client, nil
}

// ProvideUserDirectory provides the cached user directory.
func ProvideUserDirectory(i do.Injector) (*userdir.Directory, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	docs := do.MustInvoke[*DocStoreHandle](i)
	blobs := do.MustInvoke[*BlobStoreHandle](i)
	storages := do.MustInvoke[*ImageStorages](i)
	imgs := do.MustInvoke[*imagecache.Cache](i)
	verifier := do.MustInvoke[*identity.Verifier](i)
	downloader := do.MustInvoke[*DownloaderHandle](i)

	return userdir.New(userdir.Config{
		CacheCapacity: cfg.Users.CacheCapacity,
		CacheTTL:      cfg.Users.CacheTTL,
	}, userdir.Deps{
		Users:    docs.Collection(domain.UsersCollection),
		Blobs:    blobs,
		Avatars:  storages.Avatars,
		Images:   imgs,
		Verifier: verifier,
		Fetcher:  downloader,
		Logger:   log.WithComponent("userdir"),
	}), nil
}

// ProvideReviewStore provides the review store.
func ProvideReviewStore(i do.Injector) (*reviewstore.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	docs := do.MustInvoke[*DocStoreHandle](i)
	blobs := do.MustInvoke[*BlobStoreHandle](i)
	storages := do.MustInvoke[*ImageStorages](i)
	imgs := do.MustInvoke[*imagecache.Cache](i)
	users := do.MustInvoke[*userdir.Directory](i)
	lookup := do.MustInvoke[*booklookup.Client](i)
	downloader := do.MustInvoke[*DownloaderHandle](i)

	return reviewstore.New(cfg.Feed.EnrichConcurrency, reviewstore.Deps{
		Reviews: docs.Collection(domain.ReviewsCollection),
		Blobs:   blobs,
		Users:   users,
		Lookup:  lookup,
		Images:  imgs,
		Covers:  storages.Covers,
		Fetcher: downloader,
		Logger:  log.WithComponent("reviewstore"),
	}), nil
}

// ProvideEnricher provides the feed item enricher.
func ProvideEnricher(i do.Injector) (*dto.Enricher, error) {
	users := do.MustInvoke[*userdir.Directory](i)
	imgs := do.MustInvoke[*imagecache.Cache](i)
	return dto.NewEnricher(users, imgs), nil
}

// ProvideSessionStore provides the persisted sign-in session.
func ProvideSessionStore(i do.Injector) (*session.Store, error) {
	db := do.MustInvoke[*LocalDBHandle](i)
	return session.NewStore(db.Store), nil
}
