// Package userdir resolves user ids to profiles with an in-memory cache in front of the
// document store, and keeps a local copy of each user's avatar.
package userdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/listenupapp/bookreviews-server/internal/blobstore"
	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
)

// TokenVerifier turns an identity token into a verified identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config sizes the user cache.
type Config struct {
	CacheCapacity int
	CacheTTL      time.Duration
}

// Deps are the collaborators of a Directory.
type Deps struct {
	Users    docstore.Collection
	Blobs    blobstore.Store
	Avatars  *images.Storage
	Images   *imagecache.Cache
	Verifier TokenVerifier
	Fetcher  ImageFetcher
	Logger   *slog.Logger
}

// Directory is the user directory.
type Directory struct {
	users    docstore.Collection
	blobs    blobstore.Store
	avatars  *images.Storage
	images   *imagecache.Cache
	verifier TokenVerifier
	fetcher  ImageFetcher
	logger   *slog.Logger

	cache *sturdyc.Client[domain.User]

	// lifeMu orders avatarWG.Add against Shutdown's Wait.
	lifeMu   sync.Mutex
	closed   bool
	avatarWG sync.WaitGroup
}

// New creates a Directory.
func New(cfg Config, deps Deps) *Directory {
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = 10000
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Directory{
		users:    deps.Users,
		blobs:    deps.Blobs,
		avatars:  deps.Avatars,
		images:   deps.Images,
		verifier: deps.Verifier,
		fetcher:  deps.Fetcher,
		logger:   deps.Logger,
		// Eviction only happens at capacity or TTL; ClearCache is the normal invalidation path.
		cache: sturdyc.New[domain.User](capacity, 8, ttl, 10),
	}
}

// Resolve returns the profile for userID, serving from the cache when possible.
// Concurrent misses for the same id share one remote fetch. A failed fetch is not cached.
func (d *Directory) Resolve(ctx context.Context, userID string) (*domain.User, bool) {
	if userID == "" {
		return nil, false
	}

	user, err := d.cache.GetOrFetch(ctx, userID, func(ctx context.Context) (domain.User, error) {
		u, err := d.fetch(ctx, userID)
		if err != nil {
			return domain.User{}, err
		}
		d.ensureAvatarAsync(ctx, u)
		return u, nil
	})
	if err != nil {
		d.logger.Warn("failed to resolve user",
			"user_id", userID,
			"error", err,
		)
		return nil, false
	}
	return &user, true
}

// UsernameOf returns the cached username without any I/O.
func (d *Directory) UsernameOf(userID string) (string, bool) {
	u, ok := d.cache.Get(userID)
	if !ok {
		return "", false
	}
	return u.Username, true
}

// Cached returns the cached profile without any I/O.
func (d *Directory) Cached(userID string) (domain.User, bool) {
	return d.cache.Get(userID)
}

// ClearCache drops every cached user.
func (d *Directory) ClearCache() {
	for _, key := range d.cache.ScanKeys() {
		d.cache.Delete(key)
	}
}

// CacheSize returns the number of cached users.
func (d *Directory) CacheSize() int {
	return d.cache.Size()
}

// Register creates (or replaces) the profile of the identity asserted by token.
// A photo that cannot be fetched or uploaded leaves the profile without an avatar.
func (d *Directory) Register(ctx context.Context, token string) (*domain.User, error) {
	ident, err := d.verifier.Verify(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid identity token").WithCause(err)
	}

	user := domain.User{
		ID:       ident.UserID,
		Username: ident.DisplayName,
	}
	if user.Username == "" {
		user.Username = ident.UserID
	}

	var avatar []byte
	if ident.PhotoURL != "" {
		avatar, err = d.uploadPhoto(ctx, ident)
		if err != nil {
			d.logger.Warn("failed to import profile photo",
				"user_id", user.ID,
				"error", err,
			)
		} else {
			user.AvatarRef = domain.AvatarBlobPath(user.ID)
		}
	}

	if err := d.users.Set(ctx, user.ID, user); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to create user")
	}

	if avatar != nil {
		d.storeAvatarLocally(ctx, user.ID, avatar)
	}
	d.cache.Set(user.ID, user)

	d.logger.Info("user registered", "user_id", user.ID, "has_avatar", user.HasAvatar())
	return &user, nil
}

// Update changes the display name and optionally the avatar. The cached profile is evicted
// and a new avatar replaces the local copy once the remote write succeeded.
func (d *Directory) Update(ctx context.Context, userID, displayName string, avatar []byte) error {
	if displayName == "" {
		return domainerrors.Validation("display name is required")
	}

	fields := map[string]any{domain.UserFieldUsername: displayName}
	if len(avatar) > 0 {
		path := domain.AvatarBlobPath(userID)
		if err := d.blobs.Upload(ctx, path, bytes.NewReader(avatar)); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to upload avatar")
		}
		fields[domain.UserFieldAvatarRef] = path
	}

	if err := d.users.Update(ctx, userID, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domainerrors.NotFoundf("user %s not found", userID)
		}
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to update user")
	}

	d.cache.Delete(userID)
	if len(avatar) > 0 {
		d.storeAvatarLocally(ctx, userID, avatar)
	}
	return nil
}

// Avatar returns the locally held avatar bytes for userID.
func (d *Directory) Avatar(userID string) ([]byte, bool) {
	if data, ok := d.images.Get(imagecache.AvatarKey(userID)); ok {
		return data, true
	}
	data, err := d.avatars.Get(userID)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Shutdown waits for in-flight avatar downloads.
func (d *Directory) Shutdown() error {
	d.lifeMu.Lock()
	d.closed = true
	d.lifeMu.Unlock()

	d.avatarWG.Wait()
	return nil
}

func (d *Directory) fetch(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	if err := d.users.Get(ctx, userID, &u); err != nil {
		return domain.User{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	if u.ID == "" {
		u.ID = userID
	}
	return u, nil
}

func (d *Directory) uploadPhoto(ctx context.Context, ident domain.Identity) ([]byte, error) {
	data, err := d.fetcher.Fetch(ctx, ident.PhotoURL)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	if err := d.blobs.Upload(ctx, domain.AvatarBlobPath(ident.UserID), bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("upload photo: %w", err)
	}
	return data, nil
}

// ensureAvatarAsync makes sure the avatar is held locally without blocking the caller.
// The task outlives the request that triggered it.
func (d *Directory) ensureAvatarAsync(ctx context.Context, user domain.User) {
	if !user.HasAvatar() {
		return
	}

	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	if d.closed {
		return
	}
	d.avatarWG.Add(1)
	go func() {
		defer d.avatarWG.Done()
		d.ensureAvatar(context.WithoutCancel(ctx), user)
	}()
}

func (d *Directory) ensureAvatar(ctx context.Context, user domain.User) {
	key := imagecache.AvatarKey(user.ID)

	if d.avatars.Exists(user.ID) {
		if d.images.Has(key) {
			return
		}
		data, err := d.avatars.Get(user.ID)
		if err == nil {
			if err := d.images.Put(ctx, key, data); err != nil {
				d.logger.Warn("failed to cache avatar", "user_id", user.ID, "error", err)
			}
			return
		}
	}

	var buf bytes.Buffer
	if err := d.blobs.Download(ctx, user.AvatarRef, &buf); err != nil {
		d.logger.Warn("failed to download avatar",
			"user_id", user.ID,
			"path", user.AvatarRef,
			"error", err,
		)
		return
	}
	d.storeAvatarLocally(ctx, user.ID, buf.Bytes())
}

func (d *Directory) storeAvatarLocally(ctx context.Context, userID string, data []byte) {
	if err := d.avatars.Save(userID, data); err != nil {
		d.logger.Warn("failed to save avatar file", "user_id", userID, "error", err)
	}
	if err := d.images.Put(ctx, imagecache.AvatarKey(userID), data); err != nil {
		d.logger.Warn("failed to cache avatar", "user_id", userID, "error", err)
	}
}
