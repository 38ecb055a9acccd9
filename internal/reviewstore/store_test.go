package reviewstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/blobstore/local"
	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/docstore/sqlite"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/localdb"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
)

type fakeUsers struct {
	mu       sync.Mutex
	clears   int
	resolved []string
	events   []string
}

func (f *fakeUsers) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.events = append(f.events, "clear")
}

func (f *fakeUsers) Resolve(_ context.Context, userID string) (*domain.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, userID)
	f.events = append(f.events, "resolve")
	if userID == "ghost" {
		return nil, false
	}
	return &domain.User{ID: userID}, true
}

type fakeLookup struct {
	results map[string]domain.BookDetails
	calls   atomic.Int32
}

func (f *fakeLookup) Lookup(_ context.Context, title, author string) domain.BookDetails {
	f.calls.Add(1)
	return f.results[title+"|"+author]
}

type fakeFetcher struct {
	images map[string][]byte
	calls  atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	data, ok := f.images[url]
	if !ok {
		return nil, errors.New("status 404")
	}
	return data, nil
}

// flakyReviews injects failures into the review collection.
type flakyReviews struct {
	docstore.Collection
	failAdd    bool
	failUpdate bool
	failQuery  bool
}

func (f *flakyReviews) Add(ctx context.Context, doc any) (string, error) {
	if f.failAdd {
		return "", errors.New("backend unavailable")
	}
	return f.Collection.Add(ctx, doc)
}

func (f *flakyReviews) Update(ctx context.Context, id string, fields map[string]any) error {
	if f.failUpdate {
		return errors.New("backend unavailable")
	}
	return f.Collection.Update(ctx, id, fields)
}

func (f *flakyReviews) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if f.failQuery {
		return nil, errors.New("backend unavailable")
	}
	return f.Collection.Query(ctx, q)
}

type testEnv struct {
	store   *Store
	reviews *flakyReviews
	users   *fakeUsers
	lookup  *fakeLookup
	fetcher *fakeFetcher
	cache   *imagecache.Cache
	covers  *images.Storage
	blobs   *local.Store
}

func setupTestStore(t *testing.T) *testEnv {
	t.Helper()
	tmp := t.TempDir()

	docs, err := sqlite.Open(filepath.Join(tmp, "documents.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	blobs, err := local.New(filepath.Join(tmp, "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	coverFiles, err := images.NewStorage(tmp, "covers")
	require.NoError(t, err)

	db, err := localdb.New("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		reviews: &flakyReviews{Collection: docs.Collection(domain.ReviewsCollection)},
		users:   &fakeUsers{},
		lookup: &fakeLookup{results: map[string]domain.BookDetails{
			"dune|herbert": {Title: "Dune", Authors: []string{"Frank Herbert"}, CoverURL: "http://x/dune.png"},
			"good omens|pratchett": {
				Title:    "Good Omens",
				Authors:  []string{"Terry Pratchett", "Neil Gaiman"},
				CoverURL: "http://x/omens.png",
			},
			"broken cover|anon": {Title: "Broken Cover", Authors: []string{"Anon"}, CoverURL: "http://x/404.png"},
		}},
		fetcher: &fakeFetcher{images: map[string][]byte{
			"http://x/dune.png":  []byte("dune-cover"),
			"http://x/omens.png": []byte("omens-cover"),
		}},
		cache:  imagecache.New(db, nil),
		covers: coverFiles,
		blobs:  blobs,
	}
	env.store = New(4, Deps{
		Reviews: env.reviews,
		Blobs:   blobs,
		Users:   env.users,
		Lookup:  env.lookup,
		Images:  env.cache,
		Covers:  coverFiles,
		Fetcher: env.fetcher,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return env
}

func (env *testEnv) stored(t *testing.T, id string) domain.Review {
	t.Helper()
	var r domain.Review
	require.NoError(t, env.reviews.Collection.Get(context.Background(), id, &r))
	return r
}

func TestStore_AddEnrichesFromCatalog(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	id, err := env.store.Add(ctx, domain.Review{
		UserID: "u1", BookTitle: "dune", AuthorName: "herbert", ReviewText: "Great", Timestamp: 0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got := env.stored(t, id)
	assert.Equal(t, domain.Review{
		ID:           id,
		UserID:       "u1",
		BookCoverURL: "http://x/dune.png",
		BookTitle:    "Dune",
		AuthorName:   "Frank Herbert",
		ReviewText:   "Great",
	}, got)

	cover, ok := env.cache.Get(imagecache.CoverKey("http://x/dune.png"))
	require.True(t, ok)
	assert.Equal(t, []byte("dune-cover"), cover)
	assert.True(t, env.covers.Exists("dune_frank-herbert"))

	var blob bytes.Buffer
	require.NoError(t, env.blobs.Download(ctx, "covers/dune_frank-herbert.png", &blob))
	assert.Equal(t, "dune-cover", blob.String())
}

func TestStore_AddJoinsMultipleAuthors(t *testing.T) {
	env := setupTestStore(t)

	id, err := env.store.Add(context.Background(), domain.Review{UserID: "u1", BookTitle: "good omens", AuthorName: "pratchett"})
	require.NoError(t, err)

	got := env.stored(t, id)
	assert.Equal(t, "Good Omens", got.BookTitle)
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", got.AuthorName)
}

func TestStore_AddWithoutCatalogMatchKeepsInput(t *testing.T) {
	env := setupTestStore(t)

	id, err := env.store.Add(context.Background(), domain.Review{UserID: "u1", BookTitle: "Obscure", AuthorName: "Nobody", ReviewText: "hm"})
	require.NoError(t, err)

	got := env.stored(t, id)
	assert.Equal(t, "Obscure", got.BookTitle)
	assert.Equal(t, "Nobody", got.AuthorName)
	assert.Empty(t, got.BookCoverURL)
	assert.Zero(t, env.fetcher.calls.Load())
}

func TestStore_AddCoverFailureDoesNotBlock(t *testing.T) {
	env := setupTestStore(t)

	id, err := env.store.Add(context.Background(), domain.Review{UserID: "u1", BookTitle: "broken cover", AuthorName: "anon"})
	require.NoError(t, err)

	got := env.stored(t, id)
	assert.Equal(t, "Broken Cover", got.BookTitle)
	assert.Equal(t, "http://x/404.png", got.BookCoverURL)
	assert.False(t, env.cache.Has(imagecache.CoverKey("http://x/404.png")))
}

func TestStore_AddSkipsDownloadWhenCached(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, env.cache.Put(ctx, imagecache.CoverKey("http://x/dune.png"), []byte("cached")))

	_, err := env.store.Add(ctx, domain.Review{UserID: "u1", BookTitle: "dune", AuthorName: "herbert"})
	require.NoError(t, err)

	assert.Zero(t, env.fetcher.calls.Load())
	data, err := env.covers.Get("dune_frank-herbert")
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), data)
}

func TestStore_AddPersistFailure(t *testing.T) {
	env := setupTestStore(t)
	env.reviews.failAdd = true

	id, err := env.store.Add(context.Background(), domain.Review{UserID: "u1", BookTitle: "dune", AuthorName: "herbert"})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, domainerrors.CodeUnavailable, domainerrors.CodeOf(err))
}

func TestStore_AddIDWriteBackFailureStillReturnsID(t *testing.T) {
	env := setupTestStore(t)
	env.reviews.failUpdate = true

	id, err := env.store.Add(context.Background(), domain.Review{UserID: "u1", BookTitle: "x", AuthorName: "y"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Empty(t, env.stored(t, id).ID)

	reviews, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, id, reviews[0].ID)
}

func TestStore_ListOrderedAndResolved(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	for _, r := range []domain.Review{
		{UserID: "u1", BookTitle: "a", Timestamp: 100},
		{UserID: "u2", BookTitle: "b", Timestamp: 300},
		{UserID: "ghost", BookTitle: "c", Timestamp: 200},
		{UserID: "u1", BookTitle: "d", Timestamp: 300},
	} {
		_, err := env.store.Add(ctx, r)
		require.NoError(t, err)
	}

	reviews, err := env.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 4)

	for i := 1; i < len(reviews); i++ {
		assert.GreaterOrEqual(t, reviews[i-1].Timestamp, reviews[i].Timestamp)
	}
	assert.EqualValues(t, 100, reviews[3].Timestamp)

	assert.Equal(t, 1, env.users.clears)
	assert.Equal(t, "clear", env.users.events[0])
	assert.ElementsMatch(t, []string{"u1", "u2", "ghost", "u1"}, env.users.resolved)
}

func TestStore_ListFillsMissingCovers(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	// Stored directly so no cover is cached at add time.
	_, err := env.reviews.Collection.Add(ctx, domain.Review{UserID: "u1", BookTitle: "Dune", AuthorName: "Frank Herbert", BookCoverURL: "http://x/dune.png", Timestamp: 2})
	require.NoError(t, err)
	// The URL is gone but the mirrored blob exists.
	require.NoError(t, env.blobs.Upload(ctx, "covers/lost_someone.png", bytes.NewReader([]byte("from-blob"))))
	_, err = env.reviews.Collection.Add(ctx, domain.Review{UserID: "u1", BookTitle: "Lost", AuthorName: "Someone", BookCoverURL: "http://x/gone.png", Timestamp: 1})
	require.NoError(t, err)
	// Neither source works; the review is still listed.
	_, err = env.reviews.Collection.Add(ctx, domain.Review{UserID: "u1", BookTitle: "Nowhere", AuthorName: "None", BookCoverURL: "http://x/nowhere.png", Timestamp: 0})
	require.NoError(t, err)

	reviews, err := env.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	for _, r := range reviews {
		assert.NotEmpty(t, r.ID)
	}

	data, ok := env.cache.Get(imagecache.CoverKey("http://x/dune.png"))
	require.True(t, ok)
	assert.Equal(t, []byte("dune-cover"), data)

	data, ok = env.cache.Get(imagecache.CoverKey("http://x/gone.png"))
	require.True(t, ok)
	assert.Equal(t, []byte("from-blob"), data)

	assert.False(t, env.cache.Has(imagecache.CoverKey("http://x/nowhere.png")))
}

func TestStore_ListQueryFailure(t *testing.T) {
	env := setupTestStore(t)
	env.reviews.failQuery = true

	_, err := env.store.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeUnavailable, domainerrors.CodeOf(err))
}

func TestStore_EditUnchangedBookSkipsLookup(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	id, err := env.store.Add(ctx, domain.Review{UserID: "u1", BookTitle: "dune", AuthorName: "herbert", ReviewText: "Great", Timestamp: 42})
	require.NoError(t, err)
	lookups := env.lookup.calls.Load()

	edited := env.stored(t, id)
	edited.ReviewText = "Even better on reread"
	edited.UserID = "intruder"
	edited.Timestamp = 99
	require.NoError(t, env.store.Edit(ctx, id, edited))

	assert.Equal(t, lookups, env.lookup.calls.Load())
	got := env.stored(t, id)
	assert.Equal(t, "Even better on reread", got.ReviewText)
	assert.Equal(t, "u1", got.UserID)
	assert.EqualValues(t, 42, got.Timestamp)
	assert.Equal(t, id, got.ID)
}

func TestStore_EditChangedBookReEnriches(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()

	id, err := env.store.Add(ctx, domain.Review{UserID: "u1", BookTitle: "dune", AuthorName: "herbert"})
	require.NoError(t, err)

	edited := env.stored(t, id)
	edited.BookTitle = "good omens"
	edited.AuthorName = "pratchett"
	require.NoError(t, env.store.Edit(ctx, id, edited))

	got := env.stored(t, id)
	assert.Equal(t, "Good Omens", got.BookTitle)
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", got.AuthorName)
	assert.Equal(t, "http://x/omens.png", got.BookCoverURL)
	assert.True(t, env.cache.Has(imagecache.CoverKey("http://x/omens.png")))
}

func TestStore_EditMissing(t *testing.T) {
	env := setupTestStore(t)

	err := env.store.Edit(context.Background(), "nope", domain.Review{BookTitle: "x"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestStore_EditWriteFailure(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()
	id, err := env.store.Add(ctx, domain.Review{UserID: "u1", BookTitle: "x", AuthorName: "y"})
	require.NoError(t, err)

	env.reviews.failUpdate = true
	err = env.store.Edit(ctx, id, domain.Review{BookTitle: "x", AuthorName: "y", ReviewText: "new"})
	assert.Equal(t, domainerrors.CodeUnavailable, domainerrors.CodeOf(err))
}

func TestStore_DeleteAndGet(t *testing.T) {
	env := setupTestStore(t)
	ctx := context.Background()
	id, err := env.store.Add(ctx, domain.Review{UserID: "u1", BookTitle: "x", AuthorName: "y"})
	require.NoError(t, err)

	got, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	require.NoError(t, env.store.Delete(ctx, id))
	err = env.store.Delete(ctx, id)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = env.store.Get(ctx, id)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
