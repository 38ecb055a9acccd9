// Package reviewstore persists reviews in the document store and keeps their
// covers and authors resolvable locally.
package reviewstore

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/bookreviews-server/internal/blobstore"
	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/media/covers"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
)

// UserResolver is the part of the user directory a feed reload needs.
type UserResolver interface {
	ClearCache()
	Resolve(ctx context.Context, userID string) (*domain.User, bool)
}

// BookLookup resolves user input to catalog details. Failures yield empty details.
type BookLookup interface {
	Lookup(ctx context.Context, title, author string) domain.BookDetails
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Deps are the collaborators of a Store.
type Deps struct {
	Reviews docstore.Collection
	Blobs   blobstore.Store
	Users   UserResolver
	Lookup  BookLookup
	Images  *imagecache.Cache
	Covers  *images.Storage
	Fetcher ImageFetcher
	Logger  *slog.Logger
}

// Store is the review store.
type Store struct {
	reviews docstore.Collection
	blobs   blobstore.Store
	users   UserResolver
	lookup  BookLookup
	images  *imagecache.Cache
	covers  *images.Storage
	fetcher ImageFetcher
	logger  *slog.Logger

	enrichLimit int
}

// New creates a Store. enrichConcurrency bounds the per-review work of List.
func New(enrichConcurrency int, deps Deps) *Store {
	return &Store{
		reviews:     deps.Reviews,
		blobs:       deps.Blobs,
		users:       deps.Users,
		lookup:      deps.Lookup,
		images:      deps.Images,
		covers:      deps.Covers,
		fetcher:     deps.Fetcher,
		logger:      deps.Logger,
		enrichLimit: max(enrichConcurrency, 1),
	}
}

// Add enriches review from the catalog, stores it and returns the assigned id.
// Catalog and cover failures never prevent the review from being stored.
func (s *Store) Add(ctx context.Context, review domain.Review) (string, error) {
	review.ID = ""
	s.enrich(ctx, &review)

	reviewID, err := s.reviews.Add(ctx, review)
	if err != nil {
		s.logger.Error("failed to add review", "title", review.BookTitle, "error", err)
		return "", domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to store review")
	}

	if err := s.reviews.Update(ctx, reviewID, map[string]any{domain.ReviewFieldID: reviewID}); err != nil {
		s.logger.Warn("failed to write review id back",
			"review_id", reviewID,
			"error", err,
		)
	}

	s.logger.Info("review added",
		"review_id", reviewID,
		"user_id", review.UserID,
		"title", review.BookTitle,
	)
	return reviewID, nil
}

// List returns every review, newest first, after resolving each review's author and
// making a best effort to cache its cover. The user cache is cleared first.
func (s *Store) List(ctx context.Context) ([]domain.Review, error) {
	s.users.ClearCache()

	docs, err := s.reviews.Query(ctx, docstore.Query{OrderBy: domain.ReviewFieldTimestamp, Descending: true})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to load reviews")
	}

	reviews := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		var r domain.Review
		if err := doc.Decode(&r); err != nil {
			s.logger.Warn("skipping malformed review", "error", err)
			continue
		}
		if r.ID == "" {
			r.ID = doc.ID
		}
		reviews = append(reviews, r)
	}

	var g errgroup.Group
	g.SetLimit(s.enrichLimit)
	for _, r := range reviews {
		g.Go(func() error {
			s.resolve(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(reviews, func(a, b domain.Review) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	return reviews, nil
}

// Edit applies updated to the stored review. The catalog is consulted again only when
// the title or author changed. Only cover, title, author and text are written.
func (s *Store) Edit(ctx context.Context, reviewID string, updated domain.Review) error {
	var current domain.Review
	if err := s.reviews.Get(ctx, reviewID, &current); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domainerrors.NotFoundf("review %s not found", reviewID)
		}
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to load review")
	}

	if !updated.SameBook(current) {
		s.enrich(ctx, &updated)
	}

	err := s.reviews.Update(ctx, reviewID, map[string]any{
		domain.ReviewFieldCoverURL: updated.BookCoverURL,
		domain.ReviewFieldTitle:    updated.BookTitle,
		domain.ReviewFieldAuthor:   updated.AuthorName,
		domain.ReviewFieldText:     updated.ReviewText,
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domainerrors.NotFoundf("review %s not found", reviewID)
		}
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to update review")
	}

	s.logger.Info("review edited", "review_id", reviewID)
	return nil
}

// Delete removes the review.
func (s *Store) Delete(ctx context.Context, reviewID string) error {
	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domainerrors.NotFoundf("review %s not found", reviewID)
		}
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to delete review")
	}
	s.logger.Info("review deleted", "review_id", reviewID)
	return nil
}

// Get loads a single review.
func (s *Store) Get(ctx context.Context, reviewID string) (domain.Review, error) {
	var r domain.Review
	if err := s.reviews.Get(ctx, reviewID, &r); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.Review{}, domainerrors.NotFoundf("review %s not found", reviewID)
		}
		return domain.Review{}, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "failed to load review")
	}
	if r.ID == "" {
		r.ID = reviewID
	}
	return r, nil
}

// enrich replaces title and author with catalog names and attaches the catalog cover.
func (s *Store) enrich(ctx context.Context, r *domain.Review) {
	details := s.lookup.Lookup(ctx, r.BookTitle, r.AuthorName)

	if details.HasCanonicalNames() {
		r.BookTitle = details.Title
		r.AuthorName = details.JoinedAuthors()
	}

	if details.CoverURL != "" {
		s.storeCover(ctx, details.CoverURL, covers.Name(r.BookTitle, r.AuthorName))
		r.BookCoverURL = details.CoverURL
	}
}

// storeCover caches the cover of a new or edited review and mirrors it to the local
// cover file and the blob store.
func (s *Store) storeCover(ctx context.Context, url, name string) {
	key := imagecache.CoverKey(url)

	if data, ok := s.images.Get(key); ok {
		if !s.covers.Exists(name) {
			s.saveCoverFile(name, data)
		}
		return
	}

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Warn("failed to download cover", "url", url, "error", err)
		return
	}
	if err := s.images.Put(ctx, key, data); err != nil {
		s.logger.Warn("failed to cache cover", "url", url, "error", err)
	}
	s.saveCoverFile(name, data)

	if err := s.blobs.Upload(ctx, covers.BlobPath(name), bytes.NewReader(data)); err != nil {
		s.logger.Warn("failed to upload cover", "name", name, "error", err)
	}
}

func (s *Store) saveCoverFile(name string, data []byte) {
	if err := s.covers.Save(name, data); err != nil {
		s.logger.Warn("failed to save cover file", "name", name, "error", err)
	}
}

// resolve warms the user cache for the review's author and fills a missing cover.
func (s *Store) resolve(ctx context.Context, r domain.Review) {
	s.users.Resolve(ctx, r.UserID)

	if r.BookCoverURL == "" {
		return
	}
	key := imagecache.CoverKey(r.BookCoverURL)
	if s.images.Has(key) {
		return
	}

	data, err := s.fetcher.Fetch(ctx, r.BookCoverURL)
	if err != nil {
		name := covers.Name(r.BookTitle, r.AuthorName)
		var buf bytes.Buffer
		if blobErr := s.blobs.Download(ctx, covers.BlobPath(name), &buf); blobErr != nil {
			s.logger.Warn("failed to fill cover",
				"review_id", r.ID,
				"url", r.BookCoverURL,
				"error", errors.Join(err, blobErr),
			)
			return
		}
		data = buf.Bytes()
	}

	if err := s.images.Put(ctx, key, data); err != nil {
		s.logger.Warn("failed to cache cover", "review_id", r.ID, "error", err)
	}
}
