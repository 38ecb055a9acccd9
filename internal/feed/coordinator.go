// Package feed holds the published review feed and serializes the operations that
// change it.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/listenupapp/bookreviews-server/internal/async"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/search"
	"github.com/listenupapp/bookreviews-server/internal/sse"
)

// ReviewStore is the persistence the coordinator drives.
type ReviewStore interface {
	Add(ctx context.Context, review domain.Review) (string, error)
	List(ctx context.Context) ([]domain.Review, error)
	Get(ctx context.Context, reviewID string) (domain.Review, error)
	Edit(ctx context.Context, reviewID string, updated domain.Review) error
	Delete(ctx context.Context, reviewID string) error
}

// Emitter publishes feed events.
type Emitter interface {
	Emit(event sse.Event)
}

type noopEmitter struct{}

func (noopEmitter) Emit(sse.Event) {}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Store    ReviewStore
	Runner   *async.Runner
	Enricher *dto.Enricher
	Index    *search.Index
	Events   Emitter
	Logger   *slog.Logger
}

// Coordinator owns the feed snapshot and the edit slot. Every operation that touches
// the backend runs on the runner and reports through an async.Task.
type Coordinator struct {
	store    ReviewStore
	runner   *async.Runner
	enricher *dto.Enricher
	index    *search.Index
	events   Emitter
	logger   *slog.Logger
	now      func() time.Time

	// loading counts refreshes in flight. It is advisory and does not serialize them.
	loading atomic.Int32

	mu       sync.RWMutex
	snapshot []domain.Review
	edit     domain.EditState
}

// New creates a Coordinator with an empty feed.
func New(deps Deps) *Coordinator {
	events := deps.Events
	if events == nil {
		events = noopEmitter{}
	}
	return &Coordinator{
		store:    deps.Store,
		runner:   deps.Runner,
		enricher: deps.Enricher,
		index:    deps.Index,
		events:   events,
		logger:   deps.Logger,
		now:      time.Now,
		edit:     domain.NotEditing{},
	}
}

// Refresh reloads the feed. When two refreshes overlap, the one that finishes last
// determines the published snapshot.
func (c *Coordinator) Refresh(ctx context.Context) *async.Task[[]domain.Review] {
	return async.Submit(c.runner, ctx, c.refresh)
}

func (c *Coordinator) refresh(ctx context.Context) ([]domain.Review, error) {
	c.loading.Add(1)
	c.events.Emit(sse.NewFeedLoadingEvent(true))
	defer func() {
		if c.loading.Add(-1) == 0 {
			c.events.Emit(sse.NewFeedLoadingEvent(false))
		}
	}()

	reviews, err := c.store.List(ctx)
	if err != nil {
		c.logger.Error("feed refresh failed", "error", err)
		return nil, err
	}

	c.publish(reviews)
	c.logger.Info("feed refreshed", "reviews", len(reviews))
	return slices.Clone(reviews), nil
}

func (c *Coordinator) publish(reviews []domain.Review) {
	c.mu.Lock()
	c.snapshot = reviews
	c.mu.Unlock()

	if c.index != nil {
		docs := make([]search.Document, len(reviews))
		for i, r := range reviews {
			docs[i] = search.NewDocument(r, c.enricher.User(r.UserID).Username)
		}
		if err := c.index.Replace(docs); err != nil {
			c.logger.Warn("failed to rebuild feed search index", "error", err)
		}
	}

	c.events.Emit(sse.NewFeedRefreshedEvent(len(reviews)))
}

// IsLoading reports whether a refresh is in flight.
func (c *Coordinator) IsLoading() bool {
	return c.loading.Load() > 0
}

// Snapshot returns a copy of the published feed, newest first.
func (c *Coordinator) Snapshot() []domain.Review {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.snapshot)
}

// Items returns the published feed resolved for display.
func (c *Coordinator) Items() []dto.FeedItem {
	return c.enricher.FeedItems(c.Snapshot())
}

// ReviewsForUser filters the published feed by author. It does no I/O and may be
// stale until the next refresh.
func (c *Coordinator) ReviewsForUser(userID string) []domain.Review {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Review
	for _, r := range c.snapshot {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// Review reads one review from the store, bypassing the snapshot.
func (c *Coordinator) Review(ctx context.Context, reviewID string) (domain.Review, error) {
	return c.store.Get(ctx, reviewID)
}

// ItemsForUser is ReviewsForUser resolved for display. Indexes refer to the full feed.
func (c *Coordinator) ItemsForUser(userID string) []dto.FeedItem {
	var out []dto.FeedItem
	for i, r := range c.Snapshot() {
		if r.UserID == userID {
			out = append(out, c.enricher.FeedItem(i, r))
		}
	}
	return out
}

// Search runs a full-text query over the published feed.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) ([]dto.FeedItem, error) {
	if c.index == nil {
		return nil, domainerrors.ErrUnavailable
	}
	res, err := c.index.Search(ctx, search.Params{Query: query, Limit: limit})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}

	snapshot := c.Snapshot()
	positions := make(map[string]int, len(snapshot))
	for i, r := range snapshot {
		positions[r.ID] = i
	}

	items := make([]dto.FeedItem, 0, len(res.Hits))
	for _, hit := range res.Hits {
		// The index can briefly lag a newer snapshot.
		i, ok := positions[hit.ID]
		if !ok {
			continue
		}
		items = append(items, c.enricher.FeedItem(i, snapshot[i]))
	}
	return items, nil
}

// StartEdit stages the review at index. A previous edit is replaced.
func (c *Coordinator) StartEdit(index int) (domain.Editing, error) {
	return c.StartEditBy(index, "")
}

// StartEditBy is StartEdit restricted to reviews written by userID. The author is
// checked against the same snapshot the review is staged from. An empty userID
// skips the check.
func (c *Coordinator) StartEditBy(index int, userID string) (domain.Editing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	review, err := c.reviewAt(index, userID, "edit")
	if err != nil {
		return domain.Editing{}, err
	}
	e := domain.Editing{Index: index, Original: review}
	c.edit = e
	return e, nil
}

// reviewAt returns the snapshot entry at index. Callers hold c.mu.
func (c *Coordinator) reviewAt(index int, userID, action string) (domain.Review, error) {
	if index < 0 || index >= len(c.snapshot) {
		return domain.Review{}, domainerrors.Validationf("no review at index %d", index)
	}
	review := c.snapshot[index]
	if userID != "" && review.UserID != userID {
		return domain.Review{}, domainerrors.Forbidden("only the author can " + action + " a review")
	}
	return review, nil
}

// FinishEdit clears the edit slot.
func (c *Coordinator) FinishEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = domain.NotEditing{}
}

// EditState returns the edit slot.
func (c *Coordinator) EditState() domain.EditState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.edit
}

// Post stamps review with the current time and stores it. The task yields the new id.
func (c *Coordinator) Post(ctx context.Context, review domain.Review) *async.Task[string] {
	review.ID = ""
	review.StampNow(c.now())

	return async.Submit(c.runner, ctx, func(ctx context.Context) (string, error) {
		reviewID, err := c.store.Add(ctx, review)
		if err != nil {
			return "", err
		}
		review.ID = reviewID
		c.events.Emit(sse.NewReviewCreatedEvent(c.enricher.FeedItem(-1, c.reload(ctx, review))))
		return reviewID, nil
	})
}

// Save writes an edited review. The task yields its id.
func (c *Coordinator) Save(ctx context.Context, edited domain.Review) *async.Task[string] {
	if edited.IsDraft() {
		return async.Completed[string]("", domainerrors.Validation("review has no id"))
	}

	return async.Submit(c.runner, ctx, func(ctx context.Context) (string, error) {
		if err := c.store.Edit(ctx, edited.ID, edited); err != nil {
			return "", err
		}
		c.events.Emit(sse.NewReviewUpdatedEvent(c.enricher.FeedItem(-1, c.reload(ctx, edited))))
		return edited.ID, nil
	})
}

// DeleteAt deletes the review at index in the published feed and then refreshes it.
// The task yields the deleted id once the refresh has finished.
func (c *Coordinator) DeleteAt(ctx context.Context, index int) *async.Task[string] {
	return c.DeleteAtBy(ctx, index, "")
}

// DeleteAtBy is DeleteAt restricted to reviews written by userID. The author is
// checked against the same snapshot the id is taken from. An empty userID skips
// the check.
func (c *Coordinator) DeleteAtBy(ctx context.Context, index int, userID string) *async.Task[string] {
	c.mu.RLock()
	review, err := c.reviewAt(index, userID, "delete")
	c.mu.RUnlock()
	if err != nil {
		return async.Completed("", err)
	}
	reviewID := review.ID

	return async.Submit(c.runner, ctx, func(ctx context.Context) (string, error) {
		if err := c.store.Delete(ctx, reviewID); err != nil {
			return "", err
		}
		c.clearEditOf(reviewID)
		c.events.Emit(sse.NewReviewDeletedEvent(reviewID))

		// Inline: this already runs on the runner.
		if _, err := c.refresh(ctx); err != nil {
			c.logger.Warn("refresh after delete failed", "review_id", reviewID, "error", err)
		}
		return reviewID, nil
	})
}

func (c *Coordinator) clearEditOf(reviewID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := domain.EditingReview(c.edit); ok && e.Original.ID == reviewID {
		c.edit = domain.NotEditing{}
	}
}

// reload returns the stored form of review, which carries catalog enrichment.
func (c *Coordinator) reload(ctx context.Context, review domain.Review) domain.Review {
	stored, err := c.store.Get(ctx, review.ID)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrNotFound) {
			c.logger.Debug("failed to reload review", "review_id", review.ID, "error", err)
		}
		return review
	}
	return stored
}
