package dto

import (
	"net/url"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/listenupapp/bookreviews-server/internal/color"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
)

// Image routes served from the image cache.
const (
	CoverRoute  = "/images/covers"
	AvatarRoute = "/images/avatars/"
)

// UserSource returns cached user profiles without remote I/O.
type UserSource interface {
	Cached(userID string) (domain.User, bool)
}

// ImageSource returns cached image bytes without I/O.
type ImageSource interface {
	Get(key imagecache.Key) ([]byte, bool)
}

// Enricher resolves reviews into feed items using only in-memory state.
//
// Missing data degrades rather than fails:
//   - Unknown author: Username falls back to the user id
//   - Uncached cover: no CoverImageURL, but BookCoverURL is kept
//   - Undecodable cover: no BlurHash or dimensions
type Enricher struct {
	users  UserSource
	images ImageSource

	// placeholders caches cover BlurHash results by ETag.
	placeholders *xsync.MapOf[string, placeholder]
}

type placeholder struct {
	hash          string
	width, height int
}

// NewEnricher creates a new enricher.
func NewEnricher(users UserSource, imgs ImageSource) *Enricher {
	return &Enricher{
		users:        users,
		images:       imgs,
		placeholders: xsync.NewMapOf[string, placeholder](),
	}
}

// FeedItems converts a feed snapshot, keeping its order.
func (e *Enricher) FeedItems(reviews []domain.Review) []FeedItem {
	items := make([]FeedItem, len(reviews))
	for i, r := range reviews {
		items[i] = e.FeedItem(i, r)
	}
	return items
}

// FeedItem converts a single review at index.
func (e *Enricher) FeedItem(index int, review domain.Review) FeedItem {
	item := FeedItem{Review: review, Index: index}

	user := e.User(review.UserID)
	item.Username = user.Username
	item.Initials = user.Initials
	item.AvatarColor = user.AvatarColor
	item.AvatarURL = user.AvatarURL
	if user.AvatarURL != "" {
		data, _ := e.images.Get(imagecache.AvatarKey(review.UserID))
		item.AvatarETag = images.ETag(data)
	}

	if review.BookCoverURL == "" {
		return item
	}
	data, ok := e.images.Get(imagecache.CoverKey(review.BookCoverURL))
	if !ok {
		return item
	}

	item.CoverImageURL = CoverURL(review.BookCoverURL)
	item.CoverETag = images.ETag(data)
	p := e.placeholder(item.CoverETag, data)
	item.CoverBlurHash = p.hash
	item.CoverWidth = p.width
	item.CoverHeight = p.height
	return item
}

// User converts a cached profile. An uncached user yields a profile named by its id.
func (e *Enricher) User(userID string) User {
	u, ok := e.users.Cached(userID)
	if !ok || u.Username == "" {
		u = domain.User{ID: userID, Username: userID, AvatarRef: u.AvatarRef}
	}

	out := User{
		User:        u,
		Initials:    color.Initials(u.Username),
		AvatarColor: color.ForUser(userID),
	}
	if _, cached := e.images.Get(imagecache.AvatarKey(userID)); cached {
		out.AvatarURL = AvatarURL(userID)
	}
	return out
}

func (e *Enricher) placeholder(etag string, data []byte) placeholder {
	p, _ := e.placeholders.LoadOrCompute(etag, func() placeholder {
		var p placeholder
		if hash, err := images.ComputeBlurHash(data); err == nil {
			p.hash = hash
		}
		if w, h, err := images.Dimensions(data); err == nil {
			p.width, p.height = w, h
		}
		return p
	})
	return p
}

// CoverURL returns the image cache route for a cover source URL.
func CoverURL(source string) string {
	return CoverRoute + "?url=" + url.QueryEscape(source)
}

// AvatarURL returns the image cache route for a user's avatar.
func AvatarURL(userID string) string {
	return AvatarRoute + url.PathEscape(userID)
}
