// Package dto provides Data Transfer Objects for API responses and SSE events.
//
// DTOs carry denormalized fields so a feed entry renders without further lookups:
// the author's display name, avatar and cover locations, and placeholder data for
// images that are not cached yet.
package dto

import "github.com/listenupapp/bookreviews-server/internal/domain"

// FeedItem is the client-facing representation of one review in the feed.
type FeedItem struct {
	domain.Review

	// Index is the position in the feed snapshot the item was built from, or -1 for
	// items sent in events.
	Index int `json:"index"`

	Username string `json:"username"`
	Initials string `json:"initials"`
	// AvatarColor is the fallback shown while AvatarURL is empty.
	AvatarColor string `json:"avatarColor"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	AvatarETag  string `json:"avatarEtag,omitempty"`

	// CoverImageURL is set once the cover is in the image cache.
	CoverImageURL string `json:"coverImageUrl,omitempty"`
	CoverETag     string `json:"coverEtag,omitempty"`
	CoverBlurHash string `json:"coverBlurHash,omitempty"`
	CoverWidth    int    `json:"coverWidth,omitempty"`
	CoverHeight   int    `json:"coverHeight,omitempty"`
}

// User is the client-facing representation of a user profile.
type User struct {
	domain.User

	Initials    string `json:"initials"`
	AvatarColor string `json:"avatarColor"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// EditState is the client-facing representation of the feed's edit slot.
type EditState struct {
	Editing bool           `json:"editing"`
	Index   int            `json:"index,omitempty"`
	Review  *domain.Review `json:"review,omitempty"`
}

// NewEditState converts the domain sum type.
func NewEditState(state domain.EditState) EditState {
	e, ok := domain.EditingReview(state)
	if !ok {
		return EditState{}
	}
	review := e.Original
	return EditState{Editing: true, Index: e.Index, Review: &review}
}
