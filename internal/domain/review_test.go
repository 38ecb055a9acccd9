package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReview_IsDraft(t *testing.T) {
	assert.True(t, Review{BookTitle: "Dune"}.IsDraft())
	assert.False(t, Review{ID: "abc", BookTitle: "Dune"}.IsDraft())
}

func TestReview_SameBook(t *testing.T) {
	a := Review{BookTitle: "Dune", AuthorName: "Frank Herbert", ReviewText: "Great"}
	b := Review{BookTitle: "Dune", AuthorName: "Frank Herbert", ReviewText: "Changed my mind"}
	c := Review{BookTitle: "Dune Messiah", AuthorName: "Frank Herbert"}

	assert.True(t, a.SameBook(b))
	assert.False(t, a.Equal(b))
	assert.False(t, a.SameBook(c))
}

func TestReview_StampNow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var r Review
	r.StampNow(now)

	assert.Equal(t, now.UnixMilli(), r.Timestamp)
	assert.True(t, r.CreatedAt().Equal(now))
}

func TestBookDetails(t *testing.T) {
	empty := BookDetails{}
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.HasCanonicalNames())

	details := BookDetails{Title: "Good Omens", Authors: []string{"Terry Pratchett", "Neil Gaiman"}}
	assert.False(t, details.IsEmpty())
	assert.True(t, details.HasCanonicalNames())
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", details.JoinedAuthors())

	titleOnly := BookDetails{Title: "Anonymous Work"}
	assert.False(t, titleOnly.HasCanonicalNames())
}

func TestEditState(t *testing.T) {
	var state EditState = NotEditing{}
	_, ok := EditingReview(state)
	assert.False(t, ok)

	state = Editing{Index: 2, Original: Review{ID: "r2"}}
	e, ok := EditingReview(state)
	assert.True(t, ok)
	assert.Equal(t, 2, e.Index)
	assert.Equal(t, "r2", e.Original.ID)
}

func TestAvatarBlobPath(t *testing.T) {
	assert.Equal(t, "users/u1.png", AvatarBlobPath("u1"))
	assert.True(t, User{AvatarRef: "users/u1.png"}.HasAvatar())
	assert.False(t, User{}.HasAvatar())
}
