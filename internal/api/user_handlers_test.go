package api

import (
	"image/color"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/domain"
	"github.com/listenupapp/bookreviews-server/internal/dto"
)

func TestRegisterUser(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/users", "Authorization: Bearer "+ts.token(t, "alice", "Alice Liddell"))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	user := decode[dto.User](t, resp).Data
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, "Alice Liddell", user.Username)
	assert.Equal(t, "AL", user.Initials)
	assert.Empty(t, user.AvatarRef)

	// Registration signs the user in.
	resp = ts.api.Get("/api/v1/session")
	require.Equal(t, http.StatusOK, resp.Code)
	sess := decode[SessionResponse](t, resp).Data
	assert.True(t, sess.SignedIn)
	assert.Equal(t, "alice", sess.UserID)
}

func TestRegisterUser_ImportsPhoto(t *testing.T) {
	ts := setupTestServer(t)

	token, err := ts.verifier.Issue(domain.Identity{
		UserID:      "alice",
		DisplayName: "Alice",
		PhotoURL:    ts.catalog.URL + "/cover.png",
	}, time.Hour)
	require.NoError(t, err)

	resp := ts.api.Post("/api/v1/users", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	user := decode[dto.User](t, resp).Data
	assert.Equal(t, "users/alice.png", user.AvatarRef)
	assert.Equal(t, dto.AvatarURL("alice"), user.AvatarURL)

	avatar := ts.api.Get(user.AvatarURL)
	require.Equal(t, http.StatusOK, avatar.Code)
	assert.Equal(t, ts.coverPNG, avatar.Body.Bytes())
}

func TestRegisterUser_InvalidToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/users", "Authorization: Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Code)

	resp = ts.api.Post("/api/v1/users", "Authorization: Basic abc")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegisterUser_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Options{RegisterRPS: 0.001, RegisterBurst: 2})

	for _, id := range []string{"a", "b"} {
		resp := ts.api.Post("/api/v1/users", "Authorization: Bearer "+ts.token(t, id, id))
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	resp := ts.api.Post("/api/v1/users", "Authorization: Bearer "+ts.token(t, "c", "c"))
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, codeRateLimited, decodeError(t, resp).Code)
}

func TestGetUser(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "alice", "Alice")

	resp := ts.api.Get("/api/v1/users/alice")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Alice", decode[dto.User](t, resp).Data.Username)

	resp = ts.api.Get("/api/v1/users/nobody")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateUser(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.register(t, "alice", "Alice")
	avatarPNG := testPNG(t, color.RGBA{B: 255, A: 255})

	resp := ts.api.Patch("/api/v1/users/alice", alice, map[string]any{
		"name":   "Alice L.",
		"avatar": avatarPNG,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	user := decode[dto.User](t, resp).Data
	assert.Equal(t, "Alice L.", user.Username)
	assert.Equal(t, "users/alice.png", user.AvatarRef)
	require.NotEmpty(t, user.AvatarURL)

	avatar := ts.api.Get(user.AvatarURL)
	require.Equal(t, http.StatusOK, avatar.Code)
	assert.Equal(t, avatarPNG, avatar.Body.Bytes())

	etag := avatar.Header().Get("ETag")
	require.NotEmpty(t, etag)
	notModified := ts.api.Get(user.AvatarURL, "If-None-Match: "+etag)
	assert.Equal(t, http.StatusNotModified, notModified.Code)
	assert.Empty(t, notModified.Body.Bytes())
}

func TestUpdateUser_OnlySelf(t *testing.T) {
	ts := setupTestServer(t)
	ts.register(t, "alice", "Alice")
	bob := ts.register(t, "bob", "Bob")

	resp := ts.api.Patch("/api/v1/users/alice", bob, map[string]any{"name": "Hacked"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Patch("/api/v1/users/alice", map[string]any{"name": "Anon"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestUpdateUser_BlankName(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.register(t, "alice", "Alice")

	resp := ts.api.Patch("/api/v1/users/alice", alice, map[string]any{"name": " "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetUserReviews(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.register(t, "alice", "Alice")
	bob := ts.register(t, "bob", "Bob")

	ts.postReview(t, alice, "Emma", "Jane Austen", "Matchmaking")
	ts.postReview(t, bob, "Persuasion", "Jane Austen", "Second chances")
	ts.postReview(t, alice, "Ulysses", "James Joyce", "Long")
	ts.refresh(t)

	resp := ts.api.Get("/api/v1/users/alice/reviews")
	require.Equal(t, http.StatusOK, resp.Code)

	items := decode[UserReviewsResponse](t, resp).Data.Items
	require.Len(t, items, 2)
	assert.Equal(t, "Ulysses", items[0].BookTitle)
	assert.Equal(t, 0, items[0].Index)
	assert.Equal(t, "Emma", items[1].BookTitle)
	assert.Equal(t, 2, items[1].Index)

	resp = ts.api.Get("/api/v1/users/nobody/reviews")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[UserReviewsResponse](t, resp).Data.Items)
}
