package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/async"
	"github.com/listenupapp/bookreviews-server/internal/blobstore/local"
	"github.com/listenupapp/bookreviews-server/internal/booklookup"
	"github.com/listenupapp/bookreviews-server/internal/docstore/sqlite"
	"github.com/listenupapp/bookreviews-server/internal/domain"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/feed"
	"github.com/listenupapp/bookreviews-server/internal/identity"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/localdb"
	"github.com/listenupapp/bookreviews-server/internal/media/covers"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
	"github.com/listenupapp/bookreviews-server/internal/reviewstore"
	"github.com/listenupapp/bookreviews-server/internal/search"
	"github.com/listenupapp/bookreviews-server/internal/session"
	"github.com/listenupapp/bookreviews-server/internal/sse"
	"github.com/listenupapp/bookreviews-server/internal/userdir"
)

// testEnvelope mirrors APIEnvelope with typed data.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

// testServer wraps the API server with the components tests inspect directly.
type testServer struct {
	*Server
	api      humatest.TestAPI
	verifier *identity.Verifier
	catalog  *httptest.Server
	coverPNG []byte
}

func testPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for x := range 8 {
		for y := range 12 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newCatalog serves a volumes endpoint that knows one book plus its cover.
func newCatalog(t *testing.T, cover []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(cover)
		case "/volumes":
			w.Header().Set("Content-Type", "application/json")
			if !strings.Contains(r.URL.Query().Get("q"), "intitle:dune") {
				_, _ = w.Write([]byte(`{"totalItems": 0}`))
				return
			}
			fmt.Fprintf(w, `{"totalItems": 1, "items": [{"volumeInfo": {
				"title": "Dune",
				"authors": ["Frank Herbert"],
				"description": "<p>Desert <b>planet</b></p>",
				"imageLinks": {"thumbnail": "http://%s/cover.png"}
			}}]}`, r.Host)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// setupTestServer creates a test server backed by real stores in a temp directory.
func setupTestServer(t *testing.T, opts ...Options) *testServer {
	t.Helper()
	tmp := t.TempDir()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cover := testPNG(t, color.RGBA{R: 200, G: 120, B: 40, A: 255})
	catalog := newCatalog(t, cover)

	docs, err := sqlite.Open(filepath.Join(tmp, "documents.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	blobs, err := local.New(filepath.Join(tmp, "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	db, err := localdb.New("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	avatarFiles, err := images.NewStorage(tmp, "avatars")
	require.NoError(t, err)
	coverFiles, err := images.NewStorage(tmp, "covers")
	require.NoError(t, err)

	verifier, err := identity.NewVerifier("test-identity-secret-0123456789", "")
	require.NoError(t, err)

	imgs := imagecache.New(db, logger)
	downloader := covers.NewDownloader(nil, logger)
	lookup := booklookup.NewClient(booklookup.Config{BaseURL: catalog.URL + "/volumes"}, logger)

	users := userdir.New(userdir.Config{}, userdir.Deps{
		Users:    docs.Collection(domain.UsersCollection),
		Blobs:    blobs,
		Avatars:  avatarFiles,
		Images:   imgs,
		Verifier: verifier,
		Fetcher:  downloader,
		Logger:   logger,
	})
	t.Cleanup(func() { _ = users.Shutdown() })

	reviews := reviewstore.New(4, reviewstore.Deps{
		Reviews: docs.Collection(domain.ReviewsCollection),
		Blobs:   blobs,
		Users:   users,
		Lookup:  lookup,
		Images:  imgs,
		Covers:  coverFiles,
		Fetcher: downloader,
		Logger:  logger,
	})

	index, err := search.New(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	runner := async.NewRunner(1, logger)
	t.Cleanup(func() { _ = runner.Shutdown() })

	sseManager := sse.NewManager(logger)
	enricher := dto.NewEnricher(users, imgs)

	coordinator := feed.New(feed.Deps{
		Store:    reviews,
		Runner:   runner,
		Enricher: enricher,
		Index:    index,
		Events:   sseManager,
		Logger:   logger,
	})

	services := &Services{
		Feed:     coordinator,
		Users:    users,
		Lookup:   lookup,
		Session:  session.NewStore(db),
		Images:   imgs,
		Enricher: enricher,
		Verifier: verifier,
		Docs:     docs,
		Search:   index,
	}

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	s := NewServer(services, sseManager, o, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server:   s,
		api:      humatest.Wrap(t, s.api),
		verifier: verifier,
		catalog:  catalog,
		coverPNG: cover,
	}
}

// token issues an identity token for userID.
func (ts *testServer) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := ts.verifier.Issue(domain.Identity{UserID: userID, DisplayName: name}, time.Hour)
	require.NoError(t, err)
	return token
}

// register creates a user and returns an Authorization header for it.
func (ts *testServer) register(t *testing.T, userID, name string) string {
	t.Helper()
	auth := "Authorization: Bearer " + ts.token(t, userID, name)
	resp := ts.api.Post("/api/v1/users", auth)
	require.Equal(t, http.StatusCreated, resp.Code, "register failed: %s", resp.Body.String())
	return auth
}

// postReview posts a review and returns its id.
func (ts *testServer) postReview(t *testing.T, auth, title, author, text string) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/reviews", auth, map[string]any{
		"bookTitle":  title,
		"authorName": author,
		"reviewText": text,
	})
	require.Equal(t, http.StatusCreated, resp.Code, "post failed: %s", resp.Body.String())
	env := decode[ReviewIDResponse](t, resp)
	require.NotEmpty(t, env.Data.ID)

	// Timestamps have millisecond resolution; keep feed order deterministic.
	time.Sleep(2 * time.Millisecond)
	return env.Data.ID
}

// refresh reloads the feed and returns it.
func (ts *testServer) refresh(t *testing.T) FeedResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/feed/refresh")
	require.Equal(t, http.StatusOK, resp.Code, "refresh failed: %s", resp.Body.String())
	return decode[FeedResponse](t, resp).Data
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) APIErrorEnvelope {
	t.Helper()
	var env APIErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}
