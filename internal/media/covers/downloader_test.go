package covers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/ratelimit"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()
	limiter := ratelimit.New(100, 10)
	t.Cleanup(limiter.Stop)
	return NewDownloader(limiter, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDownloader_Fetch(t *testing.T) {
	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Write(img)
		case "/text":
			w.Write([]byte("<html>nope</html>"))
		case "/empty":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	ctx := context.Background()

	got, err := d.Fetch(ctx, srv.URL+"/cover.png")
	require.NoError(t, err)
	assert.Equal(t, img, got)

	_, err = d.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = d.Fetch(ctx, srv.URL+"/text")
	assert.ErrorContains(t, err, "content type")

	_, err = d.Fetch(ctx, srv.URL+"/empty")
	assert.Error(t, err)

	_, err = d.Fetch(ctx, "")
	assert.Error(t, err)

	_, err = d.Fetch(ctx, "not a url")
	assert.Error(t, err)
}

func TestDownloader_FetchTooLarge(t *testing.T) {
	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
		w.Write(make([]byte, maxImageSize))
	}))
	defer srv.Close()

	_, err := newTestDownloader(t).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestName(t *testing.T) {
	tests := []struct {
		title, author, want string
	}{
		{"Dune", "Frank Herbert", "dune_frank-herbert"},
		{"Les Misérables", "Victor Hugo", "les-miserables_victor-hugo"},
		{"  The Left Hand of Darkness!! ", "Ursula K. Le Guin", "the-left-hand-of-darkness_ursula-k-le-guin"},
		{"", "", "untitled_unknown"},
		{"../../etc", "x/y", "etc_x-y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.title, tt.author), tt.title)
	}
	assert.Equal(t, "covers/dune_frank-herbert.png", BlobPath("dune_frank-herbert"))
}
