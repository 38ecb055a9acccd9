package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/blobstore"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestStore_UploadDownload(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "users/u1.png", strings.NewReader("v1")))
	require.NoError(t, s.Upload(ctx, "users/u1.png", strings.NewReader("v2")))

	var buf bytes.Buffer
	require.NoError(t, s.Download(ctx, "users/u1.png", &buf))
	assert.Equal(t, "v2", buf.String())

	onDisk, err := os.ReadFile(filepath.Join(dir, "users", "u1.png"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(onDisk))
}

func TestStore_DownloadMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	err = s.Download(context.Background(), "covers/none.png", &bytes.Buffer{})
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_FailedUploadKeepsPrevious(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "covers/a.png", strings.NewReader("good")))
	require.Error(t, s.Upload(ctx, "covers/a.png", failingReader{}))

	var buf bytes.Buffer
	require.NoError(t, s.Download(ctx, "covers/a.png", &buf))
	assert.Equal(t, "good", buf.String())

	entries, err := os.ReadDir(filepath.Join(s.root.Name(), "covers"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_RejectsEscapingPaths(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Upload(context.Background(), "../outside.png", strings.NewReader("x")))
	assert.Error(t, s.Download(context.Background(), "/etc/passwd", &bytes.Buffer{}))
}
