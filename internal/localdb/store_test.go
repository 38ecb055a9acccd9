package localdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/listenupapp/bookreviews-server/internal/localdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPref struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupTestStore(t *testing.T) *localdb.Store {
	t.Helper()

	s, err := localdb.New(filepath.Join(t.TempDir(), "cache"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, localdb.ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", []byte("one")))
	require.NoError(t, s.Set(ctx, "a", []byte("two")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, localdb.ErrNotFound)
}

func TestStore_ScanPrefix(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "img:b", []byte("2")))
	require.NoError(t, s.Set(ctx, "img:a", []byte("1")))
	require.NoError(t, s.Set(ctx, "pref:x", []byte("x")))

	var keys []string
	err := s.Scan(ctx, "img:", func(key string, value []byte) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"img:a", "img:b"}, keys)
}

func TestStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()

	s, err := localdb.New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = localdb.New(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestEntity_RoundTrip(t *testing.T) {
	s, err := localdb.New("", nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	prefs := localdb.NewEntity[testPref](s, "pref:")

	exists, err := prefs.Exists(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, prefs.Set(ctx, "theme", &testPref{Name: "dark", Count: 1}))
	require.NoError(t, prefs.Set(ctx, "lang", &testPref{Name: "en", Count: 2}))

	got, err := prefs.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Name)

	ids := map[string]string{}
	for id, p := range prefs.List(ctx) {
		ids[id] = p.Name
	}
	assert.Equal(t, map[string]string{"theme": "dark", "lang": "en"}, ids)

	require.NoError(t, prefs.Delete(ctx, "theme"))
	_, err = prefs.Get(ctx, "theme")
	require.ErrorIs(t, err, localdb.ErrNotFound)
}
