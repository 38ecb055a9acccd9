package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	got, err := CleanPath("covers//dune.png")
	require.NoError(t, err)
	assert.Equal(t, "covers/dune.png", got)

	got, err = CleanPath("users/./u1.png")
	require.NoError(t, err)
	assert.Equal(t, "users/u1.png", got)

	for _, bad := range []string{"", "/etc/passwd", "../x", "covers/../../x", ".", `a\b`} {
		_, err := CleanPath(bad)
		assert.Error(t, err, bad)
	}
}
