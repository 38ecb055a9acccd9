package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/docstore/docstoretest"
)

// Set BOOKREVIEWS_TEST_POSTGRES_DSN to run against a disposable database.
func TestStore_Conformance(t *testing.T) {
	dsn := os.Getenv("BOOKREVIEWS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKREVIEWS_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `DELETE FROM documents`)
	require.NoError(t, err)

	docstoretest.Run(t, s)
}
