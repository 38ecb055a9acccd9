// Package docstoretest holds a behavioural suite every docstore backend must pass.
package docstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/docstore"
)

type note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Rank  int64  `json:"rank"`
}

// Run exercises store against the docstore contract. Each subtest uses its own collection.
func Run(t *testing.T, store docstore.Store) {
	t.Helper()

	t.Run("add assigns distinct ids", func(t *testing.T) {
		ctx := context.Background()
		c := store.Collection("add_ids")

		id1, err := c.Add(ctx, note{Title: "a"})
		require.NoError(t, err)
		id2, err := c.Add(ctx, note{Title: "b"})
		require.NoError(t, err)

		assert.NotEmpty(t, id1)
		assert.NotEqual(t, id1, id2)

		var got note
		require.NoError(t, c.Get(ctx, id1, &got))
		assert.Equal(t, "a", got.Title)
		assert.Empty(t, got.ID, "Add must not write the id into the document")
	})

	t.Run("get missing", func(t *testing.T) {
		var got note
		err := store.Collection("missing").Get(context.Background(), "nope", &got)
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("set replaces", func(t *testing.T) {
		ctx := context.Background()
		c := store.Collection("set_replace")

		require.NoError(t, c.Set(ctx, "u1", note{ID: "u1", Title: "first", Body: "x"}))
		require.NoError(t, c.Set(ctx, "u1", note{ID: "u1", Title: "second"}))

		var got note
		require.NoError(t, c.Get(ctx, "u1", &got))
		assert.Equal(t, note{ID: "u1", Title: "second"}, got)
	})

	t.Run("update merges fields", func(t *testing.T) {
		ctx := context.Background()
		c := store.Collection("update_merge")

		id, err := c.Add(ctx, note{Title: "t", Body: "old", Rank: 7})
		require.NoError(t, err)

		require.NoError(t, c.Update(ctx, id, map[string]any{"id": id, "body": "new"}))

		var got note
		require.NoError(t, c.Get(ctx, id, &got))
		assert.Equal(t, note{ID: id, Title: "t", Body: "new", Rank: 7}, got)
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Collection("update_missing").Update(context.Background(), "nope", map[string]any{"body": "x"})
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("update rejects bad field names", func(t *testing.T) {
		ctx := context.Background()
		c := store.Collection("update_bad")
		require.NoError(t, c.Set(ctx, "a", note{Title: "t"}))

		err := c.Update(ctx, "a", map[string]any{"title') --": "x"})
		require.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		c := store.Collection("delete")
		id, err := c.Add(ctx, note{Title: "gone"})
		require.NoError(t, err)

		require.NoError(t, c.Delete(ctx, id))
		require.ErrorIs(t, c.Delete(ctx, id), docstore.ErrNotFound)

		var got note
		require.ErrorIs(t, c.Get(ctx, id, &got), docstore.ErrNotFound)
	})

	t.Run("query orders by field", func(t *testing.T) {
		ctx := context.Background()
		c := store.Collection("query_order")
		other := store.Collection("query_other")

		require.NoError(t, c.Set(ctx, "b", note{Title: "mid", Rank: 200}))
		require.NoError(t, c.Set(ctx, "a", note{Title: "old", Rank: 100}))
		require.NoError(t, c.Set(ctx, "c", note{Title: "new", Rank: 1000}))
		require.NoError(t, c.Set(ctx, "d", note{Title: "tie", Rank: 200}))
		require.NoError(t, other.Set(ctx, "x", note{Title: "elsewhere", Rank: 5000}))

		docs, err := c.Query(ctx, docstore.Query{OrderBy: "rank", Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "d", "a"}, ids(docs))

		docs, err = c.Query(ctx, docstore.Query{OrderBy: "rank"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "d", "c"}, ids(docs))

		docs, err = c.Query(ctx, docstore.Query{OrderBy: "rank", Descending: true, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, ids(docs))

		var first note
		require.NoError(t, docs[0].Decode(&first))
		assert.Equal(t, "new", first.Title)

		_, err = c.Query(ctx, docstore.Query{OrderBy: "rank; DROP"})
		require.Error(t, err)
	})

	t.Run("query empty collection", func(t *testing.T) {
		docs, err := store.Collection("query_empty").Query(context.Background(), docstore.Query{OrderBy: "rank"})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, store.Ping(context.Background()))
	})
}

func ids(docs []docstore.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
