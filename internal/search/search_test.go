package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/bookreviews-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	require.NoError(t, index.Replace([]Document{
		NewDocument(domain.Review{ID: "r1", UserID: "u1", BookTitle: "Dune", AuthorName: "Frank Herbert", ReviewText: "Spice and sandworms", Timestamp: 3}, "ana"),
		NewDocument(domain.Review{ID: "r2", UserID: "u2", BookTitle: "Dune Messiah", AuthorName: "Frank Herbert", ReviewText: "Darker sequel", Timestamp: 2}, "bo"),
		NewDocument(domain.Review{ID: "r3", UserID: "u1", BookTitle: "Emma", AuthorName: "Jane Austen", ReviewText: "Matchmaking gone wrong", Timestamp: 1}, "ana"),
	}))
	return index
}

func hitIDs(res *Result) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestIndex_Replace(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	require.NoError(t, index.Replace([]Document{{ID: "r9", Title: "Solo"}, {Title: "no id"}}))
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIndex_SearchByTitle(t *testing.T) {
	index := setupTestIndex(t)

	res, err := index.Search(context.Background(), Params{Query: "dune"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, hitIDs(res))
	assert.Equal(t, "r1", res.Hits[0].ID)
	assert.Equal(t, "Dune", res.Hits[0].Title)
}

func TestIndex_SearchByAuthorAndText(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	res, err := index.Search(ctx, Params{Query: "austen"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3"}, hitIDs(res))

	res, err = index.Search(ctx, Params{Query: "sandworms"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, hitIDs(res))
}

func TestIndex_SearchFuzzyTitle(t *testing.T) {
	index := setupTestIndex(t)

	res, err := index.Search(context.Background(), Params{Query: "emmma"})
	require.NoError(t, err)
	assert.Contains(t, hitIDs(res), "r3")
}

func TestIndex_SearchByUser(t *testing.T) {
	index := setupTestIndex(t)

	res, err := index.Search(context.Background(), Params{Query: "herbert", UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, hitIDs(res))
}

func TestIndex_SearchLimit(t *testing.T) {
	index := setupTestIndex(t)

	res, err := index.Search(context.Background(), Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
	assert.Equal(t, uint64(3), res.Total)
}

func TestIndex_SearchNoMatch(t *testing.T) {
	index := setupTestIndex(t)

	res, err := index.Search(context.Background(), Params{Query: "zzzzqqq"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}
