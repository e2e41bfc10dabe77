package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index", "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func doc(kind content.Kind, title, body string, likes int64, age time.Duration) content.Document {
	return content.Document{
		ID:        uuid.New(),
		AuthorID:  uuid.New(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		LikeCount: likes,
		CreatedAt: time.Now().Add(-age),
	}
}

func hitIDs(res *listing.SearchResult) []uuid.UUID {
	ids := make([]uuid.UUID, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestSearchIndex_MatchesWithinKind(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	feed := doc(content.KindFeed, "Sunset over the bay", "golden light", 0, time.Hour)
	post := doc(content.KindPost, "Sunset photography tips", "use a tripod", 0, time.Hour)
	require.NoError(t, ix.Index(ctx, feed))
	require.NoError(t, ix.Index(ctx, post))

	res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: "sunset", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, []uuid.UUID{feed.ID}, hitIDs(res))
}

func TestSearchIndex_SortModes(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	older := doc(content.KindPost, "go concurrency", "channels", 10, 2*time.Hour)
	newer := doc(content.KindPost, "go generics", "type params", 1, time.Minute)
	require.NoError(t, ix.Index(ctx, older))
	require.NoError(t, ix.Index(ctx, newer))

	res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindPost, Text: "go", Sort: listing.SearchByLatest, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newer.ID, older.ID}, hitIDs(res))

	res, err = ix.Search(ctx, listing.SearchQuery{Kind: content.KindPost, Text: "go", Sort: listing.SearchByPopular, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{older.ID, newer.ID}, hitIDs(res))
}

func TestSearchIndex_OffsetPaging(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, ix.Index(ctx, doc(content.KindFeed, "cat picture", "", 0, time.Duration(i)*time.Minute)))
	}

	seen := make(map[uuid.UUID]bool)
	for offset := 0; offset < 5; offset += 2 {
		res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: "cat", Sort: listing.SearchByLatest, Offset: offset, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, res.TotalCount)
		for _, h := range res.Hits {
			assert.False(t, seen[h.ID])
			seen[h.ID] = true
		}
	}
	assert.Len(t, seen, 5)

	res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: "cat", Offset: 10, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 5, res.TotalCount)
}

func TestSearchIndex_UpdateAndDelete(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	d := doc(content.KindFeed, "original title", "", 0, time.Hour)
	require.NoError(t, ix.Index(ctx, d))

	retitled := "renamed"
	likes := int64(3)
	require.NoError(t, ix.Update(ctx, content.KindFeed, d.ID, content.DocumentFields{Title: &retitled, LikeCount: &likes}))

	res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: "original", Size: 10})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)

	res, err = ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: "renamed", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d.ID}, hitIDs(res))

	require.NoError(t, ix.Update(ctx, content.KindFeed, uuid.New(), content.DocumentFields{LikeCount: &likes}))

	require.NoError(t, ix.Delete(ctx, content.KindFeed, d.ID))
	n, err := ix.Count(ctx, content.KindFeed)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchIndex_UpsertReplaces(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	d := doc(content.KindPost, "first", "", 0, time.Hour)
	require.NoError(t, ix.Index(ctx, d))
	d.Title = "second"
	require.NoError(t, ix.Index(ctx, d))

	n, err := ix.Count(ctx, content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindPost, Text: "first", Size: 10})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestSearchIndex_PruneMissing(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	keep := doc(content.KindFeed, "keep", "", 0, time.Hour)
	drop := doc(content.KindFeed, "drop", "", 0, time.Hour)
	require.NoError(t, ix.Index(ctx, keep))
	require.NoError(t, ix.Index(ctx, drop))

	pruned, err := ix.PruneMissing(ctx, content.KindFeed, map[uuid.UUID]struct{}{keep.ID: {}})
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	n, err := ix.Count(ctx, content.KindFeed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchIndex_OperatorsAreLiteral(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, doc(content.KindFeed, "title", "body", 0, time.Hour)))

	for _, q := range []string{`title:"x`, `NEAR(a b)`, `*`, `"`, `AND OR NOT`} {
		_, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: q, Size: 5})
		assert.NoError(t, err, q)
	}

	res, err := ix.Search(ctx, listing.SearchQuery{Kind: content.KindFeed, Text: "  ", Size: 5})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestMatchExpression(t *testing.T) {
	assert.Equal(t, `"hello" "world"`, matchExpression("Hello, world!"))
	assert.Equal(t, `"title" "x"`, matchExpression(`title:"x`))
	assert.Equal(t, "", matchExpression("--"))
}

func TestSearchIndex_Closed(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	_, err = ix.Search(context.Background(), listing.SearchQuery{Text: "x", Size: 1})
	assert.ErrorIs(t, err, ErrIndexClosed)
}
