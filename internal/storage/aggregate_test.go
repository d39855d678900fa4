package storage

import (
	"testing"

	"github.com/jackc/pgtype"
	"github.com/stretchr/testify/require"
)

func presentInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int: v, Status: pgtype.Present}
}

func presentText(s string) pgtype.Text {
	return pgtype.Text{String: s, Status: pgtype.Present}
}

var (
	nullInt8 = pgtype.Int8{Status: pgtype.Null}
	nullText = pgtype.Text{Status: pgtype.Null}
)

func childRow(articleID int64, name string, userID, relID int64, typ, url, content string) articleRelatedRow {
	return articleRelatedRow{
		articleID:      articleID,
		articleName:    name,
		userID:         userID,
		relatedID:      presentInt8(relID),
		relatedType:    presentText(typ),
		relatedURL:     presentText(url),
		relatedContent: presentText(content),
	}
}

func childlessRow(articleID int64, name string, userID int64) articleRelatedRow {
	return articleRelatedRow{
		articleID:      articleID,
		articleName:    name,
		userID:         userID,
		relatedID:      nullInt8,
		relatedType:    nullText,
		relatedURL:     nullText,
		relatedContent: nullText,
	}
}

func TestFoldArticlesGroupsByParent(t *testing.T) {
	t.Parallel()

	rows := []articleRelatedRow{
		childRow(1, "first", 10, 100, "link", "http://a", ""),
		childRow(1, "first", 10, 101, "note", "", "body"),
		childlessRow(2, "second", 20),
		childRow(3, "third", 30, 102, "link", "http://b", ""),
	}

	articles := foldArticles(rows)

	require.Len(t, articles, 3)

	require.Equal(t, int64(1), articles[0].ID)
	require.Equal(t, "first", articles[0].Name)
	require.Equal(t, int64(10), articles[0].UserID)
	require.Equal(t, []Related{
		{Type: "link", URL: "http://a", Content: ""},
		{Type: "note", URL: "", Content: "body"},
	}, articles[0].Related)

	require.Equal(t, int64(2), articles[1].ID)
	require.NotNil(t, articles[1].Related)
	require.Empty(t, articles[1].Related)

	require.Equal(t, int64(3), articles[2].ID)
	require.Len(t, articles[2].Related, 1)
}

func TestFoldArticlesInterleavedRows(t *testing.T) {
	t.Parallel()

	// grouping must not rely on rows for one parent being contiguous
	rows := []articleRelatedRow{
		childRow(1, "first", 10, 100, "a", "", ""),
		childRow(2, "second", 20, 200, "b", "", ""),
		childRow(1, "first", 10, 101, "c", "", ""),
	}

	articles := foldArticles(rows)

	require.Len(t, articles, 2)
	require.Equal(t, int64(1), articles[0].ID)
	require.Equal(t, int64(2), articles[1].ID)
	require.Equal(t, []Related{
		{Type: "a"},
		{Type: "c"},
	}, articles[0].Related)
}

func TestFoldArticlesEmpty(t *testing.T) {
	t.Parallel()

	articles := foldArticles(nil)

	require.NotNil(t, articles)
	require.Empty(t, articles)
}

func TestFoldArticleNotFound(t *testing.T) {
	t.Parallel()

	_, ok := foldArticle(nil)
	require.False(t, ok)
}

func TestFoldArticleNoChildren(t *testing.T) {
	t.Parallel()

	article, ok := foldArticle([]articleRelatedRow{childlessRow(7, "lonely", 10)})

	require.True(t, ok)
	require.Equal(t, int64(7), article.ID)
	require.NotNil(t, article.Related)
	require.Empty(t, article.Related)
}

func TestFoldArticleHeaderRowWithoutChild(t *testing.T) {
	t.Parallel()

	// the header comes from the first row even when that row carries
	// no child; children from later rows must still be collected
	rows := []articleRelatedRow{
		childlessRow(7, "first", 10),
		childRow(7, "first", 10, 100, "link", "http://a", ""),
	}

	article, ok := foldArticle(rows)

	require.True(t, ok)
	require.Equal(t, "first", article.Name)
	require.Equal(t, []Related{{Type: "link", URL: "http://a"}}, article.Related)
}

func TestFoldUserProfile(t *testing.T) {
	t.Parallel()

	rows := []userArticleRow{
		{userID: 1, username: "alice", name: "Alice", articleID: presentInt8(11), articleName: presentText("one")},
		{userID: 1, username: "alice", name: "Alice", articleID: presentInt8(12), articleName: presentText("two")},
	}

	profile, ok := foldUserProfile(rows)

	require.True(t, ok)
	require.Equal(t, int64(1), profile.ID)
	require.Equal(t, "alice", profile.Username)
	require.Equal(t, "Alice", profile.Name)
	require.Equal(t, []ArticleRef{{ID: 11, Name: "one"}, {ID: 12, Name: "two"}}, profile.Articles)
}

func TestFoldUserProfileNoArticles(t *testing.T) {
	t.Parallel()

	rows := []userArticleRow{
		{userID: 1, username: "alice", name: "Alice", articleID: nullInt8, articleName: nullText},
	}

	profile, ok := foldUserProfile(rows)

	require.True(t, ok)
	require.NotNil(t, profile.Articles)
	require.Empty(t, profile.Articles)
}

func TestFoldUserProfileNotFound(t *testing.T) {
	t.Parallel()

	_, ok := foldUserProfile(nil)
	require.False(t, ok)
}
