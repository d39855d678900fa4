package storage

import "github.com/jackc/pgtype"

// Read queries join articles (or users) against their children with a
// left outer join, so every child column arrives nullable. The fold
// functions below turn those flat rows back into nested entities.
// They never touch the database and rely on the child id column to
// tell "parent without children" (null) from a real child row.

type articleRelatedRow struct {
	articleID      int64
	articleName    string
	userID         int64
	relatedID      pgtype.Int8
	relatedType    pgtype.Text
	relatedURL     pgtype.Text
	relatedContent pgtype.Text
}

type userArticleRow struct {
	userID      int64
	username    string
	name        string
	articleID   pgtype.Int8
	articleName pgtype.Text
}

func textOrEmpty(t pgtype.Text) string {
	if t.Status == pgtype.Present {
		return t.String
	}
	return ""
}

// foldArticles groups flat join rows by article id. Articles appear
// in first-seen row order; rows belonging to an already seen article
// only contribute a related entry. Related entries keep row order.
func foldArticles(rows []articleRelatedRow) []Article {
	articles := make([]Article, 0)
	index := make(map[int64]int)

	for _, row := range rows {
		i, seen := index[row.articleID]
		if !seen {
			articles = append(articles, Article{
				ID:      row.articleID,
				Name:    row.articleName,
				UserID:  row.userID,
				Related: make([]Related, 0),
			})
			i = len(articles) - 1
			index[row.articleID] = i
		}

		if row.relatedID.Status != pgtype.Present {
			continue
		}

		articles[i].Related = append(articles[i].Related, Related{
			Type:    textOrEmpty(row.relatedType),
			URL:     textOrEmpty(row.relatedURL),
			Content: textOrEmpty(row.relatedContent),
		})
	}

	return articles
}

// foldArticle builds a single article from rows already filtered to
// one article id. The header comes from the first row, but children
// are collected from every row matching that id, so a leading row
// with a null child column cannot hide later children. Returns false
// on an empty row set, which the caller reports as not found.
func foldArticle(rows []articleRelatedRow) (Article, bool) {
	if len(rows) == 0 {
		return Article{}, false
	}

	article := Article{
		ID:      rows[0].articleID,
		Name:    rows[0].articleName,
		UserID:  rows[0].userID,
		Related: make([]Related, 0),
	}

	for _, row := range rows {
		if row.articleID != article.ID || row.relatedID.Status != pgtype.Present {
			continue
		}
		article.Related = append(article.Related, Related{
			Type:    textOrEmpty(row.relatedType),
			URL:     textOrEmpty(row.relatedURL),
			Content: textOrEmpty(row.relatedContent),
		})
	}

	return article, true
}

// foldUserProfile is the single-parent fold for the user-to-articles
// join. Same contract as foldArticle.
func foldUserProfile(rows []userArticleRow) (UserProfile, bool) {
	if len(rows) == 0 {
		return UserProfile{}, false
	}

	profile := UserProfile{
		ID:       rows[0].userID,
		Username: rows[0].username,
		Name:     rows[0].name,
		Articles: make([]ArticleRef, 0),
	}

	for _, row := range rows {
		if row.userID != profile.ID || row.articleID.Status != pgtype.Present {
			continue
		}
		profile.Articles = append(profile.Articles, ArticleRef{
			ID:   row.articleID.Int,
			Name: textOrEmpty(row.articleName),
		})
	}

	return profile, true
}
