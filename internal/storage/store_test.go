package storage

import (
	"context"
	"os"
	"testing"

	mytesting "article-companion-backend/internal/testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Tests below run against a live database described by the usual DB_*
// environment variables and are skipped unless TEST_DB is set.

func bootstrap(t *testing.T) *Store {
	if os.Getenv("TEST_DB") == "" {
		t.Skip("TEST_DB is not set, skipping database integration tests")
	}

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := Config{}
	require.NoError(t, env.Parse(&cfg))

	s, err := NewStore(context.Background(), logger.Sugar(), cfg)
	require.NoError(t, err)

	return s
}

func createTestUser(t *testing.T, s *Store) int64 {
	id, err := s.CreateUser(context.Background(), mytesting.RandString(), mytesting.RandString())
	require.NoError(t, err)
	return id
}

func TestCreateUser(t *testing.T) {
	s := bootstrap(t)

	_, err := s.CreateUser(context.Background(), mytesting.RandString(), "Some Name")
	require.NoError(t, err)
}

func TestCreateUserDuplicate(t *testing.T) {
	s := bootstrap(t)

	username := mytesting.RandString()
	_, err := s.CreateUser(context.Background(), username, "")
	require.NoError(t, err)
	_, err = s.CreateUser(context.Background(), username, "")
	require.Equal(t, ErrUsernameTaken, err)
}

func TestCreateArticleWithRelated(t *testing.T) {
	s := bootstrap(t)
	userID := createTestUser(t, s)

	name := mytesting.RandString()
	related := []Related{
		{Type: "link", URL: "http://x", Content: ""},
		{Type: "note", URL: "", Content: "body"},
	}

	id, err := s.CreateArticle(context.Background(), name, userID, related)
	require.NoError(t, err)

	article, err := s.ArticleByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, name, article.Name)
	require.Equal(t, userID, article.UserID)
	require.Equal(t, related, article.Related)
}

func TestCreateArticleNoRelated(t *testing.T) {
	s := bootstrap(t)
	userID := createTestUser(t, s)

	id, err := s.CreateArticle(context.Background(), mytesting.RandString(), userID, nil)
	require.NoError(t, err)

	article, err := s.ArticleByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, article.Related)
	require.Empty(t, article.Related)
}

func TestCreateArticleBadUserRollsBack(t *testing.T) {
	s := bootstrap(t)

	name := mytesting.RandString()
	_, err := s.CreateArticle(context.Background(), name, 1<<60, []Related{{Type: "link"}})
	require.Equal(t, ErrArticleBadUser, err)

	// nothing of the unit of work may survive the rollback
	var count int64
	err = s.db.QueryRow(context.Background(), "select count(*) from articles where name = $1", name).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDeleteArticleCascade(t *testing.T) {
	s := bootstrap(t)
	userID := createTestUser(t, s)

	id, err := s.CreateArticle(context.Background(), mytesting.RandString(), userID, []Related{
		{Type: "link", URL: "http://x"},
		{Type: "note", Content: "body"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteArticle(context.Background(), id))

	_, err = s.ArticleByID(context.Background(), id)
	require.Equal(t, ErrArticleNotExist, err)

	var count int64
	err = s.db.QueryRow(context.Background(), "select count(*) from related where article_id = $1", id).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDeleteArticleNotExist(t *testing.T) {
	s := bootstrap(t)

	err := s.DeleteArticle(context.Background(), 1<<60)
	require.Equal(t, ErrArticleNotExist, err)
}

func TestUpdateUserSparse(t *testing.T) {
	s := bootstrap(t)
	userID := createTestUser(t, s)

	empty := ""
	require.NoError(t, s.UpdateUser(context.Background(), userID, UserUpdate{Token: &empty}))

	var token string
	err := s.db.QueryRow(context.Background(), "select token from users where id = $1", userID).Scan(&token)
	require.NoError(t, err)
	require.Equal(t, "", token)
}

func TestUpdateUserNotExist(t *testing.T) {
	s := bootstrap(t)

	name := "whoever"
	err := s.UpdateUser(context.Background(), 1<<60, UserUpdate{Name: &name})
	require.Equal(t, ErrUserNotExist, err)
}

func TestUpdateUserEmpty(t *testing.T) {
	s := bootstrap(t)

	err := s.UpdateUser(context.Background(), 1, UserUpdate{})
	require.Equal(t, ErrEmptyUpdate, err)
}

func TestAuthenticate(t *testing.T) {
	s := bootstrap(t)
	userID := createTestUser(t, s)

	token := mytesting.RandString()
	require.NoError(t, s.UpdateUser(context.Background(), userID, UserUpdate{Token: &token}))

	profile, err := s.UserByID(context.Background(), userID)
	require.NoError(t, err)

	user, err := s.Authenticate(context.Background(), profile.Username, token)
	require.NoError(t, err)
	require.Equal(t, userID, user.ID)

	_, err = s.Authenticate(context.Background(), profile.Username, "bad")
	require.Equal(t, ErrAuthFailed, err)
}

func TestUserByIDNotExist(t *testing.T) {
	s := bootstrap(t)

	_, err := s.UserByID(context.Background(), 1<<60)
	require.Equal(t, ErrUserNotExist, err)
}

func TestUserByIDWithArticles(t *testing.T) {
	s := bootstrap(t)
	userID := createTestUser(t, s)

	first, err := s.CreateArticle(context.Background(), "one", userID, nil)
	require.NoError(t, err)
	second, err := s.CreateArticle(context.Background(), "two", userID, nil)
	require.NoError(t, err)

	profile, err := s.UserByID(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, []ArticleRef{{ID: first, Name: "one"}, {ID: second, Name: "two"}}, profile.Articles)
}
