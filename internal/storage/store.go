package storage

import (
	"context"
	"errors"

	"article-companion-backend/internal/storage/zapadapter"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrUserNotExist    = errors.New("user does not exist")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrArticleNotExist = errors.New("article does not exist")
	ErrArticleBadUser  = errors.New("bad owner user id")
	ErrAuthFailed      = errors.New("username and token do not match")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// NewStore connects a pgxpool.Pool using provided Config, routes
// driver logs through the provided zap logger and returns a Store.
func NewStore(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.db.Close()
}

const articleJoin = `select a.id,
							a.name,
							a.user_id,
							r.id,
							r.type,
							r.url,
							r.content
					   from articles a
					   left join related r
						 on r.article_id = a.id`

// Articles returns every article with its related items nested,
// ordered by article id.
func (s *Store) Articles(ctx context.Context) ([]Article, error) {
	s.logger.Debug("Retrieving all articles")

	rows, err := s.db.Query(ctx, articleJoin+" order by a.id, r.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flat, err := scanArticleRows(rows)
	if err != nil {
		return nil, err
	}

	articles := foldArticles(flat)

	s.logger.Debugf("Retrieved %d articles", len(articles))

	return articles, nil
}

// ArticleByID returns one article with its related items nested.
func (s *Store) ArticleByID(ctx context.Context, id int64) (Article, error) {
	s.logger.Debugf("Retrieving article (id: %d)", id)

	rows, err := s.db.Query(ctx, articleJoin+" where a.id = $1 order by r.id", id)
	if err != nil {
		return Article{}, err
	}
	defer rows.Close()

	flat, err := scanArticleRows(rows)
	if err != nil {
		return Article{}, err
	}

	article, ok := foldArticle(flat)
	if !ok {
		return Article{}, ErrArticleNotExist
	}

	return article, nil
}

func scanArticleRows(rows pgx.Rows) ([]articleRelatedRow, error) {
	var flat []articleRelatedRow
	for rows.Next() {
		var row articleRelatedRow
		err := rows.Scan(
			&row.articleID,
			&row.articleName,
			&row.userID,
			&row.relatedID,
			&row.relatedType,
			&row.relatedURL,
			&row.relatedContent,
		)
		if err != nil {
			return nil, err
		}
		flat = append(flat, row)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return flat, nil
}

// CreateArticle performs a two-step transaction (1. insert article
// record returning its generated id; 2. bulk insert related rows
// stamped with that id) and returns the id. Commit is the single
// visibility boundary: either all rows land or none do.
func (s *Store) CreateArticle(ctx context.Context, name string, userID int64, related []Related) (int64, error) {
	s.logger.Debugf("Creating article (%s) for user (id: %d) with %d related items", name, userID, len(related))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	// error handling can be omitted for rollback according docs
	// see https://pkg.go.dev/github.com/jackc/pgx/v4?tab=doc#hdr-Transactions or any source comment on Rollback
	defer tx.Rollback(context.Background())

	var id int64
	sql := "insert into articles (name, user_id) values ($1, $2) returning id"
	err = tx.QueryRow(ctx, sql, name, userID).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, ErrArticleBadUser
		}
		return 0, err
	}

	if len(related) > 0 {
		rows := make([]relatedRow, 0, len(related))
		for _, r := range related {
			rows = append(rows, relatedRow{
				articleID: id,
				userID:    userID,
				typ:       r.Type,
				url:       r.URL,
				content:   r.Content,
			})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"related"},
			[]string{"article_id", "user_id", "type", "url", "content"},
			copyFromRelated(rows),
		)
		if err != nil {
			return 0, err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.Debugf("Created article (%s) with id %d", name, id)

	return id, nil
}

// DeleteArticle removes an article and every related item attached to
// it in one transaction. Related rows go first to satisfy the foreign
// key; existence is resolved from the affected-row count of the
// article delete, so a missing article rolls the child deletes back.
func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	s.logger.Debugf("Deleting article (id: %d)", id)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	_, err = tx.Exec(ctx, "delete from related where article_id = $1", id)
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, "delete from articles where id = $1", id)
	if err != nil {
		return err
	}

	if ct.RowsAffected() == 0 {
		return ErrArticleNotExist
	}

	return tx.Commit(ctx)
}

// UserByID returns the user profile with shallow article references
// nested.
func (s *Store) UserByID(ctx context.Context, id int64) (UserProfile, error) {
	s.logger.Debugf("Retrieving user (id: %d)", id)

	sql := `select u.id,
				   u.username,
				   u.name,
				   a.id,
				   a.name
			  from users u
			  left join articles a
				on a.user_id = u.id
			 where u.id = $1
			 order by a.id`

	rows, err := s.db.Query(ctx, sql, id)
	if err != nil {
		return UserProfile{}, err
	}
	defer rows.Close()

	var flat []userArticleRow
	for rows.Next() {
		var row userArticleRow
		err = rows.Scan(&row.userID, &row.username, &row.name, &row.articleID, &row.articleName)
		if err != nil {
			return UserProfile{}, err
		}
		flat = append(flat, row)
	}

	if rows.Err() != nil {
		return UserProfile{}, rows.Err()
	}

	profile, ok := foldUserProfile(flat)
	if !ok {
		return UserProfile{}, ErrUserNotExist
	}

	return profile, nil
}

// UpdateUser applies a sparse update built from the supplied fields
// only. Runs as a single auto-committing statement.
func (s *Store) UpdateUser(ctx context.Context, id int64, upd UserUpdate) error {
	sql, args, err := buildUserUpdate(id, upd)
	if err != nil {
		return err
	}

	s.logger.Debugf("Updating user (id: %d)", id)

	ct, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrUsernameTaken
		}
		return err
	}

	if ct.RowsAffected() == 0 {
		return ErrUserNotExist
	}

	return nil
}

// CreateUser creates a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, name string) (int64, error) {
	s.logger.Debugf("Creating user (%s)", username)

	var id int64
	sql := "insert into users (username, name) values ($1, $2) returning id"
	err := s.db.QueryRow(ctx, sql, username, name).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}

	s.logger.Debugf("Created user (%s) with id %d", username, id)

	return id, nil
}

// Authenticate matches a login name and token pair in one lookup.
// A missing user and a wrong token both come back as ErrAuthFailed,
// so the caller cannot tell which field was wrong.
func (s *Store) Authenticate(ctx context.Context, username, token string) (User, error) {
	var u User
	sql := "select id, username from users where username = $1 and token = $2"
	err := s.db.QueryRow(ctx, sql, username, token).Scan(&u.ID, &u.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrAuthFailed
		}
		return User{}, err
	}

	return u, nil
}
