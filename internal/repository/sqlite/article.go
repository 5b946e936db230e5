package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

// compile-time check that *DB implements repository.SavedArticleRepository
var _ repository.SavedArticleRepository = (*DB)(nil)

// CreateSavedArticle inserts a saved article. The UNIQUE(user_id, dev_to_id)
// constraint enforces "a user cannot save the same article twice".
func (db *DB) CreateSavedArticle(ctx context.Context, a *model.SavedArticle) error {
	a.ID = xid.New().String()

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO saved_articles (id, user_id, title, url, content, author,
		                             published_at, tags, dev_to_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.UserID,
		a.Title,
		a.URL,
		a.Content,
		a.Author,
		nullableTime(a.PublishedAt),
		a.Tags,
		a.DevToID,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Article already saved")
		}
		return fmt.Errorf("sqlite: creating saved article: %w", err)
	}

	return nil
}

func (db *DB) ListSavedArticles(ctx context.Context, userID string) ([]model.SavedArticle, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, title, url, content, author, published_at, tags,
		        dev_to_id, created_at, updated_at
		 FROM saved_articles
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saved articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.SavedArticle, 0, 16)
	for rows.Next() {
		var (
			a         model.SavedArticle
			published sql.NullTime
		)
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Title, &a.URL, &a.Content, &a.Author,
			&published, &a.Tags, &a.DevToID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning saved article row: %w", err)
		}
		if published.Valid {
			t := published.Time
			a.PublishedAt = &t
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating saved articles: %w", err)
	}

	return articles, nil
}

func (db *DB) DeleteSavedArticle(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM saved_articles WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting saved article %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("saved article", id)
	}

	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
