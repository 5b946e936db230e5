package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

// compile-time check that *DB implements repository.HighlightRepository
var _ repository.HighlightRepository = (*DB)(nil)

const highlightColumns = `id, user_id, article_id, article_title, article_url,
	highlighted_text, explanation, context, position, tags, is_bookmarked,
	created_at, updated_at`

func (db *DB) CreateHighlight(ctx context.Context, h *model.Highlight) error {
	h.ID = xid.New().String()

	now := time.Now()
	h.CreatedAt = now
	h.UpdatedAt = now

	tags, err := marshalStrings(h.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO highlights (id, user_id, article_id, article_title, article_url,
		                         highlighted_text, explanation, context, position, tags,
		                         is_bookmarked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID,
		h.UserID,
		h.ArticleID,
		h.ArticleTitle,
		h.ArticleURL,
		h.HighlightedText,
		nullableString(h.Explanation),
		h.Context,
		nullableRaw(h.Position),
		tags,
		h.IsBookmarked,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating highlight: %w", err)
	}

	return nil
}

// GetHighlight fetches one highlight scoped to its owner. The user_id
// predicate makes a foreign user's highlight look exactly like a missing one.
func (db *DB) GetHighlight(ctx context.Context, userID, id string) (*model.Highlight, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+highlightColumns+`
		 FROM highlights
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	)

	h, err := scanHighlight(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("highlight", id)
		}
		return nil, fmt.Errorf("sqlite: getting highlight %s: %w", id, err)
	}

	return h, nil
}

// ListHighlights returns one page of a user's highlights (newest first) plus
// the total count matching the filter.
//
// The WHERE clause is assembled from the filter; every fragment uses ?
// placeholders, so user input never reaches the SQL text itself. The same
// fragment list feeds both the COUNT and the page query, keeping total and
// page consistent.
func (db *DB) ListHighlights(ctx context.Context, userID string, f repository.HighlightFilter) ([]model.Highlight, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.ArticleID != "" {
		where = append(where, "article_id = ?")
		args = append(args, f.ArticleID)
	}
	if f.IsBookmarked != nil {
		where = append(where, "is_bookmarked = ?")
		args = append(args, *f.IsBookmarked)
	}
	if f.Search != "" {
		// Case-insensitive substring match, OR semantics across the three
		// text columns. lower() keeps it case-insensitive beyond ASCII-only
		// LIKE behavior for the common case.
		where = append(where,
			`(lower(highlighted_text) LIKE ? OR lower(coalesce(explanation, '')) LIKE ? OR lower(article_title) LIKE ?)`)
		pattern := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM highlights WHERE `+whereSQL, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting highlights: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+highlightColumns+`
		 FROM highlights
		 WHERE `+whereSQL+`
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing highlights: %w", err)
	}
	defer rows.Close()

	highlights, err := collectHighlights(rows, limit)
	if err != nil {
		return nil, 0, err
	}

	return highlights, total, nil
}

// ListHighlightsByArticle returns every highlight the user made on one
// article, oldest first — reading order for re-rendering them in place.
func (db *DB) ListHighlightsByArticle(ctx context.Context, userID, articleID string) ([]model.Highlight, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+highlightColumns+`
		 FROM highlights
		 WHERE user_id = ? AND article_id = ?
		 ORDER BY created_at ASC`,
		userID, articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing highlights for article %s: %w", articleID, err)
	}
	defer rows.Close()

	return collectHighlights(rows, 0)
}

// UpdateHighlight writes the mutable columns back, scoped to the owner.
// RowsAffected == 0 means the row is missing or foreign: not found.
func (db *DB) UpdateHighlight(ctx context.Context, h *model.Highlight) error {
	h.UpdatedAt = time.Now()

	tags, err := marshalStrings(h.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE highlights
		 SET highlighted_text = ?, explanation = ?, context = ?, tags = ?,
		     is_bookmarked = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		h.HighlightedText,
		nullableString(h.Explanation),
		h.Context,
		tags,
		h.IsBookmarked,
		h.UpdatedAt,
		h.ID,
		h.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating highlight %s: %w", h.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("highlight", h.ID)
	}

	return nil
}

func (db *DB) DeleteHighlight(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM highlights WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting highlight %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("highlight", id)
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanHighlight(s scanner) (*model.Highlight, error) {
	var (
		h           model.Highlight
		explanation sql.NullString
		position    sql.NullString
		tags        string
	)

	err := s.Scan(
		&h.ID,
		&h.UserID,
		&h.ArticleID,
		&h.ArticleTitle,
		&h.ArticleURL,
		&h.HighlightedText,
		&explanation,
		&h.Context,
		&position,
		&tags,
		&h.IsBookmarked,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if explanation.Valid {
		h.Explanation = &explanation.String
	}
	if position.Valid && position.String != "" {
		h.Position = json.RawMessage(position.String)
	}
	if err := json.Unmarshal([]byte(tags), &h.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for highlight %s: %w", h.ID, err)
	}

	return &h, nil
}

func collectHighlights(rows *sql.Rows, capacity int) ([]model.Highlight, error) {
	highlights := make([]model.Highlight, 0, capacity)

	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning highlight row: %w", err)
		}
		highlights = append(highlights, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating highlights: %w", err)
	}

	return highlights, nil
}

// nullableString maps a nil pointer to SQL NULL.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullableRaw maps empty raw JSON to SQL NULL.
func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
