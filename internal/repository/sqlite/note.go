package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

// compile-time check that *DB implements repository.NoteRepository
var _ repository.NoteRepository = (*DB)(nil)

const noteColumns = `id, user_id, note_type, title, content,
	highlighted_text, explanation, original_context, is_favorite,
	created_at, updated_at`

func (db *DB) CreateNote(ctx context.Context, n *model.Note) error {
	n.ID = xid.New().String()

	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, note_type, title, content,
		                    highlighted_text, explanation, original_context,
		                    is_favorite, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.UserID,
		n.NoteType,
		n.Title,
		n.Content,
		n.HighlightedText,
		n.Explanation,
		n.OriginalContext,
		n.IsFavorite,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}

	return nil
}

func (db *DB) GetNote(ctx context.Context, userID, id string) (*model.Note, error) {
	var n model.Note

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(
		&n.ID,
		&n.UserID,
		&n.NoteType,
		&n.Title,
		&n.Content,
		&n.HighlightedText,
		&n.Explanation,
		&n.OriginalContext,
		&n.IsFavorite,
		&n.CreatedAt,
		&n.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlite: getting note %s: %w", id, err)
	}

	return &n, nil
}

// ListNotes returns one page of a user's notes (newest first) plus the total
// matching the filter. Search spans the fields of both variants — a term can
// hit a traditional note's title or a highlight note's explanation.
func (db *DB) ListNotes(ctx context.Context, userID string, f repository.NoteFilter) ([]model.Note, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.Search != "" {
		where = append(where,
			`(lower(title) LIKE ? OR lower(content) LIKE ? OR lower(highlighted_text) LIKE ? OR lower(explanation) LIKE ?)`)
		pattern := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if f.FavoriteOnly {
		where = append(where, "is_favorite = 1")
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE `+whereSQL, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting notes: %w", err)
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
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE `+whereSQL+`
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing notes: %w", err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0, limit)
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.NoteType, &n.Title, &n.Content,
			&n.HighlightedText, &n.Explanation, &n.OriginalContext,
			&n.IsFavorite, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating notes: %w", err)
	}

	return notes, total, nil
}

func (db *DB) UpdateNote(ctx context.Context, n *model.Note) error {
	n.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE notes
		 SET title = ?, content = ?, highlighted_text = ?, explanation = ?,
		     original_context = ?, is_favorite = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		n.Title,
		n.Content,
		n.HighlightedText,
		n.Explanation,
		n.OriginalContext,
		n.IsFavorite,
		n.UpdatedAt,
		n.ID,
		n.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating note %s: %w", n.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", n.ID)
	}

	return nil
}

func (db *DB) DeleteNote(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", id)
	}

	return nil
}
