// Package repository declares the storage interfaces the service layer
// programs against. The sqlite subpackage is the only implementation; tests
// substitute in-memory mocks.
//
// OWNERSHIP SCOPING:
// Every read, update, and delete of an owned entity takes the owner's userID
// and the implementation must include it in the WHERE clause. A record that
// exists but belongs to someone else is indistinguishable from a missing one
// (both return apperror.ErrNotFound) — 404, never 403, so callers cannot
// probe for other users' data.
package repository

import (
	"context"

	"github.com/chiral-app/chiral-server/internal/model"
)

// HighlightFilter narrows and paginates a highlight listing.
type HighlightFilter struct {
	ArticleID    string // exact match when non-empty
	IsBookmarked *bool  // nil = no filter
	Search       string // case-insensitive substring, OR across text/explanation/articleTitle
	Limit        int
	Offset       int
}

// NoteFilter narrows and paginates a note listing.
//
// FavoriteOnly is a bool, not *bool: the API contract engages the favorite
// filter only on the literal query value "true"; every other value means
// "all notes". There is no "only non-favorites" filter.
type NoteFilter struct {
	Search       string
	FavoriteOnly bool
	Limit        int
	Offset       int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

type HighlightRepository interface {
	CreateHighlight(ctx context.Context, h *model.Highlight) error
	GetHighlight(ctx context.Context, userID, id string) (*model.Highlight, error)
	// ListHighlights returns one page plus the total count matching the filter.
	ListHighlights(ctx context.Context, userID string, f HighlightFilter) ([]model.Highlight, int, error)
	// ListHighlightsByArticle returns all of a user's highlights for one
	// article in reading order (created_at ascending), unpaginated.
	ListHighlightsByArticle(ctx context.Context, userID, articleID string) ([]model.Highlight, error)
	UpdateHighlight(ctx context.Context, h *model.Highlight) error
	DeleteHighlight(ctx context.Context, userID, id string) error
}

type NoteRepository interface {
	CreateNote(ctx context.Context, n *model.Note) error
	GetNote(ctx context.Context, userID, id string) (*model.Note, error)
	ListNotes(ctx context.Context, userID string, f NoteFilter) ([]model.Note, int, error)
	UpdateNote(ctx context.Context, n *model.Note) error
	DeleteNote(ctx context.Context, userID, id string) error
}

type SavedArticleRepository interface {
	CreateSavedArticle(ctx context.Context, a *model.SavedArticle) error
	ListSavedArticles(ctx context.Context, userID string) ([]model.SavedArticle, error)
	DeleteSavedArticle(ctx context.Context, userID, id string) error
}
