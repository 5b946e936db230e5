package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

const (
	MaxNoteTitleLength       = 200
	MaxNoteContentLength     = 50000
	MaxNoteHighlightLength   = 5000
	MaxNoteExplanationLength = 10000
	MaxNoteContextLength     = 10000
)

// NoteService owns note persistence. Which fields a note requires depends on
// its variant (noteType); all variant rules live here, in one place.
type NoteService struct {
	repo   repository.NoteRepository
	logger *slog.Logger
}

func NewNoteService(repo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{repo: repo, logger: logger}
}

// CreateNoteInput carries the union of both variants' fields; Create checks
// the set required by NoteType.
type CreateNoteInput struct {
	NoteType        string
	Title           string
	Content         string
	HighlightedText string
	Explanation     string
	OriginalContext string
	IsFavorite      bool
}

// Create validates by variant and persists the note. All string fields are
// trimmed before validation, so whitespace-only input counts as missing.
func (s *NoteService) Create(ctx context.Context, userID string, input CreateNoteInput) (*model.Note, error) {
	note := &model.Note{
		UserID:     userID,
		NoteType:   strings.TrimSpace(input.NoteType),
		IsFavorite: input.IsFavorite,
	}

	switch note.NoteType {
	case model.NoteTypeTraditional:
		note.Title = strings.TrimSpace(input.Title)
		note.Content = strings.TrimSpace(input.Content)

		if note.Title == "" {
			return nil, apperror.ValidationFailed("title", "Title is required for traditional notes")
		}
		if len(note.Title) > MaxNoteTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("Title must be %d characters or less", MaxNoteTitleLength))
		}
		if note.Content == "" {
			return nil, apperror.ValidationFailed("content", "Content is required for traditional notes")
		}
		if len(note.Content) > MaxNoteContentLength {
			return nil, apperror.ValidationFailed("content",
				fmt.Sprintf("Content must be %d characters or less", MaxNoteContentLength))
		}

	case model.NoteTypeHighlight:
		note.HighlightedText = strings.TrimSpace(input.HighlightedText)
		note.Explanation = strings.TrimSpace(input.Explanation)
		note.OriginalContext = strings.TrimSpace(input.OriginalContext)

		if note.HighlightedText == "" {
			return nil, apperror.ValidationFailed("highlightedText",
				"Highlighted text is required for highlight notes")
		}
		if len(note.HighlightedText) > MaxNoteHighlightLength {
			return nil, apperror.ValidationFailed("highlightedText",
				fmt.Sprintf("Highlighted text must be %d characters or less", MaxNoteHighlightLength))
		}
		if note.Explanation == "" {
			return nil, apperror.ValidationFailed("explanation",
				"Explanation is required for highlight notes")
		}
		if len(note.Explanation) > MaxNoteExplanationLength {
			return nil, apperror.ValidationFailed("explanation",
				fmt.Sprintf("Explanation must be %d characters or less", MaxNoteExplanationLength))
		}
		if len(note.OriginalContext) > MaxNoteContextLength {
			return nil, apperror.ValidationFailed("originalContext",
				fmt.Sprintf("Original context must be %d characters or less", MaxNoteContextLength))
		}

	default:
		return nil, apperror.ValidationFailed("noteType",
			"noteType must be 'traditional' or 'highlight'")
	}

	if err := s.repo.CreateNote(ctx, note); err != nil {
		s.logger.Error("failed to create note",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("id", note.ID),
		slog.String("userID", userID),
		slog.String("noteType", note.NoteType),
	)

	return note, nil
}

// ListNotesInput is the page/filter request for List.
type ListNotesInput struct {
	Page         int
	Limit        int
	Search       string
	FavoriteOnly bool
}

func (s *NoteService) List(ctx context.Context, userID string, input ListNotesInput) ([]model.Note, int, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	notes, total, err := s.repo.ListNotes(ctx, userID, repository.NoteFilter{
		Search:       strings.TrimSpace(input.Search),
		FavoriteOnly: input.FavoriteOnly,
		Limit:        limit,
		Offset:       (page - 1) * limit,
	})
	if err != nil {
		s.logger.Error("failed to list notes",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("listing notes: %w", err)
	}

	return notes, total, nil
}

func (s *NoteService) GetByID(ctx context.Context, userID, id string) (*model.Note, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "Note ID is required")
	}

	return s.repo.GetNote(ctx, userID, id)
}

// UpdateNoteInput uses pointers so absent fields stay untouched (false and ""
// are valid values to set).
type UpdateNoteInput struct {
	Title           *string
	Content         *string
	HighlightedText *string
	Explanation     *string
	OriginalContext *string
	IsFavorite      *bool
}

// Update applies a partial update, enforcing the record's own variant:
// sending a field that belongs to the other variant is a validation error.
// Accepting it silently would let a record drift into satisfying neither
// variant's required-field set.
func (s *NoteService) Update(ctx context.Context, userID, id string, input UpdateNoteInput) (*model.Note, error) {
	note, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	switch note.NoteType {
	case model.NoteTypeTraditional:
		if input.HighlightedText != nil || input.Explanation != nil || input.OriginalContext != nil {
			return nil, apperror.ValidationFailed("noteType",
				"highlightedText, explanation and originalContext are only valid for highlight notes")
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return nil, apperror.ValidationFailed("title", "Title is required for traditional notes")
			}
			if len(title) > MaxNoteTitleLength {
				return nil, apperror.ValidationFailed("title",
					fmt.Sprintf("Title must be %d characters or less", MaxNoteTitleLength))
			}
			note.Title = title
		}
		if input.Content != nil {
			content := strings.TrimSpace(*input.Content)
			if content == "" {
				return nil, apperror.ValidationFailed("content", "Content is required for traditional notes")
			}
			if len(content) > MaxNoteContentLength {
				return nil, apperror.ValidationFailed("content",
					fmt.Sprintf("Content must be %d characters or less", MaxNoteContentLength))
			}
			note.Content = content
		}

	case model.NoteTypeHighlight:
		if input.Title != nil || input.Content != nil {
			return nil, apperror.ValidationFailed("noteType",
				"title and content are only valid for traditional notes")
		}

		if input.HighlightedText != nil {
			text := strings.TrimSpace(*input.HighlightedText)
			if text == "" {
				return nil, apperror.ValidationFailed("highlightedText",
					"Highlighted text is required for highlight notes")
			}
			if len(text) > MaxNoteHighlightLength {
				return nil, apperror.ValidationFailed("highlightedText",
					fmt.Sprintf("Highlighted text must be %d characters or less", MaxNoteHighlightLength))
			}
			note.HighlightedText = text
		}
		if input.Explanation != nil {
			explanation := strings.TrimSpace(*input.Explanation)
			if explanation == "" {
				return nil, apperror.ValidationFailed("explanation",
					"Explanation is required for highlight notes")
			}
			if len(explanation) > MaxNoteExplanationLength {
				return nil, apperror.ValidationFailed("explanation",
					fmt.Sprintf("Explanation must be %d characters or less", MaxNoteExplanationLength))
			}
			note.Explanation = explanation
		}
		if input.OriginalContext != nil {
			contextText := strings.TrimSpace(*input.OriginalContext)
			if len(contextText) > MaxNoteContextLength {
				return nil, apperror.ValidationFailed("originalContext",
					fmt.Sprintf("Original context must be %d characters or less", MaxNoteContextLength))
			}
			note.OriginalContext = contextText
		}
	}

	if input.IsFavorite != nil {
		note.IsFavorite = *input.IsFavorite
	}

	if err := s.repo.UpdateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("updating note: %w", err)
	}

	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Note ID is required")
	}

	if err := s.repo.DeleteNote(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("note deleted",
		slog.String("id", id),
		slog.String("userID", userID),
	)

	return nil
}

// RenderMarkdown renders a note as a standalone markdown document. Used by
// the markdown export endpoint; the client offers it as a download.
func (s *NoteService) RenderMarkdown(note *model.Note) string {
	var b strings.Builder

	switch note.NoteType {
	case model.NoteTypeHighlight:
		b.WriteString("# Highlight Note\n\n")
		b.WriteString("> ")
		b.WriteString(strings.ReplaceAll(note.HighlightedText, "\n", "\n> "))
		b.WriteString("\n\n## Explanation\n\n")
		b.WriteString(note.Explanation)
		if note.OriginalContext != "" {
			b.WriteString("\n\n## Original Context\n\n")
			b.WriteString(note.OriginalContext)
		}
	default:
		b.WriteString("# ")
		b.WriteString(note.Title)
		b.WriteString("\n\n")
		b.WriteString(note.Content)
	}

	b.WriteString("\n\n---\n")
	b.WriteString("Created: ")
	b.WriteString(note.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString("\n")

	return b.String()
}
