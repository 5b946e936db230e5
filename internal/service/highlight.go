package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

const (
	MaxHighlightTextLength = 5000
	DefaultPageSize        = 20
	MaxPageSize            = 100
)

// Explainer is the slice of gemini.Client the highlight store depends on.
// Tests substitute a recording fake; handlers never see this interface.
type Explainer interface {
	Explain(ctx context.Context, text, contextText string) (string, error)
}

// HighlightService owns the highlight persistence and explanation flow.
type HighlightService struct {
	repo      repository.HighlightRepository
	explainer Explainer
	logger    *slog.Logger
}

func NewHighlightService(repo repository.HighlightRepository, explainer Explainer, logger *slog.Logger) *HighlightService {
	return &HighlightService{
		repo:      repo,
		explainer: explainer,
		logger:    logger,
	}
}

// CreateHighlightInput carries everything a highlight creation can set.
type CreateHighlightInput struct {
	ArticleID       string
	ArticleTitle    string
	ArticleURL      string
	HighlightedText string
	Context         string
	Position        json.RawMessage
	Tags            []string
	AutoExplain     bool
}

// Create validates and persists a new highlight.
//
// When AutoExplain is set, the explanation call is strictly best-effort: a
// failure is logged and the highlight is created with a null explanation.
// The user's selection must never be lost because the AI was down — they can
// request the explanation again later via Explain.
func (s *HighlightService) Create(ctx context.Context, userID string, input CreateHighlightInput) (*model.Highlight, error) {
	text := strings.TrimSpace(input.HighlightedText)

	if strings.TrimSpace(input.ArticleID) == "" {
		return nil, apperror.ValidationFailed("articleId", "Article ID is required")
	}
	if text == "" {
		return nil, apperror.ValidationFailed("highlightedText", "Highlighted text is required")
	}
	if len(text) > MaxHighlightTextLength {
		return nil, apperror.ValidationFailed("highlightedText",
			fmt.Sprintf("Highlighted text must be %d characters or less", MaxHighlightTextLength))
	}

	highlight := &model.Highlight{
		UserID:          userID,
		ArticleID:       strings.TrimSpace(input.ArticleID),
		ArticleTitle:    strings.TrimSpace(input.ArticleTitle),
		ArticleURL:      strings.TrimSpace(input.ArticleURL),
		HighlightedText: text,
		Context:         strings.TrimSpace(input.Context),
		Position:        input.Position,
		Tags:            input.Tags,
		IsBookmarked:    false,
	}
	if highlight.Tags == nil {
		highlight.Tags = []string{}
	}

	if input.AutoExplain {
		explanation, err := s.explainer.Explain(ctx, highlight.HighlightedText, highlight.Context)
		if err != nil {
			s.logger.Warn("auto-explain failed, creating highlight without explanation",
				slog.String("userID", userID),
				slog.String("articleId", highlight.ArticleID),
				slog.String("error", err.Error()),
			)
		} else {
			highlight.Explanation = &explanation
		}
	}

	if err := s.repo.CreateHighlight(ctx, highlight); err != nil {
		s.logger.Error("failed to create highlight",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating highlight: %w", err)
	}

	s.logger.Info("highlight created",
		slog.String("id", highlight.ID),
		slog.String("userID", userID),
		slog.Bool("autoExplain", input.AutoExplain),
	)

	return highlight, nil
}

// ListHighlightsInput is the page/filter request for List.
type ListHighlightsInput struct {
	Page         int
	Limit        int
	ArticleID    string
	IsBookmarked *bool
	Search       string
}

// List returns one page of the user's highlights plus the total count.
// Page numbers are 1-based; out-of-range values are clamped, not rejected.
func (s *HighlightService) List(ctx context.Context, userID string, input ListHighlightsInput) ([]model.Highlight, int, error) {
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

	highlights, total, err := s.repo.ListHighlights(ctx, userID, repository.HighlightFilter{
		ArticleID:    strings.TrimSpace(input.ArticleID),
		IsBookmarked: input.IsBookmarked,
		Search:       strings.TrimSpace(input.Search),
		Limit:        limit,
		Offset:       (page - 1) * limit,
	})
	if err != nil {
		s.logger.Error("failed to list highlights",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("listing highlights: %w", err)
	}

	return highlights, total, nil
}

// ListByArticle returns all of the user's highlights on one article in
// reading order.
func (s *HighlightService) ListByArticle(ctx context.Context, userID, articleID string) ([]model.Highlight, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return nil, apperror.ValidationFailed("articleId", "Article ID is required")
	}

	highlights, err := s.repo.ListHighlightsByArticle(ctx, userID, articleID)
	if err != nil {
		return nil, fmt.Errorf("listing highlights for article: %w", err)
	}

	return highlights, nil
}

func (s *HighlightService) GetByID(ctx context.Context, userID, id string) (*model.Highlight, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "Highlight ID is required")
	}

	return s.repo.GetHighlight(ctx, userID, id)
}

// UpdateHighlightInput uses pointers to distinguish "field absent" (nil,
// leave untouched) from zero values — false and "" are legitimate updates.
// This mirrors an explicit `!== undefined` check in a dynamic language.
type UpdateHighlightInput struct {
	HighlightedText *string
	Explanation     *string
	Tags            *[]string
	IsBookmarked    *bool
}

// Update applies a partial update to an owned highlight. Fetch-then-update:
// the not-found (or not-owned) case surfaces from the fetch, and the full
// updated record is returned.
func (s *HighlightService) Update(ctx context.Context, userID, id string, input UpdateHighlightInput) (*model.Highlight, error) {
	highlight, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.HighlightedText != nil {
		text := strings.TrimSpace(*input.HighlightedText)
		if text == "" {
			return nil, apperror.ValidationFailed("highlightedText", "Highlighted text is required")
		}
		if len(text) > MaxHighlightTextLength {
			return nil, apperror.ValidationFailed("highlightedText",
				fmt.Sprintf("Highlighted text must be %d characters or less", MaxHighlightTextLength))
		}
		highlight.HighlightedText = text
	}
	if input.Explanation != nil {
		highlight.Explanation = input.Explanation
	}
	if input.Tags != nil {
		tags := *input.Tags
		if tags == nil {
			tags = []string{}
		}
		highlight.Tags = tags
	}
	if input.IsBookmarked != nil {
		highlight.IsBookmarked = *input.IsBookmarked
	}

	if err := s.repo.UpdateHighlight(ctx, highlight); err != nil {
		return nil, fmt.Errorf("updating highlight: %w", err)
	}

	return highlight, nil
}

func (s *HighlightService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Highlight ID is required")
	}

	if err := s.repo.DeleteHighlight(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("highlight deleted",
		slog.String("id", id),
		slog.String("userID", userID),
	)

	return nil
}

// ExplainResult reports the explanation and how it was obtained.
type ExplainResult struct {
	Highlight *model.Highlight
	Message   string
}

// Explain returns the highlight's explanation, generating it on demand.
//
// IDEMPOTENCE: if an explanation already exists and regenerate is false, the
// cached text is returned without touching the AI service — calling this any
// number of times costs exactly one upstream call (the first). regenerate
// forces a fresh call and overwrites the stored explanation.
//
// Unlike the auto-explain path in Create, failures here propagate: the user
// explicitly asked for an explanation, so a silent null would be a lie.
func (s *HighlightService) Explain(ctx context.Context, userID, id string, regenerate bool) (*ExplainResult, error) {
	highlight, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if highlight.Explanation != nil && !regenerate {
		return &ExplainResult{
			Highlight: highlight,
			Message:   "Explanation retrieved from cache",
		}, nil
	}

	hadExplanation := highlight.Explanation != nil

	explanation, err := s.explainer.Explain(ctx, highlight.HighlightedText, highlight.Context)
	if err != nil {
		s.logger.Error("explanation request failed",
			slog.String("highlightID", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("generating explanation: %w", err)
	}

	highlight.Explanation = &explanation
	if err := s.repo.UpdateHighlight(ctx, highlight); err != nil {
		return nil, fmt.Errorf("persisting explanation: %w", err)
	}

	message := "Explanation generated"
	if hadExplanation {
		message = "Explanation regenerated"
	}

	return &ExplainResult{Highlight: highlight, Message: message}, nil
}
