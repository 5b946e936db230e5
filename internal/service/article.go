package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

// SavedArticleService manages the user's reading list — articles copied out
// of the proxy into our own database so they survive upstream changes.
type SavedArticleService struct {
	repo   repository.SavedArticleRepository
	logger *slog.Logger
}

func NewSavedArticleService(repo repository.SavedArticleRepository, logger *slog.Logger) *SavedArticleService {
	return &SavedArticleService{repo: repo, logger: logger}
}

// SaveArticleInput carries the article metadata the client captured from the
// proxy listing.
type SaveArticleInput struct {
	Title       string
	URL         string
	Content     string
	Author      string
	PublishedAt *time.Time
	Tags        string
	DevToID     string
}

// Save persists an article to the user's reading list. Saving the same
// dev.to article twice is a conflict (UNIQUE(user_id, dev_to_id)).
func (s *SavedArticleService) Save(ctx context.Context, userID string, input SaveArticleInput) (*model.SavedArticle, error) {
	title := strings.TrimSpace(input.Title)
	rawURL := strings.TrimSpace(input.URL)
	devToID := strings.TrimSpace(input.DevToID)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "Title is required")
	}
	if devToID == "" {
		return nil, apperror.ValidationFailed("devToId", "dev.to article ID is required")
	}
	if rawURL == "" {
		return nil, apperror.ValidationFailed("url", "URL is required")
	}
	if parsed, err := url.ParseRequestURI(rawURL); err != nil || parsed.Host == "" {
		return nil, apperror.ValidationFailed("url", "URL must be a valid absolute URL")
	}

	article := &model.SavedArticle{
		UserID:      userID,
		Title:       title,
		URL:         rawURL,
		Content:     input.Content,
		Author:      strings.TrimSpace(input.Author),
		PublishedAt: input.PublishedAt,
		Tags:        strings.TrimSpace(input.Tags),
		DevToID:     devToID,
	}

	if err := s.repo.CreateSavedArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("saving article: %w", err)
	}

	s.logger.Info("article saved",
		slog.String("id", article.ID),
		slog.String("userID", userID),
		slog.String("devToId", devToID),
	)

	return article, nil
}

func (s *SavedArticleService) List(ctx context.Context, userID string) ([]model.SavedArticle, error) {
	articles, err := s.repo.ListSavedArticles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing saved articles: %w", err)
	}
	return articles, nil
}

func (s *SavedArticleService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Article ID is required")
	}

	return s.repo.DeleteSavedArticle(ctx, userID, id)
}
