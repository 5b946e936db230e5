package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/devto"
	"github.com/chiral-app/chiral-server/internal/service"
)

// ArticleHandler serves the article proxy routes (pass-through to dev.to,
// nothing persisted) and the saved-articles reading list (persisted).
type ArticleHandler struct {
	devto  *devto.Client
	saved  *service.SavedArticleService
	logger *slog.Logger
}

func NewArticleHandler(devtoClient *devto.Client, saved *service.SavedArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{devto: devtoClient, saved: saved, logger: logger}
}

type saveArticleRequest struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"publishedAt"`
	Tags        string     `json:"tags"`
	DevToID     string     `json:"devToId"`
}

// HandleList proxies a dev.to article listing.
//
// HTTP: GET /api/articles?tag=&per_page= (public) → 200 {articles, total}
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	articles, err := h.devto.List(r.Context(), query.Get("tag"), intQueryParam(query.Get("per_page"), 0))
	if err != nil {
		h.logger.Error("article proxy: list failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"total":    len(articles),
	})
}

// HandleGet proxies a single article fetch; an upstream 404 stays a 404.
//
// HTTP: GET /api/articles/{id} (public) → 200 {article} | 404
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	article, err := h.devto.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"article": article})
}

// HandleByInterests builds a merged feed from the user's learning interests.
// One upstream request per interest tag, best-effort; see devto.ListByInterests.
//
// HTTP: GET /api/articles/by-interests?per_page= (auth) → 200 {articles, total}
func (h *ArticleHandler) HandleByInterests(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	articles, err := h.devto.ListByInterests(r.Context(), user.LearningInterests,
		intQueryParam(r.URL.Query().Get("per_page"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"total":    len(articles),
	})
}

// HandleSave adds an article to the user's reading list.
//
// HTTP: POST /api/saved-articles (auth) → 201 {message, article}
// Saving the same dev.to article twice → 400 "Article already saved".
func (h *ArticleHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req saveArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	article, err := h.saved.Save(r.Context(), user.ID, service.SaveArticleInput{
		Title:       req.Title,
		URL:         req.URL,
		Content:     req.Content,
		Author:      req.Author,
		PublishedAt: req.PublishedAt,
		Tags:        req.Tags,
		DevToID:     req.DevToID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Article saved successfully",
		"article": article,
	})
}

// HandleSavedList returns the user's reading list, newest first.
//
// HTTP: GET /api/saved-articles (auth) → 200 {articles}
func (h *ArticleHandler) HandleSavedList(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	articles, err := h.saved.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

// HandleSavedDelete removes an article from the reading list.
//
// HTTP: DELETE /api/saved-articles/{id} (auth) → 200 {message} | 404
func (h *ArticleHandler) HandleSavedDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	if err := h.saved.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Article removed successfully"})
}
