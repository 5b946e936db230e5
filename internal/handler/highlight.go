package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/service"
)

// HighlightHandler serves the /api/highlights routes.
type HighlightHandler struct {
	svc    *service.HighlightService
	logger *slog.Logger
}

func NewHighlightHandler(svc *service.HighlightService, logger *slog.Logger) *HighlightHandler {
	return &HighlightHandler{svc: svc, logger: logger}
}

type createHighlightRequest struct {
	ArticleID       string          `json:"articleId"`
	ArticleTitle    string          `json:"articleTitle"`
	ArticleURL      string          `json:"articleUrl"`
	HighlightedText string          `json:"highlightedText"`
	Context         string          `json:"context"`
	Position        json.RawMessage `json:"position"`
	Tags            []string        `json:"tags"`
	AutoExplain     bool            `json:"autoExplain"`
}

// updateHighlightRequest uses pointers throughout: a field absent from the
// JSON stays nil and is left untouched, while explicit false/"" values are
// applied. Decoding into values would erase that distinction.
type updateHighlightRequest struct {
	HighlightedText *string   `json:"highlightedText"`
	Explanation     *string   `json:"explanation"`
	Tags            *[]string `json:"tags"`
	IsBookmarked    *bool     `json:"isBookmarked"`
}

type explainRequest struct {
	Regenerate bool `json:"regenerate"`
}

// highlightListResponse is the paginated listing envelope. Filters echoes
// back what the server actually applied, so the client can render active
// filter chips without re-deriving them.
type highlightListResponse struct {
	Highlights  []model.Highlight `json:"highlights"`
	Total       int               `json:"total"`
	CurrentPage int               `json:"currentPage"`
	TotalPages  int               `json:"totalPages"`
	Filters     map[string]any    `json:"filters"`
}

// HandleCreate creates a highlight.
//
// HTTP: POST /api/highlights (auth) → 201 {message, highlight}
func (h *HighlightHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req createHighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	highlight, err := h.svc.Create(r.Context(), user.ID, service.CreateHighlightInput{
		ArticleID:       req.ArticleID,
		ArticleTitle:    req.ArticleTitle,
		ArticleURL:      req.ArticleURL,
		HighlightedText: req.HighlightedText,
		Context:         req.Context,
		Position:        req.Position,
		Tags:            req.Tags,
		AutoExplain:     req.AutoExplain,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Highlight created successfully",
		"highlight": highlight,
	})
}

// HandleList lists highlights with pagination and filters.
//
// HTTP: GET /api/highlights?page=&limit=&articleId=&isBookmarked=&search= (auth)
//
// isBookmarked is a string in the query; only the literal values "true" and
// "false" engage the filter — anything else means "no filter".
func (h *HighlightHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	query := r.URL.Query()
	page := intQueryParam(query.Get("page"), 1)
	limit := intQueryParam(query.Get("limit"), service.DefaultPageSize)

	var isBookmarked *bool
	switch query.Get("isBookmarked") {
	case "true":
		v := true
		isBookmarked = &v
	case "false":
		v := false
		isBookmarked = &v
	}

	highlights, total, err := h.svc.List(r.Context(), user.ID, service.ListHighlightsInput{
		Page:         page,
		Limit:        limit,
		ArticleID:    query.Get("articleId"),
		IsBookmarked: isBookmarked,
		Search:       query.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, highlightListResponse{
		Highlights:  highlights,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
		Filters: map[string]any{
			"articleId":    query.Get("articleId"),
			"isBookmarked": query.Get("isBookmarked"),
			"search":       query.Get("search"),
		},
	})
}

// HandleListByArticle returns all highlights on one article, reading order.
//
// HTTP: GET /api/highlights/article/{articleId} (auth) → 200 {highlights}
func (h *HighlightHandler) HandleListByArticle(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	highlights, err := h.svc.ListByArticle(r.Context(), user.ID, chi.URLParam(r, "articleId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"highlights": highlights})
}

// HandleGet returns one highlight.
//
// HTTP: GET /api/highlights/{id} (auth) → 200 {highlight} | 404
func (h *HighlightHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	highlight, err := h.svc.GetByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"highlight": highlight})
}

// HandleUpdate partially updates a highlight.
//
// HTTP: PUT /api/highlights/{id} (auth) → 200 {message, highlight}
func (h *HighlightHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req updateHighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	highlight, err := h.svc.Update(r.Context(), user.ID, chi.URLParam(r, "id"), service.UpdateHighlightInput{
		HighlightedText: req.HighlightedText,
		Explanation:     req.Explanation,
		Tags:            req.Tags,
		IsBookmarked:    req.IsBookmarked,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Highlight updated successfully",
		"highlight": highlight,
	})
}

// HandleDelete deletes a highlight.
//
// HTTP: DELETE /api/highlights/{id} (auth) → 200 {message} | 404
func (h *HighlightHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Highlight deleted successfully"})
}

// HandleExplain returns the highlight's explanation, generating it on first
// request and reusing the stored text afterwards unless regenerate is set.
//
// HTTP: POST /api/highlights/{id}/explain (auth) → 200 {message, explanation, highlight}
func (h *HighlightHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	// An empty body means {regenerate: false}; decode failures on a present
	// body are still rejected.
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	result, err := h.svc.Explain(r.Context(), user.ID, chi.URLParam(r, "id"), req.Regenerate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     result.Message,
		"explanation": result.Highlight.Explanation,
		"highlight":   result.Highlight,
	})
}

// intQueryParam parses a positive integer query value, falling back to def
// on absence or garbage.
func intQueryParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// totalPages is ceil(total/limit), with 0 pages for an empty result set.
func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
