package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/service"
)

// NoteHandler serves the /api/notes routes.
type NoteHandler struct {
	svc    *service.NoteService
	logger *slog.Logger
}

func NewNoteHandler(svc *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{svc: svc, logger: logger}
}

type createNoteRequest struct {
	NoteType        string `json:"noteType"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	HighlightedText string `json:"highlightedText"`
	Explanation     string `json:"explanation"`
	OriginalContext string `json:"originalContext"`
	IsFavorite      bool   `json:"isFavorite"`
}

type updateNoteRequest struct {
	Title           *string `json:"title"`
	Content         *string `json:"content"`
	HighlightedText *string `json:"highlightedText"`
	Explanation     *string `json:"explanation"`
	OriginalContext *string `json:"originalContext"`
	IsFavorite      *bool   `json:"isFavorite"`
}

type noteListResponse struct {
	Notes       []model.Note `json:"notes"`
	Total       int          `json:"total"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
}

// HandleCreate creates a note of either variant.
//
// HTTP: POST /api/notes (auth) → 201 {message, note}
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	note, err := h.svc.Create(r.Context(), user.ID, service.CreateNoteInput{
		NoteType:        req.NoteType,
		Title:           req.Title,
		Content:         req.Content,
		HighlightedText: req.HighlightedText,
		Explanation:     req.Explanation,
		OriginalContext: req.OriginalContext,
		IsFavorite:      req.IsFavorite,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Note created successfully",
		"note":    note,
	})
}

// HandleList lists notes with pagination, search, and the favorite filter.
//
// HTTP: GET /api/notes?page=&limit=&search=&isFavorite= (auth)
//
// The favorite filter engages only on the literal query value "true".
// "false", "1", "TRUE" and everything else all mean "all notes".
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	query := r.URL.Query()
	page := intQueryParam(query.Get("page"), 1)
	limit := intQueryParam(query.Get("limit"), service.DefaultPageSize)

	notes, total, err := h.svc.List(r.Context(), user.ID, service.ListNotesInput{
		Page:         page,
		Limit:        limit,
		Search:       query.Get("search"),
		FavoriteOnly: query.Get("isFavorite") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, noteListResponse{
		Notes:       notes,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
	})
}

// HandleGet returns one note.
//
// HTTP: GET /api/notes/{id} (auth) → 200 {note} | 404
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	note, err := h.svc.GetByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"note": note})
}

// HandleUpdate partially updates a note. Fields belonging to the other
// variant are rejected (see service.NoteService.Update).
//
// HTTP: PUT /api/notes/{id} (auth) → 200 {message, note}
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	note, err := h.svc.Update(r.Context(), user.ID, chi.URLParam(r, "id"), service.UpdateNoteInput{
		Title:           req.Title,
		Content:         req.Content,
		HighlightedText: req.HighlightedText,
		Explanation:     req.Explanation,
		OriginalContext: req.OriginalContext,
		IsFavorite:      req.IsFavorite,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Note updated successfully",
		"note":    note,
	})
}

// HandleDelete deletes a note.
//
// HTTP: DELETE /api/notes/{id} (auth) → 200 {message} | 404
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Note deleted successfully"})
}

// HandleMarkdown exports one note as a downloadable markdown file.
//
// HTTP: GET /api/notes/{id}/markdown (auth) → 200 text/markdown | 404
func (h *NoteHandler) HandleMarkdown(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	note, err := h.svc.GetByID(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	markdown := h.svc.RenderMarkdown(note)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="note-%s.md"`, note.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(markdown)); err != nil {
		h.logger.Error("failed to write markdown export", slog.String("error", err.Error()))
	}
}
