package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/gemini"
	"github.com/chiral-app/chiral-server/internal/service"
)

// GeminiHandler serves the direct explanation endpoint: explain arbitrary
// text without persisting a highlight. The highlight-bound flow lives in
// HighlightHandler.HandleExplain.
type GeminiHandler struct {
	explainer service.Explainer
	logger    *slog.Logger
}

func NewGeminiHandler(explainer service.Explainer, logger *slog.Logger) *GeminiHandler {
	return &GeminiHandler{explainer: explainer, logger: logger}
}

type explainTextRequest struct {
	HighlightedText string `json:"highlightedText"`
	Context         string `json:"context"`
}

// HandleExplain explains a text fragment on demand.
//
// HTTP: POST /api/gemini/explain (auth)
// 200 {highlightedText, explanation, context}
// 400 on empty text, text > 5000 chars, or context > 10000 chars
// 429/503/500 per the explanation requester's failure classification
func (h *GeminiHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req explainTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	text := strings.TrimSpace(req.HighlightedText)
	contextText := strings.TrimSpace(req.Context)

	if text == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "validation_error", Message: "Highlighted text is required",
		})
		return
	}
	if len(text) > gemini.MaxTextLength {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: fmt.Sprintf("Highlighted text must be %d characters or less", gemini.MaxTextLength),
		})
		return
	}
	if len(contextText) > gemini.MaxContextLength {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: fmt.Sprintf("Context must be %d characters or less", gemini.MaxContextLength),
		})
		return
	}

	explanation, err := h.explainer.Explain(r.Context(), text, contextText)
	if err != nil {
		h.logger.Error("explanation request failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"highlightedText": text,
		"explanation":     explanation,
		"context":         contextText,
	})
}
