package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

// =========================================================================
// MOCKS
// =========================================================================

type mockHighlightRepo struct {
	highlights map[string]model.Highlight
	nextID     int
}

func newMockHighlightRepo() *mockHighlightRepo {
	return &mockHighlightRepo{highlights: make(map[string]model.Highlight)}
}

func (m *mockHighlightRepo) CreateHighlight(_ context.Context, h *model.Highlight) error {
	m.nextID++
	h.ID = fmt.Sprintf("mock-hl-%d", m.nextID)
	m.highlights[h.ID] = *h
	return nil
}

func (m *mockHighlightRepo) GetHighlight(_ context.Context, userID, id string) (*model.Highlight, error) {
	h, ok := m.highlights[id]
	if !ok || h.UserID != userID {
		return nil, apperror.NotFound("highlight", id)
	}
	result := h
	return &result, nil
}

func (m *mockHighlightRepo) ListHighlights(_ context.Context, userID string, f repository.HighlightFilter) ([]model.Highlight, int, error) {
	matched := make([]model.Highlight, 0)
	for _, h := range m.highlights {
		if h.UserID != userID {
			continue
		}
		if f.ArticleID != "" && h.ArticleID != f.ArticleID {
			continue
		}
		if f.IsBookmarked != nil && h.IsBookmarked != *f.IsBookmarked {
			continue
		}
		matched = append(matched, h)
	}
	total := len(matched)
	if f.Offset >= len(matched) {
		return []model.Highlight{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *mockHighlightRepo) ListHighlightsByArticle(_ context.Context, userID, articleID string) ([]model.Highlight, error) {
	result := make([]model.Highlight, 0)
	for _, h := range m.highlights {
		if h.UserID == userID && h.ArticleID == articleID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *mockHighlightRepo) UpdateHighlight(_ context.Context, h *model.Highlight) error {
	stored, ok := m.highlights[h.ID]
	if !ok || stored.UserID != h.UserID {
		return apperror.NotFound("highlight", h.ID)
	}
	m.highlights[h.ID] = *h
	return nil
}

func (m *mockHighlightRepo) DeleteHighlight(_ context.Context, userID, id string) error {
	h, ok := m.highlights[id]
	if !ok || h.UserID != userID {
		return apperror.NotFound("highlight", id)
	}
	delete(m.highlights, id)
	return nil
}

// mockExplainer records how often it was called and can be set to fail.
type mockExplainer struct {
	calls  int
	result string
	err    error
}

func (m *mockExplainer) Explain(_ context.Context, text, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.result != "" {
		return m.result, nil
	}
	return "explanation of: " + text, nil
}

func newTestHighlightService(t *testing.T) (*HighlightService, *mockHighlightRepo, *mockExplainer) {
	t.Helper()
	repo := newMockHighlightRepo()
	explainer := &mockExplainer{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHighlightService(repo, explainer, logger), repo, explainer
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateHighlight_Success(t *testing.T) {
	svc, _, explainer := newTestHighlightService(t)

	h, err := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID:       "article-1",
		HighlightedText: "  deferred calls run LIFO  ",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if h.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if h.HighlightedText != "deferred calls run LIFO" {
		t.Errorf("HighlightedText = %q, want trimmed", h.HighlightedText)
	}
	if h.Explanation != nil {
		t.Error("Explanation should be nil without autoExplain")
	}
	if h.Tags == nil {
		t.Error("Tags should be an empty slice, not nil")
	}
	if explainer.calls != 0 {
		t.Errorf("explainer called %d times, want 0", explainer.calls)
	}
}

func TestCreateHighlight_AutoExplain(t *testing.T) {
	svc, _, explainer := newTestHighlightService(t)
	explainer.result = "LIFO means last in, first out."

	h, err := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID:       "article-1",
		HighlightedText: "deferred calls run LIFO",
		AutoExplain:     true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if explainer.calls != 1 {
		t.Errorf("explainer called %d times, want 1", explainer.calls)
	}
	if h.Explanation == nil || *h.Explanation != "LIFO means last in, first out." {
		t.Errorf("Explanation = %v", h.Explanation)
	}
}

func TestCreateHighlight_AutoExplainFailureIsSwallowed(t *testing.T) {
	// The user's selection must never be lost because the AI was down.
	svc, repo, explainer := newTestHighlightService(t)
	explainer.err = apperror.Unavailable("AI service temporarily unavailable. Please try again later.")

	h, err := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID:       "article-1",
		HighlightedText: "some text",
		AutoExplain:     true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v — an auto-explain failure must not fail the create", err)
	}

	if h.Explanation != nil {
		t.Errorf("Explanation = %v, want nil after a failed auto-explain", h.Explanation)
	}
	if _, ok := repo.highlights[h.ID]; !ok {
		t.Error("highlight was not persisted")
	}
}

func TestCreateHighlight_Validation(t *testing.T) {
	svc, _, _ := newTestHighlightService(t)

	cases := []struct {
		name  string
		input CreateHighlightInput
	}{
		{"missing article id", CreateHighlightInput{HighlightedText: "text"}},
		{"missing text", CreateHighlightInput{ArticleID: "a1"}},
		{"whitespace text", CreateHighlightInput{ArticleID: "a1", HighlightedText: "   "}},
		{"text too long", CreateHighlightInput{ArticleID: "a1", HighlightedText: strings.Repeat("x", MaxHighlightTextLength+1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", tc.input)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// EXPLAIN TESTS
// =========================================================================

func TestExplain_GeneratesOnFirstCall(t *testing.T) {
	svc, repo, explainer := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "channels block",
	})

	result, err := svc.Explain(context.Background(), "user-1", h.ID, false)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if result.Message != "Explanation generated" {
		t.Errorf("Message = %q, want %q", result.Message, "Explanation generated")
	}
	if result.Highlight.Explanation == nil {
		t.Fatal("explanation not set on the returned highlight")
	}
	// And persisted, not just returned.
	stored := repo.highlights[h.ID]
	if stored.Explanation == nil {
		t.Error("explanation was not persisted")
	}
	if explainer.calls != 1 {
		t.Errorf("explainer called %d times, want 1", explainer.calls)
	}
}

func TestExplain_SecondCallUsesCache(t *testing.T) {
	svc, _, explainer := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "channels block",
	})

	first, err := svc.Explain(context.Background(), "user-1", h.ID, false)
	if err != nil {
		t.Fatalf("first Explain() error = %v", err)
	}
	second, err := svc.Explain(context.Background(), "user-1", h.ID, false)
	if err != nil {
		t.Fatalf("second Explain() error = %v", err)
	}

	// N calls cost exactly one upstream request.
	if explainer.calls != 1 {
		t.Errorf("explainer called %d times, want 1", explainer.calls)
	}
	if second.Message != "Explanation retrieved from cache" {
		t.Errorf("Message = %q, want cache message", second.Message)
	}
	if *first.Highlight.Explanation != *second.Highlight.Explanation {
		t.Error("cached explanation differs from the generated one")
	}
}

func TestExplain_RegenerateForcesNewCall(t *testing.T) {
	svc, _, explainer := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "channels block",
	})

	svc.Explain(context.Background(), "user-1", h.ID, false)
	explainer.result = "a better explanation"

	result, err := svc.Explain(context.Background(), "user-1", h.ID, true)
	if err != nil {
		t.Fatalf("Explain(regenerate) error = %v", err)
	}

	if explainer.calls != 2 {
		t.Errorf("explainer called %d times, want 2", explainer.calls)
	}
	if result.Message != "Explanation regenerated" {
		t.Errorf("Message = %q, want %q", result.Message, "Explanation regenerated")
	}
	if *result.Highlight.Explanation != "a better explanation" {
		t.Errorf("Explanation = %q, want the regenerated text", *result.Highlight.Explanation)
	}
}

func TestExplain_FailurePropagates(t *testing.T) {
	// Unlike auto-explain on create, an explicit request must report failure.
	svc, _, explainer := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "text",
	})
	explainer.err = apperror.RateLimited("AI service rate limit exceeded. Please try again later.")

	_, err := svc.Explain(context.Background(), "user-1", h.ID, false)
	if !errors.Is(err, apperror.ErrRateLimited) {
		t.Errorf("Explain() error = %v, want ErrRateLimited", err)
	}
}

func TestExplain_CrossUserIsNotFound(t *testing.T) {
	svc, _, explainer := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-a", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "text",
	})

	_, err := svc.Explain(context.Background(), "user-b", h.ID, false)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Explain() error = %v, want ErrNotFound", err)
	}
	if explainer.calls != 0 {
		t.Error("explainer must not run for a foreign highlight")
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateHighlight_PartialFields(t *testing.T) {
	svc, _, _ := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID:       "a1",
		HighlightedText: "original text",
		Tags:            []string{"go"},
	})

	bookmarked := true
	updated, err := svc.Update(context.Background(), "user-1", h.ID, UpdateHighlightInput{
		IsBookmarked: &bookmarked,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !updated.IsBookmarked {
		t.Error("IsBookmarked was not applied")
	}
	// Absent fields stay untouched.
	if updated.HighlightedText != "original text" {
		t.Errorf("HighlightedText = %q, want unchanged", updated.HighlightedText)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "go" {
		t.Errorf("Tags = %v, want unchanged", updated.Tags)
	}
}

func TestUpdateHighlight_ExplicitFalseIsApplied(t *testing.T) {
	svc, _, _ := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "text",
	})

	on := true
	svc.Update(context.Background(), "user-1", h.ID, UpdateHighlightInput{IsBookmarked: &on})

	off := false
	updated, err := svc.Update(context.Background(), "user-1", h.ID, UpdateHighlightInput{IsBookmarked: &off})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.IsBookmarked {
		t.Error("explicit false must clear the bookmark — it is not \"field absent\"")
	}
}

func TestUpdateHighlight_EmptyTextRejected(t *testing.T) {
	svc, _, _ := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "text",
	})

	empty := "   "
	_, err := svc.Update(context.Background(), "user-1", h.ID, UpdateHighlightInput{HighlightedText: &empty})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want ErrValidation", err)
	}
}

func TestUpdateHighlight_NotFound(t *testing.T) {
	svc, _, _ := newTestHighlightService(t)

	on := true
	_, err := svc.Update(context.Background(), "user-1", "nonexistent", UpdateHighlightInput{IsBookmarked: &on})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListHighlights_ClampsPage(t *testing.T) {
	svc, _, _ := newTestHighlightService(t)

	// Negative page and limit must not error; they fall back to defaults.
	_, _, err := svc.List(context.Background(), "user-1", ListHighlightsInput{Page: -3, Limit: -10})
	if err != nil {
		t.Fatalf("List() should clamp bad paging values, got error = %v", err)
	}
}

func TestDeleteHighlight_Service(t *testing.T) {
	svc, repo, _ := newTestHighlightService(t)
	h, _ := svc.Create(context.Background(), "user-1", CreateHighlightInput{
		ArticleID: "a1", HighlightedText: "text",
	})

	if err := svc.Delete(context.Background(), "user-1", h.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := repo.highlights[h.ID]; ok {
		t.Error("highlight still present after delete")
	}
}
