package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func createNoteViaAPI(t *testing.T, env *testEnv, token, body string) string {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/notes", token, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("creating note: status %d, body %s", rr.Code, rr.Body.String())
	}
	return decode(t, rr)["note"].(map[string]any)["id"].(string)
}

func TestCreateNote_TraditionalEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")

	rr := env.do(t, http.MethodPost, "/api/notes", token,
		`{"noteType": "traditional", "title": "Study plan", "content": "Read daily."}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Note created successfully", body["message"])

	note := body["note"].(map[string]any)
	assert.Equal(t, "traditional", note["noteType"])
	assert.Equal(t, "Study plan", note["title"])
	// Highlight-variant fields carry omitempty and must not appear.
	assert.NotContains(t, note, "highlightedText")
}

func TestCreateNote_HighlightEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")

	rr := env.do(t, http.MethodPost, "/api/notes", token,
		`{"noteType": "highlight", "highlightedText": "defer runs last", "explanation": "Deferred calls run at return.", "originalContext": "an article"}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	note := decode(t, rr)["note"].(map[string]any)
	assert.Equal(t, "highlight", note["noteType"])
	assert.Equal(t, "defer runs last", note["highlightedText"])
}

func TestCreateNote_VariantValidationMessages(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")

	cases := []struct {
		name string
		body string
	}{
		{"traditional missing title", `{"noteType": "traditional", "content": "c"}`},
		{"highlight missing explanation", `{"noteType": "highlight", "highlightedText": "t"}`},
		{"unknown variant", `{"noteType": "sketch", "title": "t", "content": "c"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/notes", token, tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decode(t, rr)["error"])
		})
	}
}

func TestListNotes_FavoriteFilterIsLiteral(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	favID := createNoteViaAPI(t, env, token,
		`{"noteType": "traditional", "title": "fav", "content": "c", "isFavorite": true}`)
	createNoteViaAPI(t, env, token,
		`{"noteType": "traditional", "title": "plain", "content": "c"}`)

	filtered := decode(t, env.do(t, http.MethodGet, "/api/notes?isFavorite=true", token, ""))
	assert.Equal(t, float64(1), filtered["total"])
	notes := filtered["notes"].([]any)
	assert.Equal(t, favID, notes[0].(map[string]any)["id"])

	// "false" and anything non-literal return everything.
	all := decode(t, env.do(t, http.MethodGet, "/api/notes?isFavorite=false", token, ""))
	assert.Equal(t, float64(2), all["total"])
}

func TestListNotes_Pagination(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	for i := 0; i < 3; i++ {
		createNoteViaAPI(t, env, token,
			fmt.Sprintf(`{"noteType": "traditional", "title": "note %d", "content": "c"}`, i))
	}

	body := decode(t, env.do(t, http.MethodGet, "/api/notes?page=2&limit=2", token, ""))

	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["currentPage"])
	assert.Equal(t, float64(2), body["totalPages"])
	assert.Len(t, body["notes"].([]any), 1)
}

func TestUpdateNote_CrossVariantFieldIs400(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	id := createNoteViaAPI(t, env, token,
		`{"noteType": "traditional", "title": "t", "content": "c"}`)

	rr := env.do(t, http.MethodPut, "/api/notes/"+id, token,
		`{"highlightedText": "sneaky"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decode(t, rr)["error"])
}

func TestUpdateNote_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	id := createNoteViaAPI(t, env, token,
		`{"noteType": "traditional", "title": "Old", "content": "Body"}`)

	rr := env.do(t, http.MethodPut, "/api/notes/"+id, token, `{"title": "New"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Note updated successfully", body["message"])
	note := body["note"].(map[string]any)
	assert.Equal(t, "New", note["title"])
	assert.Equal(t, "Body", note["content"], "absent fields stay untouched")
}

func TestGetNote_CrossUserIs404(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.newTestUser(t, "owner@example.com")
	_, otherToken := env.newTestUser(t, "other@example.com")
	id := createNoteViaAPI(t, env, ownerToken,
		`{"noteType": "traditional", "title": "t", "content": "c"}`)

	rr := env.do(t, http.MethodGet, "/api/notes/"+id, otherToken, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteNote_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	id := createNoteViaAPI(t, env, token,
		`{"noteType": "traditional", "title": "t", "content": "c"}`)

	rr := env.do(t, http.MethodDelete, "/api/notes/"+id, token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Note deleted successfully", decode(t, rr)["message"])

	gone := env.do(t, http.MethodGet, "/api/notes/"+id, token, "")
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestNoteMarkdownExport_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	id := createNoteViaAPI(t, env, token,
		`{"noteType": "traditional", "title": "Study plan", "content": "Read daily."}`)

	rr := env.do(t, http.MethodGet, "/api/notes/"+id+"/markdown", token, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf(`attachment; filename="note-%s.md"`, id), rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "# Study plan")
	assert.Contains(t, rr.Body.String(), "Read daily.")
}

func TestNoteMarkdownExport_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")

	rr := env.do(t, http.MethodGet, "/api/notes/missing/markdown", token, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
