package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func saveArticleViaAPI(t *testing.T, env *testEnv, token, devToID string) string {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/saved-articles", token,
		`{"title": "Understanding Context", "url": "https://dev.to/understanding-context", "devToId": "`+devToID+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("saving article: status %d, body %s", rr.Code, rr.Body.String())
	}
	return decode(t, rr)["article"].(map[string]any)["id"].(string)
}

func TestSaveArticle_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")

	rr := env.do(t, http.MethodPost, "/api/saved-articles", token,
		`{"title": "  Understanding Context  ", "url": "https://dev.to/understanding-context", "devToId": "12345", "author": "jdoe", "tags": "go,context"}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Article saved successfully", body["message"])

	article := body["article"].(map[string]any)
	assert.Equal(t, "Understanding Context", article["title"])
	assert.Equal(t, "12345", article["devToId"])
	assert.NotEmpty(t, article["id"])
}

func TestSaveArticle_InvalidURL(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")

	rr := env.do(t, http.MethodPost, "/api/saved-articles", token,
		`{"title": "t", "url": "/relative/path", "devToId": "1"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decode(t, rr)["error"])
}

func TestSaveArticle_DuplicateIs400(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	saveArticleViaAPI(t, env, token, "12345")

	rr := env.do(t, http.MethodPost, "/api/saved-articles", token,
		`{"title": "again", "url": "https://dev.to/again", "devToId": "12345"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Article already saved", decode(t, rr)["message"])
}

func TestSaveArticle_SameArticleDifferentUsers(t *testing.T) {
	env := newTestEnv(t)
	_, adaToken := env.newTestUser(t, "ada@example.com")
	_, eveToken := env.newTestUser(t, "eve@example.com")

	saveArticleViaAPI(t, env, adaToken, "12345")
	saveArticleViaAPI(t, env, eveToken, "12345")

	adaList := decode(t, env.do(t, http.MethodGet, "/api/saved-articles", adaToken, ""))
	assert.Len(t, adaList["articles"].([]any), 1)
}

func TestListSavedArticles_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	_, adaToken := env.newTestUser(t, "ada@example.com")
	_, eveToken := env.newTestUser(t, "eve@example.com")
	saveArticleViaAPI(t, env, adaToken, "1")
	saveArticleViaAPI(t, env, adaToken, "2")

	eveList := decode(t, env.do(t, http.MethodGet, "/api/saved-articles", eveToken, ""))
	assert.Len(t, eveList["articles"].([]any), 0)

	adaList := decode(t, env.do(t, http.MethodGet, "/api/saved-articles", adaToken, ""))
	assert.Len(t, adaList["articles"].([]any), 2)
}

func TestDeleteSavedArticle_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.newTestUser(t, "ada@example.com")
	id := saveArticleViaAPI(t, env, token, "12345")

	rr := env.do(t, http.MethodDelete, "/api/saved-articles/"+id, token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Article removed successfully", decode(t, rr)["message"])

	list := decode(t, env.do(t, http.MethodGet, "/api/saved-articles", token, ""))
	assert.Len(t, list["articles"].([]any), 0)
}

func TestDeleteSavedArticle_CrossUserIs404(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.newTestUser(t, "owner@example.com")
	_, otherToken := env.newTestUser(t, "other@example.com")
	id := saveArticleViaAPI(t, env, ownerToken, "12345")

	rr := env.do(t, http.MethodDelete, "/api/saved-articles/"+id, otherToken, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSavedArticles_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/saved-articles", "", "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
