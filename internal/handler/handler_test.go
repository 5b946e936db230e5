package handler_test

// Shared fixtures for the handler tests. These run the real router stack —
// chi routes, auth middleware, services, and an in-memory sqlite database —
// with only the outbound AI and Google calls faked. That catches wiring
// mistakes (route params, middleware order, status mapping) that pure
// unit tests with mocks would miss.

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/devto"
	"github.com/chiral-app/chiral-server/internal/handler"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository/sqlite"
	"github.com/chiral-app/chiral-server/internal/service"
)

// fakeExplainer implements service.Explainer without network calls.
type fakeExplainer struct {
	calls  int
	result string
	err    error
}

func (f *fakeExplainer) Explain(_ context.Context, text, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.result != "" {
		return f.result, nil
	}
	return "explained: " + text, nil
}

// fakeVerifier implements service.GoogleVerifier.
type fakeVerifier struct {
	user *auth.GoogleUser
	err  error
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.GoogleUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type testEnv struct {
	db        *sqlite.DB
	tokens    *auth.TokenService
	router    chi.Router
	explainer *fakeExplainer
	verifier  *fakeVerifier
}

// newTestEnv wires the handler stack against an in-memory database,
// registering the same routes the server does.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("creating token service: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	passwords := auth.NewPasswordServiceForTest(4)
	explainer := &fakeExplainer{}
	verifier := &fakeVerifier{}

	authService := service.NewAuthService(db, tokens, passwords, verifier, logger)
	highlightService := service.NewHighlightService(db, explainer, logger)
	noteService := service.NewNoteService(db, logger)
	savedService := service.NewSavedArticleService(db, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	highlightHandler := handler.NewHighlightHandler(highlightService, logger)
	noteHandler := handler.NewNoteHandler(noteService, logger)
	geminiHandler := handler.NewGeminiHandler(explainer, logger)
	// The dev.to client is never called here: only the persisted
	// saved-articles routes are registered, the proxy routes are not.
	articleHandler := handler.NewArticleHandler(devto.New("", logger), savedService, logger)

	requireAuth := auth.RequireAuth(tokens, db)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/google-login", authHandler.HandleGoogleLogin)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/profile", authHandler.HandleProfile)
			r.Put("/auth/interests", authHandler.HandleUpdateInterests)

			r.Post("/highlights", highlightHandler.HandleCreate)
			r.Get("/highlights", highlightHandler.HandleList)
			r.Get("/highlights/article/{articleId}", highlightHandler.HandleListByArticle)
			r.Get("/highlights/{id}", highlightHandler.HandleGet)
			r.Put("/highlights/{id}", highlightHandler.HandleUpdate)
			r.Delete("/highlights/{id}", highlightHandler.HandleDelete)
			r.Post("/highlights/{id}/explain", highlightHandler.HandleExplain)

			r.Post("/notes", noteHandler.HandleCreate)
			r.Get("/notes", noteHandler.HandleList)
			r.Get("/notes/{id}", noteHandler.HandleGet)
			r.Put("/notes/{id}", noteHandler.HandleUpdate)
			r.Delete("/notes/{id}", noteHandler.HandleDelete)
			r.Get("/notes/{id}/markdown", noteHandler.HandleMarkdown)

			r.Post("/saved-articles", articleHandler.HandleSave)
			r.Get("/saved-articles", articleHandler.HandleSavedList)
			r.Delete("/saved-articles/{id}", articleHandler.HandleSavedDelete)

			r.Post("/gemini/explain", geminiHandler.HandleExplain)
		})
	})

	return &testEnv{
		db:        db,
		tokens:    tokens,
		router:    router,
		explainer: explainer,
		verifier:  verifier,
	}
}

// newTestUser inserts a user directly and mints a valid token for them.
func (e *testEnv) newTestUser(t *testing.T, email string) (*model.User, string) {
	t.Helper()
	user := &model.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$04$fakehashfortests",
	}
	if err := e.db.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	token, err := e.tokens.Generate(user.ID)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return user, token
}

// do runs one request through the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a JSON response body into a generic map.
func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v\nbody: %s", err, rr.Body.String())
	}
	return out
}
