package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chiral-app/chiral-server/internal/model"
)

// UserLoader is the slice of the user repository the middleware needs.
// Declaring the interface here (at the consumer) keeps auth decoupled from
// the repository package.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// contextKey is an unexported type for context keys — only this package can
// create a key of this type, so no other package can shadow the user value.
type contextKey string

const userKey contextKey = "user"

// RequireAuth enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <token>", validates the JWT, loads the user
// row for the token's subject, and stores the *model.User in the request
// context. The DB lookup matters: a token for a deleted account must not
// grant access just because the signature still checks out.
//
// Failure messages are part of the API contract:
//   - no header            → 401 "Access token required"
//   - expired token        → 401 "Token expired"
//   - anything else wrong  → 401 "Invalid token" (including unknown subject)
func RequireAuth(tokens *TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "Access token required")
				return
			}

			user, err := resolveUser(r.Context(), tokens, users, tokenStr)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					writeUnauthorized(w, "Token expired")
					return
				}
				writeUnauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user if a valid token is present and silently
// continues otherwise. It never fails the request.
func OptionalAuth(tokens *TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr, ok := bearerToken(r); ok {
				if user, err := resolveUser(r.Context(), tokens, users, tokenStr); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), userKey, user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext retrieves the authenticated user set by the middleware.
// Returns (nil, false) on anonymous requests.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

func resolveUser(ctx context.Context, tokens *TokenService, users UserLoader, tokenStr string) (*model.User, error) {
	userID, err := tokens.Validate(tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
