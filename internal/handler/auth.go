// Package handler is the HTTP layer: request parsing, DTO validation, and
// response shaping. Handlers never touch the database and never decide
// status codes for domain failures — that mapping lives in writeError.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/service"
)

// validate checks DTO shape (formats, lengths) before requests reach the
// service layer; domain rules still live in the services.
var validate = validator.New()

// AuthHandler serves registration, login, Google sign-in, and profile routes.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type registerRequest struct {
	Name              string   `json:"name" validate:"required,max=100"`
	Email             string   `json:"email" validate:"required,email"`
	Password          string   `json:"password" validate:"required,min=6,max=72"`
	LearningInterests []string `json:"learningInterests"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	GoogleToken string `json:"googleToken"`
}

type interestsRequest struct {
	LearningInterests []string `json:"learningInterests"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// 201 {message, user} — the user JSON never includes the password hash
// (model.User excludes it at the type level).
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	if msg, ok := validateRegister(req); !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: msg})
		return
	}

	user, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password, req.LearningInterests)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

// validateRegister turns the first validator failure into the message the
// API contract promises for that field.
func validateRegister(req registerRequest) (string, bool) {
	err := validate.Struct(req)
	if err == nil {
		return "", true
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "Name":
			return "Name is required", false
		case "Email":
			return "A valid email is required", false
		case "Password":
			return "Password must be at least 6 characters", false
		}
	}
	return "Invalid request", false
}

// HandleLogin authenticates email/password credentials.
//
// HTTP: POST /api/auth/login → 200 {message, access_token, user}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": result.Token,
		"user":         result.User,
	})
}

// HandleGoogleLogin verifies a Google ID token and logs the user in,
// creating the account on first sign-in.
//
// HTTP: POST /api/google-login → 200 {message, access_token, user}
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	result, err := h.svc.GoogleLogin(r.Context(), req.GoogleToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": result.Token,
		"user":         result.User,
	})
}

// HandleProfile returns the authenticated user.
//
// HTTP: GET /api/auth/profile (auth) → 200 {user}
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't panic if miswired.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleUpdateInterests replaces the user's learning interests.
//
// HTTP: PUT /api/auth/interests (auth) → 200 {message, learningInterests}
func (h *AuthHandler) HandleUpdateInterests(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Access token required"})
		return
	}

	var req interestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid JSON body"})
		return
	}

	interests, err := h.svc.UpdateInterests(r.Context(), user, req.LearningInterests)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "Interests updated successfully",
		"learningInterests": interests,
	})
}
