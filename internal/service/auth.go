// Package service contains the business logic layer.
//
// The layering follows the usual three-tier shape:
//
//	Handler (HTTP)     → parses requests, shapes responses
//	Service (business) → validates, enforces rules, orchestrates
//	Repository (data)  → reads/writes the database
//
// Services accept primitives and small input structs, never *http.Request,
// and return domain errors from the apperror package, never status codes.
// Each service takes its repository as an interface so tests can substitute
// in-memory mocks.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chiral-app/chiral-server/internal/apperror"
	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/model"
	"github.com/chiral-app/chiral-server/internal/repository"
)

const (
	MinPasswordLength = 6
	MaxNameLength     = 100
	MaxInterests      = 20
)

// GoogleVerifier is the slice of auth.GoogleProvider the service needs.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.GoogleUser, error)
}

// AuthService handles registration, login, Google sign-in, and profile
// maintenance.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	google    GoogleVerifier
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	google GoogleVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued access token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an email/password account.
//
// The handler's DTO validation has already checked shape (email format,
// password length); this method enforces the domain rules that must hold no
// matter who calls it, including the duplicate-email check. The duplicate
// check is a pre-check for a friendly message — the UNIQUE constraint in the
// database remains the actual guarantee.
func (s *AuthService) Register(ctx context.Context, name, email, password string, interests []string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, apperror.ValidationFailed("name", "Name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("Name must be %d characters or less", MaxNameLength))
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.ValidationFailed("email", "Email already registered")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Name:              name,
		Email:             email,
		PasswordHash:      hash,
		LearningInterests: normalizeInterests(interests),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login verifies email/password credentials and issues an access token.
//
// The same "Invalid email or password" message covers both an unknown email
// and a wrong password — distinguishing them would let an attacker enumerate
// registered addresses.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "Password is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// GoogleLogin verifies a Google ID token and logs the user in, creating or
// linking an account as needed.
//
// Matching order:
//  1. google_id match → existing Google account, straight login
//  2. email match     → existing password account, link the Google ID to it
//  3. neither         → new account with a placeholder password hash
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperror.ValidationFailed("googleToken", "Google token is required")
	}

	gUser, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("google login: token verification failed", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("googleToken", "Invalid Google token")
	}

	user, err := s.users.GetUserByGoogleID(ctx, gUser.Sub)
	if err != nil {
		user, err = s.users.GetUserByEmail(ctx, strings.ToLower(gUser.Email))
		if err == nil {
			// Existing password account — link Google to it.
			user.GoogleID = gUser.Sub
			if user.ProfilePicture == "" {
				user.ProfilePicture = gUser.Picture
			}
			if err := s.users.UpdateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("linking google account: %w", err)
			}
		} else {
			// First sign-in: create the account. The placeholder hash keeps
			// the password column non-empty while guaranteeing password login
			// can never succeed.
			placeholder, err := s.passwords.PlaceholderHash()
			if err != nil {
				return nil, fmt.Errorf("generating placeholder hash: %w", err)
			}

			user = &model.User{
				Name:              gUser.Name,
				Email:             strings.ToLower(gUser.Email),
				PasswordHash:      placeholder,
				GoogleID:          gUser.Sub,
				ProfilePicture:    gUser.Picture,
				LearningInterests: []string{},
			}
			if err := s.users.Create(ctx, user); err != nil {
				return nil, fmt.Errorf("creating google user: %w", err)
			}

			s.logger.Info("user registered via google", slog.String("userID", user.ID))
		}
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.logger.Info("user logged in via google", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// UpdateInterests replaces the user's learning interests and returns the
// normalized list.
func (s *AuthService) UpdateInterests(ctx context.Context, user *model.User, interests []string) ([]string, error) {
	normalized := normalizeInterests(interests)
	if len(normalized) > MaxInterests {
		return nil, apperror.ValidationFailed("learningInterests",
			fmt.Sprintf("At most %d interests are allowed", MaxInterests))
	}

	user.LearningInterests = normalized
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating interests: %w", err)
	}

	return normalized, nil
}

// normalizeInterests trims, lowercases, drops empties, and deduplicates while
// preserving order. Interests double as dev.to tags, which are lowercase.
func normalizeInterests(interests []string) []string {
	seen := make(map[string]bool, len(interests))
	out := make([]string, 0, len(interests))
	for _, interest := range interests {
		interest = strings.ToLower(strings.TrimSpace(interest))
		if interest == "" || seen[interest] {
			continue
		}
		seen[interest] = true
		out = append(out, interest)
	}
	return out
}
