// Package auth provides JWT issuing/verification, bcrypt password hashing,
// Google sign-in, and the authentication middleware.
//
// AUTHENTICATION FLOW:
//  1. POST /api/auth/register or /api/auth/login (email/password), or
//     POST /api/google-login (Google ID token from the browser SDK)
//  2. Server issues a JWT access token; the client keeps it and sends it
//     back as "Authorization: Bearer <token>" on every protected request
//  3. RequireAuth validates the token, loads the user row, and puts the
//     *model.User in the request context for handlers to read
//
// The token is stateless: the server stores no session. There is no refresh
// flow — when the token expires the client logs in again.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired distinguishes "come back with a fresh login" from a token
// that was never valid. The middleware turns it into the "Token expired"
// message; everything else becomes "Invalid token".
var ErrTokenExpired = errors.New("auth: token expired")

const tokenIssuer = "chiral"

// accessTokenTTL is deliberately long: there is no refresh-token flow, so a
// short-lived token would log users out mid-session.
const accessTokenTTL = 24 * time.Hour

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given HMAC secret.
// The secret should be at least 32 bytes of random data in production
// (JWT_SECRET=$(openssl rand -hex 32)).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs an access token for userID (stored in "sub").
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, accessTokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests to
// mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string and returns the user ID.
//
// WithValidMethods pins the algorithm to HS256 so a token claiming alg=none
// (or an RSA public-key confusion) is rejected before signature checking.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
