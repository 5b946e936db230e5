package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the subset of Google's ID-token claims we care about.
type GoogleUser struct {
	Sub     string `json:"sub"`     // Google's stable user ID — never changes
	Email   string `json:"email"`   // verified email for the account
	Name    string `json:"name"`    // display name
	Picture string `json:"picture"` // profile picture URL
}

// tokeninfoResponse is Google's tokeninfo payload. Audience must match our
// client ID or the token was issued for some other application.
type tokeninfoResponse struct {
	Aud     string `json:"aud"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

const googleTokeninfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleProvider verifies Google sign-in credentials.
//
// TWO ENTRY POINTS:
//   - VerifyIDToken: the SPA obtains an ID token through Google's browser SDK
//     and posts it to /api/google-login. We verify it server-side against the
//     tokeninfo endpoint (Google checks the signature; we check the audience).
//   - AuthURL/Exchange: a classic server-side authorization-code flow for
//     non-SPA clients, built on golang.org/x/oauth2.
type GoogleProvider struct {
	config       *oauth2.Config
	tokeninfoURL string
	httpClient   *http.Client
}

// NewGoogleProvider creates a GoogleProvider. clientID is the OAuth client ID
// from the Google Cloud console; clientSecret and callbackURL are only needed
// for the code flow and may be empty when the SPA token path is the sole user.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		tokeninfoURL: googleTokeninfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewGoogleProviderForTest points the provider at a fake tokeninfo endpoint.
func NewGoogleProviderForTest(clientID, tokeninfoURL string) *GoogleProvider {
	p := NewGoogleProvider(clientID, "", "")
	p.tokeninfoURL = tokeninfoURL
	return p
}

// VerifyIDToken validates a Google ID token and returns the user's profile.
//
// Google's tokeninfo endpoint checks the signature and expiry for us and
// returns the claims; a 4xx status means the token is invalid or expired.
// We still must check the audience ourselves — a valid Google token minted
// for a different app would otherwise log into ours.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	if idToken == "" {
		return nil, errors.New("auth: empty Google token")
	}

	reqURL := p.tokeninfoURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building tokeninfo request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google rejected the token (status %d)", resp.StatusCode)
	}

	var info tokeninfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("auth: decoding tokeninfo response: %w", err)
	}

	if info.Aud != p.config.ClientID {
		return nil, errors.New("auth: Google token audience mismatch")
	}
	if info.Sub == "" {
		return nil, errors.New("auth: Google token has no subject")
	}

	return &GoogleUser{
		Sub:     info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// AuthURL returns the Google authorization URL for the code flow. The state
// parameter must be random, stored client-side (cookie), and checked on
// callback — standard CSRF protection for OAuth.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the server-side code flow: trades the authorization code
// for tokens and verifies the ID token Google attached to them.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// Google returns the ID token alongside the access token.
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, errors.New("auth: Google token response missing id_token")
	}

	return p.VerifyIDToken(ctx, idToken)
}
