// Package gemini wraps the Google Gemini generateContent endpoint.
//
// This is the "explanation requester" boundary: one prompt in, one prose
// string out. Each call is fire-once — no retries, no backoff, no circuit
// breaker. The classification below tells callers which failures are worth
// retrying (429/503) and which are fatal (bad API key); what to do about a
// failure is the caller's decision, not this package's.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chiral-app/chiral-server/internal/apperror"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	// MaxTextLength and MaxContextLength bound what we will embed in a
	// prompt. They match the highlight store's own caps.
	MaxTextLength    = 5000
	MaxContextLength = 10000
)

// Client calls the Gemini REST API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. An empty apiKey is allowed at construction (the
// server should boot without AI configured); Explain reports a configuration
// error when it is actually needed.
func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithBaseURL points the client at an alternate endpoint (tests use an
// httptest.Server).
func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Request/response wire types — only the fields we touch. The real API
// returns far more (safety ratings, usage metadata); unmarshal ignores it.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Explain asks Gemini to explain a text fragment, optionally with the
// surrounding article context, and returns the generated prose.
//
// FAILURE CLASSIFICATION (the caller branches on these via errors.Is):
//   - apperror.ErrRateLimited  — upstream 429, retryable later
//   - apperror.ErrUnavailable  — upstream 503, retryable later
//   - apperror.ErrConfig       — missing/invalid API key, not retryable
//   - anything else            — generic "failed to generate explanation"
func (c *Client) Explain(ctx context.Context, text, contextText string) (string, error) {
	if c.apiKey == "" {
		return "", apperror.Config("AI service is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty text")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(text, contextText)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: calling API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gemini: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyFailure(resp.StatusCode, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("gemini: decoding response: %w", err)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty completion")
	}

	explanation := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if explanation == "" {
		return "", errors.New("gemini: empty completion")
	}

	return explanation, nil
}

// buildPrompt assembles the fixed natural-language prompt. The instruction
// wording is stable so explanations stay consistent in tone across requests.
func buildPrompt(text, contextText string) string {
	var b strings.Builder
	b.WriteString("You are a helpful tutor for software developers. ")
	b.WriteString("Explain the following passage from a technical article in clear, simple terms. ")
	b.WriteString("Keep the explanation concise and assume the reader is a learner.\n\n")
	b.WriteString("Passage:\n")
	b.WriteString(text)
	if contextText != "" {
		b.WriteString("\n\nSurrounding context:\n")
		b.WriteString(contextText)
	}
	return b.String()
}

// classifyFailure maps an upstream error response to the error taxonomy.
func classifyFailure(status int, raw []byte) error {
	var out generateResponse
	message := ""
	if json.Unmarshal(raw, &out) == nil && out.Error != nil {
		message = out.Error.Message
	}

	switch status {
	case http.StatusTooManyRequests:
		return apperror.RateLimited("AI service rate limit exceeded. Please try again later.")
	case http.StatusServiceUnavailable:
		return apperror.Unavailable("AI service temporarily unavailable. Please try again later.")
	}

	// Google reports bad credentials with wording like "API key not valid".
	lower := strings.ToLower(message)
	if strings.Contains(lower, "api key") || strings.Contains(lower, "api_key") {
		return apperror.Config("AI service configuration error")
	}

	return fmt.Errorf("gemini: API returned status %d: %s", status, message)
}
