// Package devto is the article proxy: pass-through read access to the public
// dev.to articles API. Nothing is persisted here; the server just translates
// query parameters, forwards the call, and reshapes the response.
package devto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chiral-app/chiral-server/internal/apperror"
)

const (
	defaultBaseURL = "https://dev.to/api"

	// MaxPerPage caps how many articles one request can pull from upstream.
	MaxPerPage     = 20
	defaultPerPage = 20
)

// Article is the subset of dev.to's article payload the client renders.
type Article struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	CoverImage  string   `json:"cover_image,omitempty"`
	PublishedAt string   `json:"published_at"`
	TagList     []string `json:"tag_list"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
	ReadingTimeMinutes int `json:"reading_time_minutes"`
}

// Client fetches articles from dev.to.
type Client struct {
	baseURL    string
	apiKey     string // optional; raises upstream rate limits when set
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client against the public dev.to API. apiKey may be empty.
func New(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// NewWithBaseURL points the client at an alternate endpoint (tests).
func NewWithBaseURL(baseURL string, logger *slog.Logger) *Client {
	c := New("", logger)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// List fetches a page of articles. tag is lowercased before forwarding;
// perPage is clamped to 1..MaxPerPage (values <= 0 mean "default").
func (c *Client) List(ctx context.Context, tag string, perPage int) ([]Article, error) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(perPage))
	if tag != "" {
		query.Set("tag", strings.ToLower(tag))
	}

	var articles []Article
	if err := c.get(ctx, "/articles?"+query.Encode(), &articles); err != nil {
		return nil, err
	}

	return articles, nil
}

// Get fetches a single article by its dev.to ID. An upstream 404 becomes
// apperror.ErrNotFound so the handler returns 404 too.
func (c *Client) Get(ctx context.Context, id string) (*Article, error) {
	var article Article
	if err := c.get(ctx, "/articles/"+url.PathEscape(id), &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// ListByInterests fans out one request per interest tag and merges the
// results: deduplicated by article ID, sorted by published date descending,
// truncated to perPage.
//
// The fan-out is sequential and best-effort. A failed tag is logged and
// skipped — a single broken tag must not take down the whole feed. No
// retries; the next poll will pick the tag up again.
func (c *Client) ListByInterests(ctx context.Context, interests []string, perPage int) ([]Article, error) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	seen := make(map[int64]bool)
	merged := make([]Article, 0, perPage)

	for _, tag := range interests {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		articles, err := c.List(ctx, tag, perPage)
		if err != nil {
			c.logger.Warn("interest feed: skipping tag",
				slog.String("tag", tag),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, a := range articles {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			merged = append(merged, a)
		}
	}

	// Newest first. dev.to timestamps are RFC 3339, so the lexicographic
	// comparison orders them chronologically.
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].PublishedAt > merged[j].PublishedAt
	})

	if len(merged) > perPage {
		merged = merged[:perPage]
	}

	return merged, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("devto: building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("devto: calling API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return apperror.NotFound("article", path)
	case http.StatusTooManyRequests:
		return apperror.RateLimited("Article service rate limit exceeded. Please try again later.")
	default:
		return fmt.Errorf("devto: API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("devto: decoding response: %w", err)
	}

	return nil
}
