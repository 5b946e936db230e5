package model

import (
	"encoding/json"
	"time"
)

// Highlight is a user-selected passage of an article, optionally paired with
// an AI-generated explanation.
//
// Position is opaque to the server: the client stores whatever it needs to
// re-anchor the selection ({start, end, ...}) and gets it back unchanged.
// json.RawMessage keeps it a byte-for-byte round trip.
//
// Explanation is a *string so the JSON output distinguishes "no explanation
// yet" (null) from an empty string.
type Highlight struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	ArticleID       string          `json:"articleId"`
	ArticleTitle    string          `json:"articleTitle,omitempty"`
	ArticleURL      string          `json:"articleUrl,omitempty"`
	HighlightedText string          `json:"highlightedText"`
	Explanation     *string         `json:"explanation"`
	Context         string          `json:"context,omitempty"`
	Position        json.RawMessage `json:"position,omitempty"`
	Tags            []string        `json:"tags"`
	IsBookmarked    bool            `json:"isBookmarked"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
