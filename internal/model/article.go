package model

import "time"

// SavedArticle is a dev.to article a user chose to keep. Unlike the article
// proxy (which persists nothing), saved articles live in our database so the
// user's reading list survives upstream deletions.
//
// DevToID is the upstream article ID; a user cannot save the same DevToID
// twice (UNIQUE(user_id, dev_to_id) in the schema).
type SavedArticle struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Tags        string     `json:"tags,omitempty"` // comma-flattened tag list, as the client sends it
	DevToID     string     `json:"devToId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
