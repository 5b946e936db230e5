package model

import "time"

// Note variants. A note is either free-form (title + content) or derived from
// a highlight (text + explanation). The two shapes share one table and one
// struct, discriminated by NoteType — which fields are required depends on it
// (enforced in the service layer, see service.NoteService.Create).
const (
	NoteTypeTraditional = "traditional"
	NoteTypeHighlight   = "highlight"
)

// Note is a user-authored persisted artifact.
//
// For NoteTypeTraditional, Title and Content are required and the highlight
// fields are empty. For NoteTypeHighlight it is the other way around:
// HighlightedText and Explanation are required, OriginalContext optional.
type Note struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	NoteType string `json:"noteType"`

	// traditional variant
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`

	// highlight variant
	HighlightedText string `json:"highlightedText,omitempty"`
	Explanation     string `json:"explanation,omitempty"`
	OriginalContext string `json:"originalContext,omitempty"`

	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
