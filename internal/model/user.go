// Package model defines the data structures shared across the application.
package model

import "time"

// User represents a registered account.
//
// Accounts come from two places: email/password registration and Google
// sign-in. A Google-only account has GoogleID set and a placeholder password
// hash (bcrypt of a random string) so the password column is never empty and
// password login against such an account simply fails verification.
//
// PasswordHash has `json:"-"` — it must never leave the server, no matter
// which handler serializes a User.
type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"` // globally unique
	PasswordHash      string    `json:"-"`
	GoogleID          string    `json:"-"` // Google's stable subject ID, empty for password accounts
	LearningInterests []string  `json:"learningInterests"`
	ProfilePicture    string    `json:"profilePicture,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
