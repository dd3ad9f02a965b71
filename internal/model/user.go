// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Fullname holds the user's given and family names.
type Fullname struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname,omitempty"`
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Fullname     Fullname  `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Emails are stored and looked up in this form only.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Public returns a copy of the user with the password hash cleared.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}
