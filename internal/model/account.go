package model

import (
	"fmt"
	"strings"
	"time"
)

// Account is a sign-in identity. Whether it may administer the catalog is
// decided by the allow-list, not by anything stored here.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSession is the signed-in view of an account.
type UserSession struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// NewUserSession builds a session, falling back to the email when the
// display name is empty.
func NewUserSession(displayName, email, photoURL string) *UserSession {
	email = NormalizeEmail(email)
	username := strings.TrimSpace(displayName)
	if username == "" {
		username = email
	}
	return &UserSession{Username: username, Email: email, PhotoURL: photoURL}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
