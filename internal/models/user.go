package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/desertthunder/animx/internal/shared"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// MaxPasswordLength is the bcrypt input limit in bytes.
const MaxPasswordLength = 72

// User is an account of the web front end.
//
// PasswordHash is never serialized to JSON.
type User struct {
	ID            string     `json:"-" bson:"_id,omitempty"`
	Username      string     `json:"username" bson:"username"`
	PasswordHash  string     `json:"-" bson:"password"`
	IsVIP         bool       `json:"isVIP" bson:"isVIP"`
	RegisterTime  time.Time  `json:"registerTime" bson:"registerTime"`
	LastLoginTime *time.Time `json:"lastLoginTime" bson:"lastLoginTime"`
}

// NewUser creates a non-VIP user registered now.
func NewUser(username, passwordHash string) *User {
	return &User{
		ID:           shared.GenerateID(),
		Username:     username,
		PasswordHash: passwordHash,
		RegisterTime: Stamp(),
	}
}

// Validate checks the username format and that a password hash is present.
func (u *User) Validate() error {
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: password hash", shared.ErrMissingArgument)
	}
	return nil
}

// ValidateUsername requires 3 to 20 letters, digits or underscores.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must be 3-20 letters, digits or underscores", shared.ErrInvalidInput)
	}
	return nil
}

// ValidatePassword enforces [MinPasswordLength] and [MaxPasswordLength].
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password", shared.ErrMissingArgument)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", shared.ErrInvalidInput, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", shared.ErrInvalidInput, MaxPasswordLength)
	}
	return nil
}
