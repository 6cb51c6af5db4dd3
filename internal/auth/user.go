// Package auth provides user accounts, bearer-token sessions, and the HTTP
// middleware that authenticates API requests.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role represents user authorization levels.
type Role string

const (
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleAdmin  Role = "Admin"
)

// NormalizeRole maps a raw string to a Role, case-insensitively.
func NormalizeRole(value string) (Role, error) {
	for _, role := range []Role{RoleViewer, RoleEditor, RoleAdmin} {
		if strings.EqualFold(strings.TrimSpace(value), string(role)) {
			return role, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// CanEdit reports whether the role may mutate inventory data.
func (r Role) CanEdit() bool { return r == RoleEditor || r == RoleAdmin }

// IsAdmin reports whether the role may manage users.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// User is an ipocket account.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at"`
}

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks that a password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
