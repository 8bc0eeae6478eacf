package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents an admin dashboard role
type RoleType string

const (
	RoleSuperAdmin RoleType = "super_admin" // Can manage admins and scheduled jobs
	RoleAdmin      RoleType = "admin"       // Can manage users, transactions, categories and merchants
	RoleViewer     RoleType = "viewer"      // Read-only dashboard access
)

// SanitizedUser is the public profile returned by the sign-in endpoint and cached
// client-side. It never carries credentials.
type SanitizedUser struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Role  RoleType `json:"role"`
}

// Valid reports whether the profile has the fields a session needs.
func (u *SanitizedUser) Valid() bool {
	return u != nil && u.ID != "" && u.Email != ""
}

// User is the backend's stored account.
type User struct {
	ID           string    `json:"id,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	Role         RoleType  `json:"role,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"`
}

// Sanitize strips everything but the public profile.
func (u *User) Sanitize() SanitizedUser {
	return SanitizedUser{ID: u.ID, Email: u.Email, Role: u.Role}
}

// IsAdmin returns true if the user may change data through the dashboard
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// CanSignIn reports whether the account may open a dashboard session at all.
func (u *User) CanSignIn() bool {
	return !u.Blocked && (u.IsAdmin() || u.Role == RoleViewer)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
