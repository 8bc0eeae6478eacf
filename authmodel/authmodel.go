package authmodel

import (
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/users"
)

// Credentials is the body of POST /auth/admin/signin.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse is returned by the sign-in endpoint.
type SignInResponse struct {
	// User is the public profile of the signed-in admin.
	User users.SanitizedUser `json:"user"`

	// Tokens holds the access token (short-lived, sent as "Authorization: Bearer <token>")
	// and the refresh token (long-lived, rotates on every exchange).
	Tokens token.Pair `json:"tokens"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries the rotated token pair. The previous refresh token is no
// longer accepted once this response has been issued.
type RefreshResponse struct {
	Tokens token.Pair `json:"tokens"`
}

// ErrorResponse is the error body shape; only Message is inspected by the client.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
