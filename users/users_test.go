package users_test

import (
	"testing"

	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := users.HashPassword("Password123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Password123", hash))
	require.False(t, users.CheckPasswordHash("password123", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Password123"))
	require.ErrorContains(t, users.ValidatePasswordStrength("short"), "8 characters")
	require.ErrorContains(t, users.ValidatePasswordStrength("password123"), "uppercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("Passwordabc"), "number")
}

func TestSanitize(t *testing.T) {
	u := &users.User{ID: "u1", Email: "a@example.com", PasswordHash: "secret", Role: users.RoleAdmin}
	s := u.Sanitize()
	require.Equal(t, users.SanitizedUser{ID: "u1", Email: "a@example.com", Role: users.RoleAdmin}, s)
	require.True(t, s.Valid())
	require.True(t, u.IsAdmin())
	require.True(t, u.CanSignIn())

	viewer := &users.User{Role: users.RoleViewer}
	require.False(t, viewer.IsAdmin())
	require.True(t, viewer.CanSignIn())

	blocked := &users.User{Role: users.RoleSuperAdmin, Blocked: true}
	require.False(t, blocked.CanSignIn())
	require.False(t, (&users.User{}).CanSignIn())
}

func TestInMemoryUserRepo(t *testing.T) {
	repo := users.NewInMemoryUserRepo()
	require.NoError(t, repo.Upsert(&users.User{Email: "B@example.com"}))
	require.NoError(t, repo.Upsert(&users.User{Email: "a@example.com"}))

	u, err := repo.GetByEmail("b@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = repo.GetByEmail("missing@example.com")
	require.ErrorIs(t, err, users.ErrNotFound)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 2, repo.Count())
}
