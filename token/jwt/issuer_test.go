package jwt_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/token/jwt"
	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/stretchr/testify/require"
)

func TestIssuer(t *testing.T) {
	rsaSigner, err := jwt.GenerateRSASigner("dev-key")
	require.NoError(t, err)

	signers := map[string]jwt.Signer{
		"hmac": jwt.NewHMACSigner("test-secret"),
		"rsa":  rsaSigner,
	}
	user := &users.User{ID: "u-1", Email: "admin@example.com", Role: users.RoleAdmin}

	for name, signer := range signers {
		t.Run(name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			issuer := jwt.NewIssuer(signer, jwt.WithExpiry(time.Minute), jwt.WithNowFunc(func() time.Time { return now }))

			raw, err := issuer.CreateAccessToken(user)
			require.NoError(t, err)

			claims, err := issuer.Validate(raw)
			require.NoError(t, err)
			require.Equal(t, "u-1", claims.Subject)
			require.Equal(t, users.RoleAdmin, claims.Role)
			require.Equal(t, now.Add(time.Minute), claims.ExpiresAt)

			// The client reads the same expiry without verifying.
			exp, ok := token.ExpiresAt(raw)
			require.True(t, ok)
			require.Equal(t, now.Add(time.Minute).Unix(), exp.Unix())

			now = now.Add(2 * time.Minute)
			_, err = issuer.Validate(raw)
			require.ErrorIs(t, err, jwt.ErrInactive)
		})
	}
}

func TestIssuer_RejectsForeignTokens(t *testing.T) {
	user := &users.User{ID: "u-1", Email: "admin@example.com", Role: users.RoleAdmin}
	ours := jwt.NewIssuer(jwt.NewHMACSigner("secret-a"))
	theirs := jwt.NewIssuer(jwt.NewHMACSigner("secret-b"))
	otherIssuer := jwt.NewIssuer(jwt.NewHMACSigner("secret-a"), jwt.WithIssuer("someone-else"))

	raw, err := theirs.CreateAccessToken(user)
	require.NoError(t, err)
	_, err = ours.Validate(raw)
	require.ErrorIs(t, err, jwt.ErrInactive)

	raw, err = otherIssuer.CreateAccessToken(user)
	require.NoError(t, err)
	_, err = ours.Validate(raw)
	require.ErrorIs(t, err, jwt.ErrInactive)

	_, err = ours.Validate("")
	require.ErrorIs(t, err, jwt.ErrInactive)
	_, err = ours.Validate("not-a-jwt")
	require.ErrorIs(t, err, jwt.ErrInactive)
}

func TestRSASigner_JWKS(t *testing.T) {
	signer, err := jwt.GenerateRSASigner("dev-key")
	require.NoError(t, err)
	set := signer.JWKS()
	require.Len(t, set.Keys, 1)
	require.Equal(t, "dev-key", set.Keys[0].Kid)
	require.Equal(t, "RSA", set.Keys[0].Kty)
	require.NotEmpty(t, set.Keys[0].N)
}
