package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-finadmin-client/users"
)

// ErrInactive is returned for tokens that are malformed, badly signed or expired.
var ErrInactive = errors.New("token is not active")

// Issuer creates and validates the backend's short-lived access tokens.
type Issuer struct {
	signer  Signer
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

type Option func(*Issuer)

func WithIssuer(issuer string) Option {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

// WithExpiry sets the access token lifetime.
func WithExpiry(expiry time.Duration) Option {
	return func(i *Issuer) {
		i.expiry = expiry
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(signer Signer, options ...Option) *Issuer {
	i := &Issuer{
		signer:  signer,
		issuer:  "finadmin",
		expiry:  15 * time.Minute,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Claims is what a validated access token says about its bearer.
type Claims struct {
	Subject   string
	Email     string
	Role      users.RoleType
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// CreateAccessToken creates an access token for user
func (i *Issuer) CreateAccessToken(user *users.User) (string, error) {
	now := i.nowFunc()
	claims := jwtlib.MapClaims{
		"iss":   i.issuer,
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(i.expiry).Unix(),
		"jti":   uuid.New().String(),
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[Issuer CreateAccessToken] %w", err)
	}
	return signed, nil
}

// Validate verifies the signature, issuer and expiry of rawToken.
func (i *Issuer) Validate(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInactive
	}
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(i.nowFunc),
	)
	token, err := parser.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.GetVerificationKey)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInactive, err)
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", ErrInactive)
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInactive)
	}
	return &Claims{
		Subject:   sub,
		Email:     email,
		Role:      users.RoleType(role),
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
		ID:        jti,
	}, nil
}
