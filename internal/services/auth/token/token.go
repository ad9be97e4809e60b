// Package token issues and verifies the HS256 bearer tokens shared by the
// HTTP auth routes and the realtime auth handshake.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/louisbranch/huddle/internal/platform/errors"
)

// DefaultTTL is the access token lifetime.
const DefaultTTL = 15 * time.Minute

var (
	// ErrInvalid covers bad signatures, malformed tokens, and missing claims.
	ErrInvalid = apperrors.New(apperrors.CodeTokenInvalid, "Invalid token")
	// ErrExpired indicates a well-formed token past its expiry.
	ErrExpired = apperrors.New(apperrors.CodeTokenExpired, "Token expired")
)

// Claims are the token payload. JSON names match the tokens issued by the
// existing web client. The registered ID ("jti") is the revocation key.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ExpiresAtTime returns the token expiry, or the zero time when absent.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Subject is the identity a token is issued for.
type Subject struct {
	UserID   string
	Username string
	Role     string
}

// Config configures an Issuer.
type Config struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer validates cfg. An empty secret is rejected.
func NewIssuer(cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{secret: []byte(cfg.Secret), ttl: cfg.TTL, now: cfg.Now}, nil
}

// Issue signs a token for subject.
func (i *Issuer) Issue(subject Subject) (string, Claims, error) {
	now := i.now()
	claims := Claims{
		UserID:   subject.UserID,
		Username: subject.Username,
		Role:     subject.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature and expiry and returns the claims. Segments must
// be canonical base64url, so one signed token has exactly one accepted
// encoding.
func (i *Issuer) Verify(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrInvalid
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, apperrors.Wrap(apperrors.CodeTokenInvalid, "Invalid token", err)
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.ID) == "" {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
