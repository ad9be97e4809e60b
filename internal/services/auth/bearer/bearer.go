// Package bearer resolves bearer tokens into callers for both the REST
// routes and the realtime auth handshake.
package bearer

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/huddle/internal/platform/errors"
	"github.com/louisbranch/huddle/internal/platform/requestctx"
	"github.com/louisbranch/huddle/internal/services/auth/token"
	"github.com/louisbranch/huddle/internal/services/chat/revocation"
)

// ErrRevoked indicates a token that was logged out before its expiry.
var ErrRevoked = apperrors.New(apperrors.CodeTokenRevoked, "Token revoked")

// ErrInvalid is the public rejection for any token failing verification.
var ErrInvalid = apperrors.New(apperrors.CodeTokenInvalid, "Invalid token")

// Authenticator verifies tokens and consults the revocation registry.
type Authenticator struct {
	issuer      *token.Issuer
	revocations revocation.Registry
}

// New builds an Authenticator. Both collaborators are required.
func New(issuer *token.Issuer, revocations revocation.Registry) (*Authenticator, error) {
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if revocations == nil {
		return nil, errors.New("revocation registry is required")
	}
	return &Authenticator{issuer: issuer, revocations: revocations}, nil
}

// Authenticate returns the caller for raw. Revocation is keyed by the
// verified token id, so any encoding of a logged-out token reports as
// revoked.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (requestctx.Caller, error) {
	if raw == "" {
		return requestctx.Caller{}, ErrInvalid
	}
	claims, err := a.issuer.Verify(raw)
	if err != nil {
		return requestctx.Caller{}, apperrors.Wrap(apperrors.CodeTokenInvalid, ErrInvalid.Message, err)
	}
	if a.revocations.IsRevoked(ctx, claims.ID) {
		return requestctx.Caller{}, ErrRevoked
	}
	return requestctx.Caller{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Role:      claims.Role,
		Token:     raw,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

// Revoke records caller's token as unusable until it expires.
func (a *Authenticator) Revoke(ctx context.Context, caller requestctx.Caller) {
	if caller.TokenID == "" {
		return
	}
	a.revocations.Revoke(ctx, caller.TokenID, caller.ExpiresAt)
}
