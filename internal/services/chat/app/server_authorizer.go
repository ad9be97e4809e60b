package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/huddle/internal/platform/requestctx"
)

var errRoomAccessDenied = errors.New("room membership required")

// Authenticator resolves a bearer token presented in an auth frame.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (requestctx.Caller, error)
}

// RoomDirectory answers room membership for joins.
type RoomDirectory interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// roomAuthorizer gates join_room. With enforcement off, or without a
// directory, any authenticated identity may join any room id.
type roomAuthorizer struct {
	directory RoomDirectory
	enforce   bool
}

func (a roomAuthorizer) authorizeJoin(ctx context.Context, roomID, userID string) error {
	if !a.enforce || a.directory == nil {
		return nil
	}
	if roomID == "" || strings.TrimSpace(userID) == "" {
		return errRoomAccessDenied
	}
	allowed, err := a.directory.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check room membership: %w", err)
	}
	if !allowed {
		return errRoomAccessDenied
	}
	return nil
}
