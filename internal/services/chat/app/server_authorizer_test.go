package server

import (
	"context"
	"errors"
	"testing"
)

func TestRoomAuthorizer(t *testing.T) {
	directory := fakeRoomDirectory{members: map[string][]string{"general": {"user1"}}}
	lookupErr := errors.New("db down")

	tests := []struct {
		name    string
		auth    roomAuthorizer
		roomID  string
		userID  string
		wantErr error
	}{
		{name: "enforcement off", auth: roomAuthorizer{directory: directory}, roomID: "general", userID: "user2"},
		{name: "no directory", auth: roomAuthorizer{enforce: true}, roomID: "general", userID: "user2"},
		{name: "member", auth: roomAuthorizer{directory: directory, enforce: true}, roomID: "general", userID: "user1"},
		{name: "non member", auth: roomAuthorizer{directory: directory, enforce: true}, roomID: "general", userID: "user2", wantErr: errRoomAccessDenied},
		{name: "empty room", auth: roomAuthorizer{directory: directory, enforce: true}, userID: "user1", wantErr: errRoomAccessDenied},
		{name: "empty user", auth: roomAuthorizer{directory: directory, enforce: true}, roomID: "general", userID: " ", wantErr: errRoomAccessDenied},
		{name: "lookup failure", auth: roomAuthorizer{directory: fakeRoomDirectory{err: lookupErr}, enforce: true}, roomID: "general", userID: "user1", wantErr: lookupErr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.auth.authorizeJoin(context.Background(), tc.roomID, tc.userID)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("authorizeJoin err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("authorizeJoin err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseFrame(t *testing.T) {
	frame, err := parseFrame([]byte(`  {"type":"join_room","roomId":"general","extra":1}`))
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if frame.Type != frameJoinRoom || frame.RoomID != "general" {
		t.Fatalf("frame = %+v", frame)
	}
	for _, raw := range []string{"", "null", "[1]", `{"token":1}`} {
		if _, err := parseFrame([]byte(raw)); err == nil {
			t.Fatalf("parseFrame(%q) expected error", raw)
		}
	}
}
