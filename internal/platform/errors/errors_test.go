package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeTokenRevoked, "Token revoked")
	wrapped := fmt.Errorf("profile: %w", New(CodeTokenRevoked, "different message"))

	if !stderrors.Is(wrapped, base) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(wrapped, New(CodeTokenExpired, "")) {
		t.Fatal("expected different codes not to match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "store message", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "store message: disk full" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(CodeUserMissingFields, "x"), http.StatusBadRequest},
		{New(CodeTokenInvalid, "x"), http.StatusUnauthorized},
		{New(CodeRoomAccessDenied, "x"), http.StatusForbidden},
		{New(CodeRoomNotFound, "x"), http.StatusNotFound},
		{New(CodeUserAlreadyExists, "x"), http.StatusConflict},
		{New(CodeSessionCapacity, "x"), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", New(CodeMessageNotOwned, "x")), http.StatusForbidden},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPublicMessageHidesUnknownErrors(t *testing.T) {
	if got := PublicMessage(stderrors.New("sql: connection reset")); got != "Internal server error" {
		t.Fatalf("PublicMessage = %q", got)
	}
	if got := PublicMessage(New(CodeRoomNotFound, "Room not found")); got != "Room not found" {
		t.Fatalf("PublicMessage = %q", got)
	}
}
