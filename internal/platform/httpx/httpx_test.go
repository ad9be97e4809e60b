package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/huddle/internal/platform/errors"
	"github.com/louisbranch/huddle/internal/platform/requestctx"
)

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	called := ""
	mw1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called += "1"
			next.ServeHTTP(w, r)
		})
	}
	mw2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called += "2"
			next.ServeHTTP(w, r)
		})
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called += "h"
		w.WriteHeader(http.StatusNoContent)
	}), mw1, nil, mw2)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if called != "12h" {
		t.Fatalf("call order = %q, want %q", called, "12h")
	}
}

func TestRequireMethodRejectsUnexpectedMethod(t *testing.T) {
	t.Parallel()

	h := RequireMethod(http.MethodGet)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if got := rr.Header().Get("Allow"); got != http.MethodGet {
		t.Fatalf("Allow = %q, want %q", got, http.MethodGet)
	}
}

func TestRecoverPanicWritesJSON500(t *testing.T) {
	t.Parallel()

	h := RecoverPanic()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if body := decodeError(t, rr); body != "Internal server error" {
		t.Fatalf("error = %q", body)
	}
}

func TestSetHeaderAndNotFound(t *testing.T) {
	t.Parallel()

	h := SetHeader("X-Chat-Protocol", "v1.0")(NotFound())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if got := rr.Header().Get("X-Chat-Protocol"); got != "v1.0" {
		t.Fatalf("protocol header = %q", got)
	}
	if body := decodeError(t, rr); body != "Endpoint not found" {
		t.Fatalf("error = %q", body)
	}
}

func TestRequireBearer(t *testing.T) {
	t.Parallel()

	authenticate := func(_ context.Context, raw string) (requestctx.Caller, error) {
		if raw != "good" {
			return requestctx.Caller{}, apperrors.New(apperrors.CodeTokenRevoked, "Token revoked")
		}
		return requestctx.Caller{UserID: "user1", Username: "alice", Token: raw}, nil
	}
	h := RequireBearer(authenticate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := requestctx.CallerFromContext(r.Context())
		if !ok || caller.UserID != "user1" {
			t.Errorf("caller = %+v, ok = %v", caller, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		err    string
	}{
		{name: "missing", status: http.StatusUnauthorized, err: "Authentication required"},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, err: "Authentication required"},
		{name: "rejected", header: "Bearer bad", status: http.StatusUnauthorized, err: "Token revoked"},
		{name: "accepted", header: "Bearer good", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.err != "" {
				if got := decodeError(t, rr); got != tt.err {
					t.Fatalf("error = %q, want %q", got, tt.err)
				}
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("database on fire"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if got := decodeError(t, rr); got != "Internal server error" {
		t.Fatalf("error = %q", got)
	}
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var dst map[string]any
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatal("expected decode error")
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error
}
