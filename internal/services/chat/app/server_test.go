package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	return newWSHarness(t, 0).handler(t, nil, false)
}

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	if _, err := NewServer(Config{JWTSecret: "s", DBPath: ":memory:"}); err == nil {
		t.Fatal("expected error for empty HTTP address")
	}
}

func TestNewServerRequiresSecret(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0", DBPath: ":memory:"}); err == nil {
		t.Fatal("expected error for empty JWT secret")
	}
}

func TestNewServerRequiresDBPath(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0", JWTSecret: "s"}); err == nil {
		t.Fatal("expected error for empty database path")
	}
}

func TestListenAndServeNilServer(t *testing.T) {
	var s *Server
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestNewHandlerRequiresAuthenticator(t *testing.T) {
	if _, err := NewHandler(HandlerConfig{}); err == nil {
		t.Fatal("expected error for missing authenticator")
	}
}

func TestNewHandlerUpEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/up", nil)

	testHandler(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	if strings.TrimSpace(rr.Body.String()) != "OK" {
		t.Fatalf("body = %q, want OK", rr.Body.String())
	}
	if got := rr.Header().Get("X-Chat-Protocol"); got != "v1.0" {
		t.Fatalf("X-Chat-Protocol = %q, want v1.0", got)
	}
}

func TestNewHandlerHealthEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	testHandler(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "OK" || body["timestamp"] != "2024-01-01T10:00:00.123Z" {
		t.Fatalf("body = %v", body)
	}
}

func TestNewHandlerUnknownRouteReturnsJSON404(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)

	testHandler(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if !strings.Contains(rr.Body.String(), "Endpoint not found") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestNewHandlerWSEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ws", nil)

	testHandler(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestNewServerMountsRESTRoutes(t *testing.T) {
	server, err := NewServer(Config{
		HTTPAddr:   "127.0.0.1:0",
		JWTSecret:  "rest-secret",
		DBPath:     filepath.Join(t.TempDir(), "history.db"),
		BcryptCost: 4,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	server.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"password123"}`))
	req.Header.Set("Content-Type", "application/json")
	server.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status code = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := NewServer(Config{
		HTTPAddr:                "127.0.0.1:0",
		GRPCAddr:                "127.0.0.1:0",
		JWTSecret:               "serve-secret",
		DBPath:                  ":memory:",
		RevocationSweepInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}

func TestLogoutRevokesTokenForWebSocketAuth(t *testing.T) {
	server, err := NewServer(Config{
		HTTPAddr:   "127.0.0.1:0",
		JWTSecret:  "logout-secret",
		DBPath:     ":memory:",
		BcryptCost: 4,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()
	srv := startWSServer(t, server.httpServer.Handler)

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", strings.NewReader(`{"username":"alice","password":"password123"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var login struct {
		Token string `json:"token"`
	}
	err = json.NewDecoder(resp.Body).Decode(&login)
	_ = resp.Body.Close()
	if err != nil || login.Token == "" {
		t.Fatalf("decode login: token=%q err=%v", login.Token, err)
	}
	raw := login.Token

	before := dialWS(t, srv)
	authenticate(t, before, raw)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/logout", nil)
	if err != nil {
		t.Fatalf("new logout request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := strings.IndexByte(alphabet, raw[len(raw)-1])
	reencoded := raw[:len(raw)-1] + string(alphabet[last^1])

	conn := dialWS(t, srv)
	for _, variant := range []string{raw, raw + " ", reencoded} {
		writeFrame(t, conn, map[string]any{"type": "auth", "token": variant})
		expectError(t, conn, "Authentication failed")
	}
}

func TestCloseDrainsWebSocketsBeforeStore(t *testing.T) {
	server, err := NewServer(Config{
		HTTPAddr:   "127.0.0.1:0",
		JWTSecret:  "close-secret",
		DBPath:     ":memory:",
		BcryptCost: 4,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := startWSServer(t, server.httpServer.Handler)

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", strings.NewReader(`{"username":"alice","password":"password123"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var login struct {
		Token string `json:"token"`
	}
	err = json.NewDecoder(resp.Body).Decode(&login)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode login: %v", err)
	}

	conn := dialWS(t, srv)
	authenticate(t, conn, login.Token)
	joinRoom(t, conn, "general")

	server.Close()
	if got := server.handler.conns.len(); got != 0 {
		t.Fatalf("tracked connections after close = %d, want 0", got)
	}
	expectClosed(t, conn)
}
