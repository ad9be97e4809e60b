package app

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/huddle/internal/platform/httpx"
	"github.com/louisbranch/huddle/internal/platform/requestctx"
	"github.com/louisbranch/huddle/internal/services/auth/bearer"
	"github.com/louisbranch/huddle/internal/services/auth/token"
	"github.com/louisbranch/huddle/internal/services/auth/user"
)

// Handler hosts the login, registration, logout, profile, and status routes.
type Handler struct {
	users  *user.Directory
	issuer *token.Issuer
	auth   *bearer.Authenticator
}

// NewHandler builds the credential routes over a user directory.
func NewHandler(users *user.Directory, issuer *token.Issuer, auth *bearer.Authenticator) (*Handler, error) {
	if users == nil {
		return nil, errors.New("user directory is required")
	}
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if auth == nil {
		return nil, errors.New("authenticator is required")
	}
	return &Handler{users: users, issuer: issuer, auth: auth}, nil
}

// RegisterRoutes registers the /api/auth endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) error {
	if mux == nil {
		return errors.New("mux is required")
	}
	requireBearer := httpx.RequireBearer(h.auth.Authenticate)

	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.Handle("POST /api/auth/logout", requireBearer(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET /api/auth/profile", requireBearer(http.HandlerFunc(h.handleProfile)))
	mux.Handle("PUT /api/auth/status", requireBearer(http.HandlerFunc(h.handleStatus)))
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    user.Public `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.users.Authenticate(req.Username, req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	signed, _, err := h.issuer.Issue(token.Subject{
		UserID:   account.ID,
		Username: account.Username,
		Role:     account.Role,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("auth: login user_id=%q", account.ID)
	_ = httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   signed,
		User:    account.Public(),
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string      `json:"message"`
	User    user.Public `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.users.Register(user.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("auth: registered user_id=%q username=%q", account.ID, account.Username)
	_ = httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    account.Public(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	caller, _ := requestctx.CallerFromContext(r.Context())
	h.auth.Revoke(r.Context(), caller)
	if _, err := h.users.SetStatus(caller.UserID, user.StatusOffline); err != nil && !errors.Is(err, user.ErrNotFound) {
		log.Printf("auth: mark offline failed user_id=%q err=%v", caller.UserID, err)
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

type profileResponse struct {
	user.Public
	Email string `json:"email"`
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	account, err := h.users.Get(requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, profileResponse{Public: account.Public(), Email: account.Email})
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Message  string    `json:"message"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	account, err := h.users.SetStatus(requestctx.UserIDFromContext(r.Context()), req.Status)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, statusResponse{
		Message:  "Status updated successfully",
		Status:   account.Status,
		LastSeen: account.LastSeen,
	})
}
