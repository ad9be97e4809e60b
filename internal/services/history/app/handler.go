package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/huddle/internal/platform/errors"
	"github.com/louisbranch/huddle/internal/platform/httpx"
	"github.com/louisbranch/huddle/internal/platform/requestctx"
	"github.com/louisbranch/huddle/internal/services/history/storage"
)

const (
	// DefaultPageLimit is the page size when limit is absent or invalid.
	DefaultPageLimit = 50
	// MaxPageLimit caps any requested page size.
	MaxPageLimit = 100

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

var (
	errAccessDenied    = apperrors.New(apperrors.CodeRoomAccessDenied, "Access denied")
	errEditNotOwned    = apperrors.New(apperrors.CodeMessageNotOwned, "Access denied")
	errDeleteNotOwned  = apperrors.New(apperrors.CodeMessageNotOwned, "Permission denied")
	errContentRequired = apperrors.New(apperrors.CodeMessageEmpty, "Message content is required")
	errInvalidBody     = apperrors.New(apperrors.CodeMessageEmpty, "Invalid request body")
)

// Config wires the history routes.
type Config struct {
	Store        storage.Store
	Authenticate httpx.Authenticate
	Now          func() time.Time
	NewID        func() string
}

// Handler hosts the room and message routes.
type Handler struct {
	store        storage.Store
	authenticate httpx.Authenticate
	now          func() time.Time
	newID        func() string
}

// NewHandler validates cfg and builds a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("history store is required")
	}
	if cfg.Authenticate == nil {
		return nil, errors.New("authenticate func is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Handler{store: cfg.Store, authenticate: cfg.Authenticate, now: cfg.Now, newID: cfg.NewID}, nil
}

// RegisterRoutes registers the /api/messages endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) error {
	if mux == nil {
		return errors.New("mux is required")
	}
	authed := httpx.RequireBearer(h.authenticate)
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(fn))
	}
	route("GET /api/messages", h.handleListRooms)
	route("GET /api/messages/{roomId}", h.handleListMessages)
	route("POST /api/messages/{roomId}", h.handleSendMessage)
	route("GET /api/messages/{roomId}/{messageId}", h.handleGetMessage)
	route("PUT /api/messages/{roomId}/{messageId}", h.handleEditMessage)
	route("DELETE /api/messages/{roomId}/{messageId}", h.handleDeleteMessage)
	return nil
}

type roomSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	MemberCount int      `json:"memberCount"`
	Members     []string `json:"members"`
	CreatedAt   string   `json:"createdAt"`
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	summaries := make([]roomSummary, 0, len(rooms))
	for _, room := range rooms {
		members := []string{}
		if room.HasMember(userID) {
			members = room.Members
		}
		summaries = append(summaries, roomSummary{
			ID:          room.ID,
			Name:        room.Name,
			Type:        room.Type,
			MemberCount: len(room.Members),
			Members:     members,
			CreatedAt:   formatTime(room.CreatedAt),
		})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"rooms": summaries})
}

type messageView struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Username    string     `json:"username"`
	Timestamp   string     `json:"timestamp"`
	Edited      bool       `json:"edited"`
	EditHistory []editView `json:"editHistory"`
}

type editView struct {
	PreviousContent string `json:"previousContent"`
	EditedAt        string `json:"editedAt"`
	EditedBy        string `json:"editedBy"`
}

type roomView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

type messagePage struct {
	Messages   []messageView `json:"messages"`
	Room       roomView      `json:"room"`
	Pagination pagination    `json:"pagination"`
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	room, ok := h.memberRoom(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	msgs, total, err := h.store.ListMessages(r.Context(), room.ID, offset, limit)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	views := make([]messageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, viewMessage(msg, userID))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, messagePage{
		Messages:   views,
		Room:       roomView{ID: room.ID, Name: room.Name, Type: room.Type},
		Pagination: pagination{Offset: offset, Limit: limit, Total: total},
	})
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	room, ok := h.memberRoom(w, r)
	if !ok {
		return
	}
	msg, err := h.store.GetMessage(r.Context(), room.ID, r.PathValue("messageId"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, viewMessage(msg, requestctx.UserIDFromContext(r.Context())))
}

type contentRequest struct {
	Content string `json:"content"`
}

type sentMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, errInvalidBody)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httpx.WriteError(w, errContentRequired)
		return
	}
	room, ok := h.memberRoom(w, r)
	if !ok {
		return
	}
	caller, _ := requestctx.CallerFromContext(r.Context())
	msg := storage.Message{
		ID:        h.newID(),
		RoomID:    room.ID,
		UserID:    caller.UserID,
		Username:  caller.Username,
		Content:   content,
		Timestamp: h.now().UTC(),
	}
	if err := h.store.PutMessage(r.Context(), msg); err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Message sent successfully",
		"messageData": sentMessage{
			ID:        msg.ID,
			Content:   msg.Content,
			Username:  msg.Username,
			Timestamp: formatTime(msg.Timestamp),
		},
	})
}

type editedMessage struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	Edited       bool   `json:"edited"`
	LastEditedAt string `json:"lastEditedAt"`
}

func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, errInvalidBody)
		return
	}
	msg, ok := h.ownedMessage(w, r, errEditNotOwned)
	if !ok {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httpx.WriteError(w, errContentRequired)
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	updated, err := h.store.EditMessage(r.Context(), msg.RoomID, msg.ID, content, userID, h.now().UTC())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Message updated successfully",
		"messageData": editedMessage{
			ID:           updated.ID,
			Content:      updated.Content,
			Edited:       updated.Edited,
			LastEditedAt: formatTime(updated.LastEditedAt),
		},
	})
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.ownedMessage(w, r, errDeleteNotOwned)
	if !ok {
		return
	}
	userID := requestctx.UserIDFromContext(r.Context())
	if err := h.store.DeleteMessage(r.Context(), msg.RoomID, msg.ID, userID, h.now().UTC()); err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("history: message deleted room_id=%q message_id=%q user_id=%q", msg.RoomID, msg.ID, userID)
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

// memberRoom loads the path room and writes the rejection when the caller is
// not a member.
func (h *Handler) memberRoom(w http.ResponseWriter, r *http.Request) (storage.Room, bool) {
	room, err := h.loadMemberRoom(r.Context(), r.PathValue("roomId"))
	if err != nil {
		httpx.WriteError(w, err)
		return storage.Room{}, false
	}
	return room, true
}

func (h *Handler) loadMemberRoom(ctx context.Context, roomID string) (storage.Room, error) {
	room, err := h.store.GetRoom(ctx, roomID)
	if err != nil {
		return storage.Room{}, err
	}
	if !room.HasMember(requestctx.UserIDFromContext(ctx)) {
		return storage.Room{}, errAccessDenied
	}
	return room, nil
}

func (h *Handler) ownedMessage(w http.ResponseWriter, r *http.Request, notOwned error) (storage.Message, bool) {
	room, ok := h.memberRoom(w, r)
	if !ok {
		return storage.Message{}, false
	}
	msg, err := h.store.GetMessage(r.Context(), room.ID, r.PathValue("messageId"))
	if err != nil {
		httpx.WriteError(w, err)
		return storage.Message{}, false
	}
	if msg.UserID != requestctx.UserIDFromContext(r.Context()) {
		httpx.WriteError(w, notOwned)
		return storage.Message{}, false
	}
	return msg, true
}

func pageParams(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset, err = strconv.Atoi(query.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// viewMessage renders msg for viewerID. Edit history is shown to the author only.
func viewMessage(msg storage.Message, viewerID string) messageView {
	history := []editView{}
	if msg.UserID == viewerID {
		for _, edit := range msg.Edits {
			history = append(history, editView{
				PreviousContent: edit.PreviousContent,
				EditedAt:        formatTime(edit.EditedAt),
				EditedBy:        edit.EditedBy,
			})
		}
	}
	return messageView{
		ID:          msg.ID,
		Content:     msg.Content,
		Username:    msg.Username,
		Timestamp:   formatTime(msg.Timestamp),
		Edited:      msg.Edited,
		EditHistory: history,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
