package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/louisbranch/huddle/internal/services/chat/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	frameAuth        = "auth"
	frameAuthSuccess = "auth_success"
	frameJoinRoom    = "join_room"
	frameJoinedRoom  = "joined_room"
	frameMessage     = "message"
	frameTyping      = "typing"
	frameError       = "error"

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

const (
	msgInvalidFormat   = "Invalid message format"
	msgAuthFailed      = "Authentication failed"
	msgAccessDenied    = "Access denied"
	msgRoomUnavailable = "Room lookup unavailable"
	msgAtCapacity      = "Server is at capacity"
)

// inboundFrame is the union of every client frame. Fields irrelevant to a
// frame's type are ignored.
type inboundFrame struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type statusFrame struct {
	Type string `json:"type"`
}

type joinedRoomFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type messageFrame struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type typingFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// parseFrame decodes one inbound frame. Anything other than a JSON object
// with string-typed fields is rejected.
func parseFrame(raw []byte) (inboundFrame, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return inboundFrame{}, errors.New("frame is not a json object")
	}
	var frame inboundFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return inboundFrame{}, err
	}
	return frame, nil
}

// connState is the protocol loop for one connection. Frames are handled
// strictly in arrival order by the connection's read goroutine.
type connState struct {
	id   session.ConnID
	peer *wsPeer
	deps *handlerDeps
}

func (c *connState) handle(ctx context.Context, raw []byte) {
	frame, err := parseFrame(raw)
	if err != nil {
		c.reply(errorFrame{Type: frameError, Message: msgInvalidFormat})
		return
	}

	ctx, span := c.deps.tracer.Start(ctx, "chat.frame", trace.WithAttributes(
		attribute.String("chat.frame.type", frame.Type),
		attribute.Int64("chat.conn_id", int64(c.id)),
	))
	defer span.End()

	current, ok := c.deps.sessions.Get(c.id)
	if !ok {
		return
	}

	switch frame.Type {
	case frameAuth:
		c.handleAuth(ctx, current, frame.Token)
	case frameJoinRoom:
		c.handleJoin(ctx, current, frame.RoomID)
	case frameMessage:
		c.handleMessage(ctx, current, frame.Content)
	case frameTyping:
		c.handleTyping(ctx, current)
	}
}

func (c *connState) handleAuth(ctx context.Context, current session.Session, token string) {
	if current.State != session.StateUnauthenticated {
		return
	}
	caller, err := c.deps.authenticator.Authenticate(ctx, token)
	if err != nil {
		log.Printf("chat: websocket auth rejected conn=%d err=%v", c.id, err)
		c.reply(errorFrame{Type: frameError, Message: msgAuthFailed})
		return
	}
	identity := session.Identity{UserID: caller.UserID, Username: caller.Username, Role: caller.Role}
	if err := c.deps.sessions.Authenticate(c.id, identity); err != nil {
		return
	}
	c.reply(statusFrame{Type: frameAuthSuccess})
}

func (c *connState) handleJoin(ctx context.Context, current session.Session, roomID string) {
	if current.State == session.StateUnauthenticated {
		return
	}
	if err := c.deps.rooms.authorizeJoin(ctx, roomID, current.Identity.UserID); err != nil {
		switch {
		case errors.Is(err, errRoomAccessDenied):
			c.reply(errorFrame{Type: frameError, Message: msgAccessDenied})
		default:
			log.Printf("chat: room membership check failed user=%q room=%q err=%v", current.Identity.UserID, roomID, err)
			c.reply(errorFrame{Type: frameError, Message: msgRoomUnavailable})
		}
		return
	}
	if err := c.deps.sessions.Join(c.id, roomID); err != nil {
		return
	}
	c.reply(joinedRoomFrame{Type: frameJoinedRoom, RoomID: roomID})
}

func (c *connState) handleMessage(ctx context.Context, current session.Session, content string) {
	if current.State != session.StateInRoom {
		return
	}
	c.broadcast(ctx, current.RoomID, messageFrame{
		Type:      frameMessage,
		Username:  current.Identity.Username,
		Content:   content,
		Timestamp: c.deps.now().UTC().Format(timestampLayout),
	}, session.NoConn)
}

func (c *connState) handleTyping(ctx context.Context, current session.Session) {
	if current.State != session.StateInRoom {
		return
	}
	c.broadcast(ctx, current.RoomID, typingFrame{Type: frameTyping, Username: current.Identity.Username}, c.id)
}

func (c *connState) broadcast(ctx context.Context, roomID string, payload any, exclude session.ConnID) {
	if _, err := c.deps.fanout.Fanout(ctx, roomID, payload, exclude); err != nil {
		log.Printf("chat: fanout failed room=%q conn=%d err=%v", roomID, c.id, err)
	}
}

// reply sends a frame to this connection only.
func (c *connState) reply(frame any) {
	sendFrame(c.peer, frame)
}

func sendFrame(peer *wsPeer, frame any) {
	body, err := json.Marshal(frame)
	if err != nil {
		log.Printf("chat: failed to marshal websocket frame: %v", err)
		return
	}
	if err := peer.Send(body); err != nil && !errors.Is(err, session.ErrClosed) {
		log.Printf("chat: websocket frame dropped remote=%q err=%v", remoteAddr(peer.conn), err)
	}
}
