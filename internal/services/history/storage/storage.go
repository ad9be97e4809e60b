// Package storage defines the room and message records shared by the history
// routes and the realtime room directory.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/huddle/internal/platform/errors"
)

var (
	// ErrRoomNotFound indicates an unknown room id.
	ErrRoomNotFound = apperrors.New(apperrors.CodeRoomNotFound, "Room not found")
	// ErrMessageNotFound indicates an unknown or deleted message.
	ErrMessageNotFound = apperrors.New(apperrors.CodeMessageNotFound, "Message not found")
)

// Room is a chat room and its member list.
type Room struct {
	ID        string
	Name      string
	Type      string
	CreatedBy string
	Members   []string
	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the room.
func (r Room) HasMember(userID string) bool {
	for _, member := range r.Members {
		if member == userID {
			return true
		}
	}
	return false
}

// Message is a persisted room message.
type Message struct {
	ID           string
	RoomID       string
	UserID       string
	Username     string
	Content      string
	Timestamp    time.Time
	Edited       bool
	LastEditedAt time.Time
	Edits        []Edit
}

// Edit records the content a message held before an edit.
type Edit struct {
	PreviousContent string
	EditedAt        time.Time
	EditedBy        string
}

// Store persists rooms and messages.
type Store interface {
	ListRooms(ctx context.Context) ([]Room, error)
	GetRoom(ctx context.Context, roomID string) (Room, error)
	// IsMember reports membership. Unknown rooms report false without error.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	// ListMessages returns a page of live messages in send order and the
	// total number of live messages in the room.
	ListMessages(ctx context.Context, roomID string, offset, limit int) ([]Message, int, error)
	GetMessage(ctx context.Context, roomID, messageID string) (Message, error)
	PutMessage(ctx context.Context, msg Message) error
	EditMessage(ctx context.Context, roomID, messageID, content, editedBy string, at time.Time) (Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID, deletedBy string, at time.Time) error
}
