package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/huddle/internal/services/history/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	rooms, err := second.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("rooms = %d, want 2 after reopen", len(rooms))
	}
}

func TestSeededRooms(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	rooms, err := store.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != "general" || rooms[1].ID != "private" {
		t.Fatalf("rooms = %+v", rooms)
	}
	if got := rooms[0].Members; len(got) != 3 || got[0] != "user1" || got[2] != "user3" {
		t.Fatalf("general members = %v", got)
	}

	private, err := store.GetRoom(ctx, "private")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if private.Type != "private" || !private.HasMember("user1") || private.HasMember("user2") {
		t.Fatalf("private = %+v", private)
	}
	if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, storage.ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestIsMember(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	tests := []struct {
		room, user string
		want       bool
	}{
		{"general", "user2", true},
		{"private", "user1", true},
		{"private", "user2", false},
		{"missing", "user1", false},
	}
	for _, tt := range tests {
		got, err := store.IsMember(ctx, tt.room, tt.user)
		if err != nil {
			t.Fatalf("IsMember(%q, %q): %v", tt.room, tt.user, err)
		}
		if got != tt.want {
			t.Fatalf("IsMember(%q, %q) = %v, want %v", tt.room, tt.user, got, tt.want)
		}
	}
}

func TestMessageLifecycle(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	sent := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	msgs, total, err := store.ListMessages(ctx, "general", 0, 50)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if total != 2 || len(msgs) != 2 || msgs[0].Content != "Welcome to the chat!" {
		t.Fatalf("seed messages = %+v total=%d", msgs, total)
	}

	if err := store.PutMessage(ctx, storage.Message{
		ID: "m-1", RoomID: "general", UserID: "user3", Username: "charlie", Content: "hi", Timestamp: sent,
	}); err != nil {
		t.Fatalf("put message: %v", err)
	}

	edited, err := store.EditMessage(ctx, "general", "m-1", "hello", "user3", sent.Add(time.Minute))
	if err != nil {
		t.Fatalf("edit message: %v", err)
	}
	if edited.Content != "hello" || !edited.Edited || !edited.LastEditedAt.Equal(sent.Add(time.Minute)) {
		t.Fatalf("edited = %+v", edited)
	}
	if len(edited.Edits) != 1 || edited.Edits[0].PreviousContent != "hi" || edited.Edits[0].EditedBy != "user3" {
		t.Fatalf("edits = %+v", edited.Edits)
	}

	page, total, err := store.ListMessages(ctx, "general", 1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 3 || len(page) != 1 || page[0].ID != "2" {
		t.Fatalf("page = %+v total=%d", page, total)
	}

	if err := store.DeleteMessage(ctx, "general", "m-1", "user3", sent.Add(2*time.Minute)); err != nil {
		t.Fatalf("delete message: %v", err)
	}
	if _, err := store.GetMessage(ctx, "general", "m-1"); !errors.Is(err, storage.ErrMessageNotFound) {
		t.Fatalf("get deleted err = %v, want ErrMessageNotFound", err)
	}
	if err := store.DeleteMessage(ctx, "general", "m-1", "user3", sent); !errors.Is(err, storage.ErrMessageNotFound) {
		t.Fatalf("second delete err = %v, want ErrMessageNotFound", err)
	}
	if _, err := store.EditMessage(ctx, "general", "m-1", "again", "user3", sent); !errors.Is(err, storage.ErrMessageNotFound) {
		t.Fatalf("edit deleted err = %v, want ErrMessageNotFound", err)
	}

	_, total, err = store.ListMessages(ctx, "general", 0, 50)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if total != 2 {
		t.Fatalf("total after delete = %d, want 2", total)
	}
}

func TestGetMessageScopedToRoom(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.GetMessage(context.Background(), "general", "3"); !errors.Is(err, storage.ErrMessageNotFound) {
		t.Fatalf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	store, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if ok, err := store.IsMember(context.Background(), "general", "user1"); err != nil || !ok {
		t.Fatalf("IsMember = %v, %v", ok, err)
	}
}
