// Package sqlite persists rooms and messages in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/huddle/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/huddle/internal/services/history/storage"
	"github.com/louisbranch/huddle/internal/services/history/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements storage.Store over SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens the history database at path, creating its directory when
// needed, and applies bundled migrations. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := memoryPath
	if path != memoryPath {
		cleanPath := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		dsn = cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == memoryPath {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

const roomColumns = `id, name, type, created_by, created_at`

// ListRooms returns every room ordered by creation, members included.
func (s *Store) ListRooms(ctx context.Context) ([]storage.Room, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var rooms []storage.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	_ = rows.Close()

	for i := range rooms {
		members, err := s.roomMembers(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].Members = members
	}
	return rooms, nil
}

// GetRoom returns one room with its members.
func (s *Store) GetRoom(ctx context.Context, roomID string) (storage.Room, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, roomID)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Room{}, storage.ErrRoomNotFound
	}
	if err != nil {
		return storage.Room{}, err
	}
	room.Members, err = s.roomMembers(ctx, roomID)
	if err != nil {
		return storage.Room{}, err
	}
	return room, nil
}

// IsMember reports whether userID belongs to roomID.
func (s *Store) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var found int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check room member: %w", err)
	}
	return true, nil
}

func (s *Store) roomMembers(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT user_id FROM room_members WHERE room_id = ? ORDER BY position, user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan room member: %w", err)
		}
		members = append(members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	return members, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (storage.Room, error) {
	var (
		room      storage.Room
		createdAt int64
	)
	if err := row.Scan(&room.ID, &room.Name, &room.Type, &room.CreatedBy, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Room{}, err
		}
		return storage.Room{}, fmt.Errorf("scan room: %w", err)
	}
	room.CreatedAt = fromMillis(createdAt)
	return room, nil
}
