package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/huddle/internal/services/history/storage"
)

const messageColumns = `id, room_id, user_id, username, content, created_at, edited, last_edited_at`

// ListMessages returns up to limit live messages starting at offset, and the
// room's live message total.
func (s *Store) ListMessages(ctx context.Context, roomID string, offset, limit int) ([]storage.Message, int, error) {
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = ? AND deleted = 0`, roomID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE room_id = ? AND deleted = 0
		 ORDER BY created_at, rowid
		 LIMIT ? OFFSET ?`,
		roomID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	messages := []storage.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	_ = rows.Close()

	for i := range messages {
		edits, err := s.messageEdits(ctx, messages[i].ID)
		if err != nil {
			return nil, 0, err
		}
		messages[i].Edits = edits
	}
	return messages, total, nil
}

// GetMessage returns one live message with its edit history.
func (s *Store) GetMessage(ctx context.Context, roomID, messageID string) (storage.Message, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ? AND room_id = ? AND deleted = 0`,
		messageID, roomID,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Message{}, storage.ErrMessageNotFound
	}
	if err != nil {
		return storage.Message{}, err
	}
	msg.Edits, err = s.messageEdits(ctx, msg.ID)
	if err != nil {
		return storage.Message{}, err
	}
	return msg, nil
}

// PutMessage inserts a new message.
func (s *Store) PutMessage(ctx context.Context, msg storage.Message) error {
	if strings.TrimSpace(msg.ID) == "" {
		return fmt.Errorf("message id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, user_id, username, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, msg.UserID, msg.Username, msg.Content, toMillis(msg.Timestamp),
	); err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// EditMessage replaces the content of a live message and appends the prior
// content to its edit history in one transaction.
func (s *Store) EditMessage(ctx context.Context, roomID, messageID, content, editedBy string, at time.Time) (storage.Message, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Message{}, fmt.Errorf("begin edit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.QueryRowContext(ctx,
		`SELECT content FROM messages WHERE id = ? AND room_id = ? AND deleted = 0`, messageID, roomID,
	).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Message{}, storage.ErrMessageNotFound
	}
	if err != nil {
		return storage.Message{}, fmt.Errorf("load message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_edits (message_id, previous_content, edited_at, edited_by) VALUES (?, ?, ?, ?)`,
		messageID, previous, toMillis(at), editedBy,
	); err != nil {
		return storage.Message{}, fmt.Errorf("record edit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET content = ?, edited = 1, last_edited_at = ? WHERE id = ?`,
		content, toMillis(at), messageID,
	); err != nil {
		return storage.Message{}, fmt.Errorf("update message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Message{}, fmt.Errorf("commit edit: %w", err)
	}
	return s.GetMessage(ctx, roomID, messageID)
}

// DeleteMessage soft deletes a live message.
func (s *Store) DeleteMessage(ctx context.Context, roomID, messageID, deletedBy string, at time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE messages SET deleted = 1, deleted_at = ?, deleted_by = ? WHERE id = ? AND room_id = ? AND deleted = 0`,
		toMillis(at), deletedBy, messageID, roomID,
	)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if affected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

func (s *Store) messageEdits(ctx context.Context, messageID string) ([]storage.Edit, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT previous_content, edited_at, edited_by FROM message_edits WHERE message_id = ? ORDER BY id`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list message edits: %w", err)
	}
	defer rows.Close()

	var edits []storage.Edit
	for rows.Next() {
		var (
			edit     storage.Edit
			editedAt int64
		)
		if err := rows.Scan(&edit.PreviousContent, &editedAt, &edit.EditedBy); err != nil {
			return nil, fmt.Errorf("scan message edit: %w", err)
		}
		edit.EditedAt = fromMillis(editedAt)
		edits = append(edits, edit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list message edits: %w", err)
	}
	return edits, nil
}

func scanMessage(row scanner) (storage.Message, error) {
	var (
		msg          storage.Message
		createdAt    int64
		edited       int
		lastEditedAt sql.NullInt64
	)
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Username, &msg.Content, &createdAt, &edited, &lastEditedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Message{}, err
		}
		return storage.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.Timestamp = fromMillis(createdAt)
	msg.Edited = edited != 0
	if lastEditedAt.Valid {
		msg.LastEditedAt = fromMillis(lastEditedAt.Int64)
	}
	return msg, nil
}
