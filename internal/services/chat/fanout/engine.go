// Package fanout delivers one payload to every connection bound to a room.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/louisbranch/huddle/internal/services/chat/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Directory resolves the current recipients of a room.
type Directory interface {
	Recipients(roomID string, exclude session.ConnID) []session.Recipient
}

// Result counts the outcome of one fanout.
type Result struct {
	Delivered int
	// Skipped counts recipients that closed between the snapshot and delivery.
	Skipped int
	Failed  int
}

// Engine broadcasts payloads over a recipient directory.
type Engine struct {
	directory Directory
	tracer    trace.Tracer
}

// New builds an engine over directory.
func New(directory Directory) *Engine {
	return &Engine{
		directory: directory,
		tracer:    otel.Tracer("github.com/louisbranch/huddle/internal/services/chat/fanout"),
	}
}

// Fanout serializes payload once and hands it to every connection currently
// in roomID except exclude. Delivery is best-effort: one recipient's failure
// is logged and never affects the rest or the caller.
func (e *Engine) Fanout(ctx context.Context, roomID string, payload any, exclude session.ConnID) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal fanout payload: %w", err)
	}

	_, span := e.tracer.Start(ctx, "chat.fanout", trace.WithAttributes(attribute.String("chat.room_id", roomID)))
	defer span.End()

	var result Result
	for _, recipient := range e.directory.Recipients(roomID, exclude) {
		if err := recipient.Sender.Send(body); err != nil {
			if errors.Is(err, session.ErrClosed) {
				result.Skipped++
				continue
			}
			result.Failed++
			log.Printf("chat: fanout delivery failed room=%q conn=%d err=%v", roomID, recipient.ID, err)
			continue
		}
		result.Delivered++
	}

	span.SetAttributes(
		attribute.Int("chat.fanout.delivered", result.Delivered),
		attribute.Int("chat.fanout.skipped", result.Skipped),
		attribute.Int("chat.fanout.failed", result.Failed),
	)
	return result, nil
}
