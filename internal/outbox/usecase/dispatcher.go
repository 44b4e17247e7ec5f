package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/allisson/didregistry/internal/outbox/domain"
)

// HandlerFunc handles the payload of one event type. Handlers must be idempotent because
// delivery is at least once.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher routes events to the handler registered for their type.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register binds fn to eventType, replacing any previous handler.
func (d *Dispatcher) Register(eventType string, fn HandlerFunc) {
	d.handlers[eventType] = fn
}

// Process implements EventProcessor. Events without a handler are logged and acknowledged.
func (d *Dispatcher) Process(ctx context.Context, event *domain.OutboxEvent) error {
	fn, ok := d.handlers[event.EventType]
	if !ok {
		d.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		return nil
	}
	if err := fn(ctx, []byte(event.Payload)); err != nil {
		return fmt.Errorf("%s handler: %w", event.EventType, err)
	}
	return nil
}

// Decode is a helper for handlers taking a typed payload.
func Decode[T any](fn func(ctx context.Context, payload T) error) HandlerFunc {
	return func(ctx context.Context, raw []byte) error {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}
		return fn(ctx, payload)
	}
}
