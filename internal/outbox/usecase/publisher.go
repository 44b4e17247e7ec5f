package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/outbox/domain"
)

// Publisher enqueues work items. Publish writes through the transaction carried by ctx, so
// an item is delivered only if the surrounding mutation commits.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type outboxPublisher struct {
	outboxRepo OutboxEventRepository
}

// NewPublisher returns a Publisher writing to the outbox table.
func NewPublisher(outboxRepo OutboxEventRepository) Publisher {
	return &outboxPublisher{outboxRepo: outboxRepo}
}

func (p *outboxPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox payload")
	}

	now := time.Now().UTC()
	event := &domain.OutboxEvent{
		ID:          uuid.Must(uuid.NewV7()),
		EventType:   eventType,
		Payload:     string(body),
		Status:      domain.OutboxEventStatusPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return p.outboxRepo.Create(ctx, event)
}
