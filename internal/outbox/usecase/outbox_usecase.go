// Package usecase implements the transactional outbox: producers enqueue work items inside
// their own transaction and a pool of workers delivers them at least once.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/didregistry/internal/database"
	"github.com/allisson/didregistry/internal/outbox/domain"
)

// Config holds outbox use case configuration
type Config struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	RetryInterval time.Duration
	Workers       int
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int, now time.Time) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
}

// EventProcessor defines the interface for processing different event types
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) error
}

// OutboxUseCase implements business logic for processing outbox events
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
	now            func() time.Time
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *OutboxUseCase {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start runs config.Workers polling loops until ctx is cancelled. Concurrent workers never
// see the same event because batches are locked with SKIP LOCKED.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox event processor",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
		slog.Int("workers", uc.config.Workers),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < uc.config.Workers; i++ {
		worker := i
		g.Go(func() error {
			return uc.poll(ctx, worker)
		})
	}

	err := g.Wait()
	uc.logger.Info("stopping outbox event processor")
	return err
}

func (uc *OutboxUseCase) poll(ctx context.Context, worker int) error {
	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil && ctx.Err() == nil {
				uc.logger.Error("failed to process events", slog.Int("worker", worker), slog.Any("error", err))
			}
		}
	}
}

// ProcessEvents retrieves and processes pending events from the outbox in a transaction.
// A failed event is rescheduled RetryInterval*retries later and marked failed once it
// reaches MaxRetries.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.outboxRepo.GetPendingEvents(ctx, uc.config.BatchSize, uc.now())
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		uc.logger.Debug("processing events", slog.Int("count", len(events)))

		for _, event := range events {
			now := uc.now()
			event.UpdatedAt = now

			if err := uc.processEvent(ctx, event); err != nil {
				uc.logger.Error("failed to process event",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("retries", event.Retries+1),
					slog.Any("error", err),
				)

				event.Retries++
				errorMsg := err.Error()
				event.LastError = &errorMsg
				event.AvailableAt = now.Add(uc.config.RetryInterval * time.Duration(event.Retries))

				if event.Retries >= uc.config.MaxRetries {
					event.Status = domain.OutboxEventStatusFailed
				}

				if err := uc.outboxRepo.Update(ctx, event); err != nil {
					return err
				}
				continue
			}

			event.Status = domain.OutboxEventStatusProcessed
			event.ProcessedAt = &now

			if err := uc.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
		}

		return nil
	})
}

func (uc *OutboxUseCase) processEvent(ctx context.Context, event *domain.OutboxEvent) error {
	uc.logger.Info("processing event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
	)

	return uc.eventProcessor.Process(ctx, event)
}
