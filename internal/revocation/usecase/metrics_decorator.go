package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/metrics"
	outboxDomain "github.com/allisson/didregistry/internal/outbox/domain"
)

const metricsDomain = "revocation"

// cascadeUseCaseWithMetrics decorates CascadeUseCase with metrics instrumentation.
type cascadeUseCaseWithMetrics struct {
	next    CascadeUseCase
	metrics metrics.BusinessMetrics
}

// NewCascadeUseCaseWithMetrics wraps a CascadeUseCase with metrics recording.
func NewCascadeUseCaseWithMetrics(useCase CascadeUseCase, m metrics.BusinessMetrics) CascadeUseCase {
	return &cascadeUseCaseWithMetrics{next: useCase, metrics: m}
}

func (c *cascadeUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	c.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// outcomes counts documents per cascade outcome. Reports are returned alongside errors for
// partial failures.
func (c *cascadeUseCaseWithMetrics) outcomes(ctx context.Context, report *Report) {
	if report == nil {
		return
	}
	c.metrics.RecordOutcomes(ctx, metricsDomain, "deactivated", len(report.Deactivated))
	c.metrics.RecordOutcomes(ctx, metricsDomain, "detached", len(report.Detached))
	c.metrics.RecordOutcomes(ctx, metricsDomain, "refreshed", len(report.Refreshed))
	c.metrics.RecordOutcomes(ctx, metricsDomain, "unchanged", report.Unchanged)
	c.metrics.RecordOutcomes(ctx, metricsDomain, "failed", len(report.Failed))
}

func (c *cascadeUseCaseWithMetrics) Run(ctx context.Context, certificateID uuid.UUID) (*Report, error) {
	start := time.Now()
	report, err := c.next.Run(ctx, certificateID)
	c.observe(ctx, "revocation_cascade", start, err)
	c.outcomes(ctx, report)
	return report, err
}

func (c *cascadeUseCaseWithMetrics) Refresh(ctx context.Context, certificateID uuid.UUID) (*Report, error) {
	start := time.Now()
	report, err := c.next.Refresh(ctx, certificateID)
	c.observe(ctx, "rotation_repair", start, err)
	c.outcomes(ctx, report)
	return report, err
}

// HandleRevoked goes through the decorated Run so outbox deliveries are measured once.
func (c *cascadeUseCaseWithMetrics) HandleRevoked(ctx context.Context, event outboxDomain.CertificateEvent) error {
	_, err := c.Run(ctx, event.CertificateID)
	return err
}

func (c *cascadeUseCaseWithMetrics) HandleRotated(ctx context.Context, event outboxDomain.CertificateEvent) error {
	_, err := c.Refresh(ctx, event.CertificateID)
	return err
}
