package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	"github.com/allisson/didregistry/internal/metrics"
)

const metricsDomain = "certificates"

// certificateUseCaseWithMetrics decorates CertificateUseCase with metrics instrumentation.
type certificateUseCaseWithMetrics struct {
	next    CertificateUseCase
	metrics metrics.BusinessMetrics
}

// NewCertificateUseCaseWithMetrics wraps a CertificateUseCase with metrics recording.
func NewCertificateUseCaseWithMetrics(useCase CertificateUseCase, m metrics.BusinessMetrics) CertificateUseCase {
	return &certificateUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *certificateUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	c.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// Upload records metrics for certificate uploads.
func (c *certificateUseCaseWithMetrics) Upload(
	ctx context.Context,
	input UploadInput,
) (*certDomain.Certificate, error) {
	start := time.Now()
	cert, err := c.next.Upload(ctx, input)
	c.observe(ctx, "certificate_upload", start, err)
	return cert, err
}

// Rotate records metrics for certificate rotations.
func (c *certificateUseCaseWithMetrics) Rotate(
	ctx context.Context,
	input RotateInput,
) (*certDomain.Certificate, error) {
	start := time.Now()
	cert, err := c.next.Rotate(ctx, input)
	c.observe(ctx, "certificate_rotate", start, err)
	return cert, err
}

// Revoke records metrics for certificate revocations.
func (c *certificateUseCaseWithMetrics) Revoke(
	ctx context.Context,
	input RevokeInput,
) (*certDomain.Certificate, error) {
	start := time.Now()
	cert, err := c.next.Revoke(ctx, input)
	c.observe(ctx, "certificate_revoke", start, err)
	return cert, err
}

func (c *certificateUseCaseWithMetrics) Get(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) (*certDomain.Certificate, error) {
	start := time.Now()
	cert, err := c.next.Get(ctx, actor, id)
	c.observe(ctx, "certificate_get", start, err)
	return cert, err
}

func (c *certificateUseCaseWithMetrics) List(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*certDomain.Certificate, error) {
	start := time.Now()
	certs, err := c.next.List(ctx, actor, organizationID, offset, limit)
	c.observe(ctx, "certificate_list", start, err)
	return certs, err
}

func (c *certificateUseCaseWithMetrics) ListVersions(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) ([]*certDomain.CertificateVersion, error) {
	start := time.Now()
	versions, err := c.next.ListVersions(ctx, actor, id)
	c.observe(ctx, "certificate_list_versions", start, err)
	return versions, err
}

// ExpireDue records metrics for the expiry sweep.
func (c *certificateUseCaseWithMetrics) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	count, err := c.next.ExpireDue(ctx, now)
	c.observe(ctx, "certificate_expire", start, err)
	return count, err
}
