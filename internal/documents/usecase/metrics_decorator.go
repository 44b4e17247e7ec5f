package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	"github.com/allisson/didregistry/internal/metrics"
)

const metricsDomain = "documents"

// documentUseCaseWithMetrics decorates DocumentUseCase with metrics instrumentation.
type documentUseCaseWithMetrics struct {
	next    DocumentUseCase
	metrics metrics.BusinessMetrics
}

// NewDocumentUseCaseWithMetrics wraps a DocumentUseCase with metrics recording.
func NewDocumentUseCaseWithMetrics(useCase DocumentUseCase, m metrics.BusinessMetrics) DocumentUseCase {
	return &documentUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (d *documentUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	d.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	d.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (d *documentUseCaseWithMetrics) Create(ctx context.Context, input CreateInput) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Create(ctx, input)
	d.observe(ctx, "document_create", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) UpdateDraft(
	ctx context.Context,
	input UpdateDraftInput,
) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.UpdateDraft(ctx, input)
	d.observe(ctx, "document_update_draft", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) Submit(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Submit(ctx, input)
	d.observe(ctx, "document_submit", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) Approve(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Approve(ctx, input)
	d.observe(ctx, "document_approve", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) Reject(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Reject(ctx, input)
	d.observe(ctx, "document_reject", start, err)
	return doc, err
}

// Publish records metrics for publications, including the signer and registrar round trips.
func (d *documentUseCaseWithMetrics) Publish(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Publish(ctx, input)
	d.observe(ctx, "document_publish", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) Deactivate(
	ctx context.Context,
	input TransitionInput,
) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Deactivate(ctx, input)
	d.observe(ctx, "document_deactivate", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) Get(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.Get(ctx, actor, id)
	d.observe(ctx, "document_get", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) GetByLabel(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	label string,
) (*docDomain.Document, error) {
	start := time.Now()
	doc, err := d.next.GetByLabel(ctx, actor, organizationID, label)
	d.observe(ctx, "document_get_by_label", start, err)
	return doc, err
}

func (d *documentUseCaseWithMetrics) List(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*docDomain.Document, error) {
	start := time.Now()
	docs, err := d.next.List(ctx, actor, organizationID, offset, limit)
	d.observe(ctx, "document_list", start, err)
	return docs, err
}

func (d *documentUseCaseWithMetrics) ListMethods(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) ([]*docDomain.VerificationMethod, error) {
	start := time.Now()
	methods, err := d.next.ListMethods(ctx, actor, id)
	d.observe(ctx, "document_list_methods", start, err)
	return methods, err
}

func (d *documentUseCaseWithMetrics) ListVersions(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) ([]*docDomain.DocumentVersion, error) {
	start := time.Now()
	versions, err := d.next.ListVersions(ctx, actor, id)
	d.observe(ctx, "document_list_versions", start, err)
	return versions, err
}

func (d *documentUseCaseWithMetrics) GetVersion(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
	version int,
) (*docDomain.DocumentVersion, error) {
	start := time.Now()
	v, err := d.next.GetVersion(ctx, actor, id, version)
	d.observe(ctx, "document_get_version", start, err)
	return v, err
}

func (d *documentUseCaseWithMetrics) RefreshCertificate(ctx context.Context, documentID, certificateID uuid.UUID) error {
	start := time.Now()
	err := d.next.RefreshCertificate(ctx, documentID, certificateID)
	d.observe(ctx, "document_refresh_certificate", start, err)
	return err
}

func (d *documentUseCaseWithMetrics) ApplyCertificateRevocation(
	ctx context.Context,
	documentID uuid.UUID,
	cert *certDomain.Certificate,
) (CascadeOutcome, error) {
	start := time.Now()
	outcome, err := d.next.ApplyCertificateRevocation(ctx, documentID, cert)
	d.observe(ctx, "document_apply_revocation", start, err)
	return outcome, err
}
