// Package usecase fans certificate changes out to every document that references the
// certificate: revocation deactivates or detaches, rotation refreshes working bodies.
package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	"github.com/allisson/didregistry/internal/database"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	docUseCase "github.com/allisson/didregistry/internal/documents/usecase"
	apperrors "github.com/allisson/didregistry/internal/errors"
	outboxDomain "github.com/allisson/didregistry/internal/outbox/domain"
)

// DefaultConcurrency bounds parallel document repairs when none is configured.
const DefaultConcurrency = 4

// DocumentFinder lists documents affected by a certificate.
type DocumentFinder interface {
	ListReferencingCertificate(ctx context.Context, certificateID uuid.UUID) ([]*docDomain.Document, error)
}

// CertificateReader loads the certificate that triggered the cascade.
type CertificateReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error)
}

// DocumentRepairer applies a certificate change to one document under its row lock.
type DocumentRepairer interface {
	ApplyCertificateRevocation(
		ctx context.Context,
		documentID uuid.UUID,
		cert *certDomain.Certificate,
	) (docUseCase.CascadeOutcome, error)
	RefreshCertificate(ctx context.Context, documentID, certificateID uuid.UUID) error
}

// Report summarizes one cascade run.
type Report struct {
	CertificateID uuid.UUID            `json:"certificate_id"`
	Deactivated   []uuid.UUID          `json:"deactivated"`
	Detached      []uuid.UUID          `json:"detached"`
	Refreshed     []uuid.UUID          `json:"refreshed"`
	Unchanged     int                  `json:"unchanged"`
	Failed        map[uuid.UUID]string `json:"failed"`
}

// CascadeUseCase runs certificate fan-outs.
type CascadeUseCase interface {
	// Run applies a revocation to every referencing document. Per-document failures do not
	// stop the others; they are reported and returned joined so the work item is retried.
	Run(ctx context.Context, certificateID uuid.UUID) (*Report, error)

	// Refresh reassembles the working body of every document using a rotated certificate.
	Refresh(ctx context.Context, certificateID uuid.UUID) (*Report, error)

	// HandleRevoked and HandleRotated are the outbox handlers for certificate events.
	HandleRevoked(ctx context.Context, event outboxDomain.CertificateEvent) error
	HandleRotated(ctx context.Context, event outboxDomain.CertificateEvent) error
}

type cascadeUseCase struct {
	finder      DocumentFinder
	certReader  CertificateReader
	repairer    DocumentRepairer
	concurrency int
	logger      *slog.Logger
}

// NewCascadeUseCase creates a new CascadeUseCase.
func NewCascadeUseCase(
	finder DocumentFinder,
	certReader CertificateReader,
	repairer DocumentRepairer,
	concurrency int,
	logger *slog.Logger,
) CascadeUseCase {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &cascadeUseCase{
		finder:      finder,
		certReader:  certReader,
		repairer:    repairer,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (c *cascadeUseCase) Run(ctx context.Context, certificateID uuid.UUID) (*Report, error) {
	cert, err := c.certReader.GetByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.Status != certDomain.StatusRevoked {
		return nil, apperrors.Wrap(apperrors.ErrStateTransition, "certificate "+cert.ID.String()+" is not revoked")
	}

	report, err := c.fanOut(ctx, certificateID, func(ctx context.Context, doc *docDomain.Document, r *tally) error {
		outcome, err := c.repairer.ApplyCertificateRevocation(ctx, doc.ID, cert)
		if err != nil {
			return err
		}
		r.add(doc.ID, outcome)
		return nil
	})

	c.logger.Info("revocation cascade finished",
		slog.String("certificate_id", certificateID.String()),
		slog.Int("deactivated", len(report.Deactivated)),
		slog.Int("detached", len(report.Detached)),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("failed", len(report.Failed)),
	)
	return report, err
}

func (c *cascadeUseCase) Refresh(ctx context.Context, certificateID uuid.UUID) (*Report, error) {
	report, err := c.fanOut(ctx, certificateID, func(ctx context.Context, doc *docDomain.Document, r *tally) error {
		if err := c.repairer.RefreshCertificate(ctx, doc.ID, certificateID); err != nil {
			return err
		}
		r.refreshed(doc.ID)
		return nil
	})

	c.logger.Info("rotation repair finished",
		slog.String("certificate_id", certificateID.String()),
		slog.Int("documents", len(report.Refreshed)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, err
}

func (c *cascadeUseCase) HandleRevoked(ctx context.Context, event outboxDomain.CertificateEvent) error {
	_, err := c.Run(ctx, event.CertificateID)
	return err
}

func (c *cascadeUseCase) HandleRotated(ctx context.Context, event outboxDomain.CertificateEvent) error {
	_, err := c.Refresh(ctx, event.CertificateID)
	return err
}

// fanOut runs fn for every referencing document with bounded parallelism. fn errors are
// collected rather than cancelling the group.
func (c *cascadeUseCase) fanOut(
	ctx context.Context,
	certificateID uuid.UUID,
	fn func(ctx context.Context, doc *docDomain.Document, r *tally) error,
) (*Report, error) {
	t := &tally{report: &Report{CertificateID: certificateID, Failed: map[uuid.UUID]string{}}}

	docs, err := c.finder.ListReferencingCertificate(ctx, certificateID)
	if err != nil {
		return t.report, err
	}

	// Each repair opens its own transaction; none may reuse the caller's, such as the
	// outbox claim, from several goroutines.
	workCtx := database.WithoutTx(ctx)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, doc := range docs {
		g.Go(func() error {
			if err := fn(workCtx, doc, t); err != nil {
				c.logger.Error("document repair failed",
					slog.String("certificate_id", certificateID.String()),
					slog.String("document_id", doc.ID.String()),
					slog.Any("error", err),
				)
				t.fail(doc.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return t.report, t.joined()
}

// tally guards the report shared by the fan-out goroutines.
type tally struct {
	mu     sync.Mutex
	report *Report
	errs   []error
}

func (t *tally) add(id uuid.UUID, outcome docUseCase.CascadeOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch outcome {
	case docUseCase.OutcomeDeactivated:
		t.report.Deactivated = append(t.report.Deactivated, id)
	case docUseCase.OutcomeDetached:
		t.report.Detached = append(t.report.Detached, id)
	default:
		t.report.Unchanged++
	}
}

func (t *tally) refreshed(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Refreshed = append(t.report.Refreshed, id)
}

func (t *tally) fail(id uuid.UUID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Failed[id] = err.Error()
	t.errs = append(t.errs, apperrors.Wrap(err, "document "+id.String()))
}

func (t *tally) joined() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return apperrors.Join(t.errs...)
}
