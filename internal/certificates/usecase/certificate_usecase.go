package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	certService "github.com/allisson/didregistry/internal/certificates/service"
	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
	outboxDomain "github.com/allisson/didregistry/internal/outbox/domain"
	customValidation "github.com/allisson/didregistry/internal/validation"
)

const (
	initialChangeSummary = "Initial upload"
	expireBatchSize      = 100
)

type certificateUseCase struct {
	txManager  database.TxManager
	certRepo   CertificateRepository
	orgLocker  OrganizationLocker
	parser     CertificateParser
	authorizer authz.Authorizer
	audit      auditUseCase.Recorder
	events     EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewCertificateUseCase creates a new CertificateUseCase.
func NewCertificateUseCase(
	txManager database.TxManager,
	certRepo CertificateRepository,
	orgLocker OrganizationLocker,
	parser CertificateParser,
	authorizer authz.Authorizer,
	audit auditUseCase.Recorder,
	events EventPublisher,
	logger *slog.Logger,
) CertificateUseCase {
	return &certificateUseCase{
		txManager:  txManager,
		certRepo:   certRepo,
		orgLocker:  orgLocker,
		parser:     parser,
		authorizer: authorizer,
		audit:      audit,
		events:     events,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (c *certificateUseCase) Upload(ctx context.Context, input UploadInput) (*certDomain.Certificate, error) {
	input.Label = strings.TrimSpace(input.Label)
	err := validation.ValidateStruct(&input,
		validation.Field(&input.OrganizationID, customValidation.RequiredUUID),
		validation.Field(&input.Label, validation.Required, validation.Length(1, 255)),
		validation.Field(&input.PEM, validation.Required, customValidation.CertificatePEM),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	if err := c.authorizer.Authorize(ctx, input.Actor, input.OrganizationID, authz.PermMutateCertificates); err != nil {
		return nil, err
	}

	now := c.now()
	parsed, err := c.parse(ctx, input.PEM, now)
	if err != nil {
		return nil, err
	}

	cert := &certDomain.Certificate{
		ID:             uuid.Must(uuid.NewV7()),
		OrganizationID: input.OrganizationID,
		Label:          input.Label,
		Status:         certDomain.StatusActive,
		Version:        1,
		CreatedBy:      input.Actor.IDPtr(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	cert.ApplyParsed(input.PEM, parsed)

	err = c.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.orgLocker.LockByID(ctx, input.OrganizationID); err != nil {
			return err
		}
		if err := c.ensureFingerprintFree(ctx, cert.OrganizationID, cert.Fingerprint, uuid.Nil); err != nil {
			return err
		}
		if err := c.ensureLabelFree(ctx, cert.OrganizationID, cert.Label); err != nil {
			return err
		}
		if err := c.certRepo.Create(ctx, cert); err != nil {
			return err
		}
		if err := c.certRepo.CreateVersion(ctx, cert.Snapshot(initialChangeSummary, cert.CreatedBy, now)); err != nil {
			return err
		}
		return c.record(ctx, input.Actor, auditDomain.ActionCertUploaded, cert, false, map[string]any{
			"label":       cert.Label,
			"fingerprint": cert.Fingerprint,
			"version":     cert.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("certificate uploaded",
		slog.String("certificate_id", cert.ID.String()),
		slog.String("organization_id", cert.OrganizationID.String()),
		slog.String("fingerprint", cert.Fingerprint),
	)
	return cert, nil
}

// Rotate parses the new PEM before taking any lock so a slow parser never holds the row.
// The previous key material stays readable as the version row written when it went live.
func (c *certificateUseCase) Rotate(ctx context.Context, input RotateInput) (*certDomain.Certificate, error) {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.CertificateID, customValidation.RequiredUUID),
		validation.Field(&input.PEM, validation.Required, customValidation.CertificatePEM),
		validation.Field(&input.ChangeSummary, validation.Length(0, 1000)),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	current, err := c.certRepo.GetByID(ctx, input.CertificateID)
	if err != nil {
		return nil, err
	}
	if err := c.authorizer.Authorize(ctx, input.Actor, current.OrganizationID, authz.PermMutateCertificates); err != nil {
		return nil, err
	}
	if current.Status == certDomain.StatusRevoked {
		return nil, certDomain.ErrCertificateRevoked
	}

	now := c.now()
	parsed, err := c.parse(ctx, input.PEM, now)
	if err != nil {
		return nil, err
	}

	var cert *certDomain.Certificate
	err = c.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.orgLocker.LockByID(ctx, current.OrganizationID); err != nil {
			return err
		}

		locked, err := c.certRepo.GetByIDForUpdate(ctx, input.CertificateID)
		if err != nil {
			return err
		}
		if locked.Status == certDomain.StatusRevoked {
			return certDomain.ErrCertificateRevoked
		}
		if err := c.ensureFingerprintFree(ctx, locked.OrganizationID, parsed.Fingerprint, locked.ID); err != nil {
			return err
		}

		previousVersion := locked.Version
		previousFingerprint := locked.Fingerprint

		locked.ApplyParsed(input.PEM, parsed)
		locked.Version++
		locked.Status = certDomain.StatusActive
		locked.UpdatedAt = now

		if err := c.certRepo.Update(ctx, locked); err != nil {
			return err
		}
		if err := c.certRepo.CreateVersion(ctx, locked.Snapshot(input.ChangeSummary, input.Actor.IDPtr(), now)); err != nil {
			return err
		}
		if err := c.record(ctx, input.Actor, auditDomain.ActionCertRotated, locked, false, map[string]any{
			"label":                locked.Label,
			"previous_version":     previousVersion,
			"version":              locked.Version,
			"previous_fingerprint": previousFingerprint,
			"fingerprint":          locked.Fingerprint,
			"change_summary":       input.ChangeSummary,
		}); err != nil {
			return err
		}

		cert = locked
		return c.events.Publish(ctx, outboxDomain.EventCertificateRotated, outboxDomain.CertificateEvent{
			CertificateID:  locked.ID,
			OrganizationID: locked.OrganizationID,
			Version:        locked.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("certificate rotated",
		slog.String("certificate_id", cert.ID.String()),
		slog.Int("version", cert.Version),
	)
	return cert, nil
}

// Revoke is terminal. Dependent documents are handled by the cascade after commit.
func (c *certificateUseCase) Revoke(ctx context.Context, input RevokeInput) (*certDomain.Certificate, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	err := validation.ValidateStruct(&input,
		validation.Field(&input.CertificateID, customValidation.RequiredUUID),
		validation.Field(&input.Reason, validation.Length(0, 1000)),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	current, err := c.certRepo.GetByID(ctx, input.CertificateID)
	if err != nil {
		return nil, err
	}
	if err := c.authorizer.Authorize(ctx, input.Actor, current.OrganizationID, authz.PermRevokeCertificates); err != nil {
		return nil, err
	}

	var cert *certDomain.Certificate
	err = c.txManager.WithTx(ctx, func(ctx context.Context) error {
		locked, err := c.certRepo.GetByIDForUpdate(ctx, input.CertificateID)
		if err != nil {
			return err
		}
		if locked.Status == certDomain.StatusRevoked {
			return certDomain.ErrCertificateRevoked
		}

		now := c.now()
		locked.Status = certDomain.StatusRevoked
		locked.RevokedAt = &now
		locked.RevokedBy = input.Actor.IDPtr()
		locked.RevocationReason = input.Reason
		locked.UpdatedAt = now

		if err := c.certRepo.Update(ctx, locked); err != nil {
			return err
		}
		if err := c.record(ctx, input.Actor, auditDomain.ActionCertRevoked, locked, false, map[string]any{
			"label":       locked.Label,
			"fingerprint": locked.Fingerprint,
			"reason":      locked.RevocationReason,
		}); err != nil {
			return err
		}

		cert = locked
		return c.events.Publish(ctx, outboxDomain.EventCertificateRevoked, outboxDomain.CertificateEvent{
			CertificateID:  locked.ID,
			OrganizationID: locked.OrganizationID,
			Version:        locked.Version,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("certificate revoked",
		slog.String("certificate_id", cert.ID.String()),
		slog.String("organization_id", cert.OrganizationID.String()),
	)
	return cert, nil
}

func (c *certificateUseCase) Get(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) (*certDomain.Certificate, error) {
	cert, err := c.certRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.authorizer.Authorize(ctx, actor, cert.OrganizationID, authz.PermViewCertificates); err != nil {
		return nil, err
	}
	return cert, nil
}

func (c *certificateUseCase) List(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*certDomain.Certificate, error) {
	if err := c.authorizer.Authorize(ctx, actor, organizationID, authz.PermViewCertificates); err != nil {
		return nil, err
	}
	return c.certRepo.List(ctx, organizationID, offset, limit)
}

func (c *certificateUseCase) ListVersions(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) ([]*certDomain.CertificateVersion, error) {
	if _, err := c.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return c.certRepo.ListVersions(ctx, id)
}

// ExpireDue re-checks each candidate under its row lock so a concurrent rotation to a fresh
// certificate is not overwritten.
func (c *certificateUseCase) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	for {
		candidates, err := c.certRepo.ListExpired(ctx, now, expireBatchSize)
		if err != nil {
			return expired, err
		}

		changed := 0
		for _, candidate := range candidates {
			err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
				locked, err := c.certRepo.GetByIDForUpdate(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if locked.Status != certDomain.StatusActive || !locked.NotValidAfter.Before(now) {
					return nil
				}

				locked.Status = certDomain.StatusExpired
				locked.UpdatedAt = c.now()
				if err := c.certRepo.Update(ctx, locked); err != nil {
					return err
				}
				changed++
				return c.record(ctx, authz.System(), auditDomain.ActionCertExpired, locked, true, map[string]any{
					"label":           locked.Label,
					"not_valid_after": locked.NotValidAfter.Format(time.RFC3339),
				})
			})
			if err != nil {
				return expired, apperrors.Wrap(err, "failed to expire certificate "+candidate.ID.String())
			}
		}

		expired += changed
		if len(candidates) < expireBatchSize || changed == 0 {
			return expired, nil
		}
	}
}

// parse calls the parser and fills what it omitted from the PEM itself.
func (c *certificateUseCase) parse(
	ctx context.Context,
	pemText string,
	now time.Time,
) (*certDomain.ParsedCertificate, error) {
	parsed, err := c.parser.Parse(ctx, pemText)
	if err != nil {
		return nil, err
	}

	if parsed.Fingerprint == "" {
		if parsed.Fingerprint, err = certService.Fingerprint(pemText); err != nil {
			return nil, err
		}
	}
	parsed.Fingerprint = strings.ToLower(strings.ReplaceAll(parsed.Fingerprint, ":", ""))

	if len(parsed.PublicKeyJWK) == 0 {
		if parsed.PublicKeyJWK, err = certService.PublicKeyJWK(pemText); err != nil {
			return nil, err
		}
	} else if parsed.PublicKeyJWK, err = certService.NormalizeJWK(parsed.PublicKeyJWK, pemText); err != nil {
		return nil, err
	}

	if !parsed.NotValidAfter.IsZero() && parsed.NotValidAfter.Before(now) {
		return nil, certDomain.ErrCertificateExpired
	}
	return parsed, nil
}

func (c *certificateUseCase) ensureFingerprintFree(
	ctx context.Context,
	organizationID uuid.UUID,
	fingerprint string,
	self uuid.UUID,
) error {
	existing, err := c.certRepo.GetByFingerprint(ctx, organizationID, fingerprint)
	if err != nil {
		if apperrors.Is(err, certDomain.ErrCertificateNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return certDomain.ErrCertificateFingerprintConflict
	}
	return nil
}

func (c *certificateUseCase) ensureLabelFree(ctx context.Context, organizationID uuid.UUID, label string) error {
	_, err := c.certRepo.GetByLabel(ctx, organizationID, label)
	if err == nil {
		return certDomain.ErrCertificateLabelConflict
	}
	if apperrors.Is(err, certDomain.ErrCertificateNotFound) {
		return nil
	}
	return err
}

func (c *certificateUseCase) record(
	ctx context.Context,
	actor authz.Actor,
	action auditDomain.Action,
	cert *certDomain.Certificate,
	automatic bool,
	metadata map[string]any,
) error {
	orgID := cert.OrganizationID
	return c.audit.Record(ctx, auditUseCase.Entry{
		OrganizationID: &orgID,
		Actor:          actor,
		Action:         action,
		TargetType:     auditDomain.TargetCertificate,
		TargetID:       cert.ID,
		Metadata:       metadata,
		Automatic:      automatic,
	})
}
