package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditService "github.com/allisson/didregistry/internal/audit/service"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

const verifyBatchSize = 500

type auditLogUseCase struct {
	auditLogRepo AuditLogRepository
	signer       auditService.AuditSigner
}

// Record signs and persists an audit entry. Timestamps are truncated to microseconds so the
// signature survives the database round trip.
func (a *auditLogUseCase) Record(ctx context.Context, entry Entry) error {
	auditLog := &auditDomain.AuditLog{
		ID:             uuid.Must(uuid.NewV7()),
		OrganizationID: entry.OrganizationID,
		ActorID:        entry.Actor.IDPtr(),
		ActorEmail:     entry.Actor.Email,
		Action:         entry.Action,
		TargetType:     entry.TargetType,
		TargetID:       entry.TargetID,
		Metadata:       entry.Metadata,
		Automatic:      entry.Automatic,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}

	signature, err := a.signer.Sign(auditLog)
	if err != nil {
		return apperrors.Wrap(err, "failed to sign audit log")
	}
	auditLog.Signature = signature

	if err := a.auditLogRepo.Create(ctx, auditLog); err != nil {
		return apperrors.Wrap(err, "failed to record audit log")
	}
	return nil
}

func (a *auditLogUseCase) List(
	ctx context.Context,
	filter auditDomain.Filter,
	offset, limit int,
) ([]*auditDomain.AuditLog, error) {
	auditLogs, err := a.auditLogRepo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	return auditLogs, nil
}

// Verify pages through the range and collects the ids of entries whose signature does not match.
func (a *auditLogUseCase) Verify(ctx context.Context, from, to time.Time) (*VerificationReport, error) {
	report := &VerificationReport{InvalidLogs: make([]uuid.UUID, 0)}
	filter := auditDomain.Filter{CreatedAtFrom: &from, CreatedAtTo: &to}

	for offset := 0; ; offset += verifyBatchSize {
		auditLogs, err := a.auditLogRepo.List(ctx, filter, offset, verifyBatchSize)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to list audit logs")
		}

		for _, auditLog := range auditLogs {
			report.TotalChecked++
			if err := a.signer.Verify(auditLog); err != nil {
				report.InvalidCount++
				report.InvalidLogs = append(report.InvalidLogs, auditLog.ID)
				continue
			}
			report.ValidCount++
		}

		if len(auditLogs) < verifyBatchSize {
			return report, nil
		}
	}
}

// NewAuditLogUseCase creates a new AuditLogUseCase.
func NewAuditLogUseCase(auditLogRepo AuditLogRepository, signer auditService.AuditSigner) AuditLogUseCase {
	return &auditLogUseCase{
		auditLogRepo: auditLogRepo,
		signer:       signer,
	}
}
