// Package usecase records and verifies signed audit log entries.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	"github.com/allisson/didregistry/internal/authz"
)

// AuditLogRepository persists audit logs. Create must use the transaction in ctx.
type AuditLogRepository interface {
	Create(ctx context.Context, auditLog *auditDomain.AuditLog) error
	List(ctx context.Context, filter auditDomain.Filter, offset, limit int) ([]*auditDomain.AuditLog, error)
}

// Entry is the caller-facing description of an audit fact.
type Entry struct {
	OrganizationID *uuid.UUID
	Actor          authz.Actor
	Action         auditDomain.Action
	TargetType     auditDomain.TargetType
	TargetID       uuid.UUID
	Metadata       map[string]any
	Automatic      bool
}

// Recorder is the narrow dependency lifecycle use cases take on the audit module.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// AuditLogUseCase records, lists and verifies audit logs.
type AuditLogUseCase interface {
	Recorder

	// List returns entries matching filter, oldest first.
	List(ctx context.Context, filter auditDomain.Filter, offset, limit int) ([]*auditDomain.AuditLog, error)

	// Verify re-checks the signature of every entry created within [from, to].
	Verify(ctx context.Context, from, to time.Time) (*VerificationReport, error)
}

// VerificationReport summarizes a Verify run.
type VerificationReport struct {
	TotalChecked int         `json:"total_checked"`
	ValidCount   int         `json:"valid_count"`
	InvalidCount int         `json:"invalid_count"`
	InvalidLogs  []uuid.UUID `json:"invalid_logs"`
}
