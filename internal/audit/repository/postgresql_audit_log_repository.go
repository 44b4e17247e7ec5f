// Package repository implements audit log persistence for PostgreSQL and MySQL. Audit logs
// are insert-only; no update or delete statement exists here.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// PostgreSQLAuditLogRepository implements AuditLog persistence for PostgreSQL.
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQL AuditLog repository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}

// Create inserts an audit log through the caller's transaction, if any, so the entry
// commits or rolls back with the mutation it records.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (id, organization_id, actor_id, actor_email, action, target_type, target_id,
				metadata, automatic, signature, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = querier.ExecContext(
		ctx,
		query,
		auditLog.ID,
		auditLog.OrganizationID,
		auditLog.ActorID,
		auditLog.ActorEmail,
		string(auditLog.Action),
		string(auditLog.TargetType),
		auditLog.TargetID,
		database.JSONValue(metadataJSON),
		auditLog.Automatic,
		auditLog.Signature,
		auditLog.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}
	return nil
}

// List retrieves audit logs matching filter, oldest first, with pagination.
func (p *PostgreSQLAuditLogRepository) List(
	ctx context.Context,
	filter auditDomain.Filter,
	offset, limit int,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	var conditions []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.OrganizationID != nil {
		add("organization_id = $%d", *filter.OrganizationID)
	}
	if filter.TargetID != nil {
		add("target_id = $%d", *filter.TargetID)
	}
	if filter.Action != nil {
		add("action = $%d", string(*filter.Action))
	}
	if filter.CreatedAtFrom != nil {
		add("created_at >= $%d", *filter.CreatedAtFrom)
	}
	if filter.CreatedAtTo != nil {
		add("created_at <= $%d", *filter.CreatedAtTo)
	}

	query := `SELECT id, organization_id, actor_id, actor_email, action, target_type, target_id, metadata,
				automatic, signature, created_at
			  FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	auditLogs := make([]*auditDomain.AuditLog, 0)
	for rows.Next() {
		var auditLog auditDomain.AuditLog
		var metadataJSON []byte
		var action, targetType string

		err := rows.Scan(
			&auditLog.ID,
			&auditLog.OrganizationID,
			&auditLog.ActorID,
			&auditLog.ActorEmail,
			&action,
			&targetType,
			&auditLog.TargetID,
			&metadataJSON,
			&auditLog.Automatic,
			&auditLog.Signature,
			&auditLog.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}

		auditLog.Action = auditDomain.Action(action)
		auditLog.TargetType = auditDomain.TargetType(targetType)
		if auditLog.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, err
		}

		auditLogs = append(auditLogs, &auditLog)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}
	return auditLogs, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit log metadata")
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (map[string]any, error) {
	if b == nil {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(b, &metadata); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit log metadata")
	}
	return metadata, nil
}
