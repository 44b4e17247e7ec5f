package repository

import (
	"context"
	"database/sql"
	"strings"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// MySQLAuditLogRepository implements AuditLog persistence for MySQL with BINARY(16) UUIDs.
type MySQLAuditLogRepository struct {
	db *sql.DB
}

// NewMySQLAuditLogRepository creates a new MySQL AuditLog repository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}

// Create inserts an audit log through the caller's transaction, if any.
func (m *MySQLAuditLogRepository) Create(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, m.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (id, organization_id, actor_id, actor_email, action, target_type, target_id,
				metadata, automatic, signature, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(auditLog.ID),
		database.NullableUUIDBytes(auditLog.OrganizationID),
		database.NullableUUIDBytes(auditLog.ActorID),
		auditLog.ActorEmail,
		string(auditLog.Action),
		string(auditLog.TargetType),
		database.UUIDBytes(auditLog.TargetID),
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
func (m *MySQLAuditLogRepository) List(
	ctx context.Context,
	filter auditDomain.Filter,
	offset, limit int,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	var conditions []string
	var args []any
	if filter.OrganizationID != nil {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, database.UUIDBytes(*filter.OrganizationID))
	}
	if filter.TargetID != nil {
		conditions = append(conditions, "target_id = ?")
		args = append(args, database.UUIDBytes(*filter.TargetID))
	}
	if filter.Action != nil {
		conditions = append(conditions, "action = ?")
		args = append(args, string(*filter.Action))
	}
	if filter.CreatedAtFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.CreatedAtFrom)
	}
	if filter.CreatedAtTo != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.CreatedAtTo)
	}

	query := `SELECT id, organization_id, actor_id, actor_email, action, target_type, target_id, metadata,
				automatic, signature, created_at
			  FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

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
		var idBytes, orgIDBytes, actorIDBytes, targetIDBytes, metadataJSON []byte
		var action, targetType string

		err := rows.Scan(
			&idBytes,
			&orgIDBytes,
			&actorIDBytes,
			&auditLog.ActorEmail,
			&action,
			&targetType,
			&targetIDBytes,
			&metadataJSON,
			&auditLog.Automatic,
			&auditLog.Signature,
			&auditLog.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}

		if auditLog.ID, err = database.UUIDFromBytes(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode audit log id")
		}
		if auditLog.OrganizationID, err = database.NullableUUIDFromBytes(orgIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode audit log organization id")
		}
		if auditLog.ActorID, err = database.NullableUUIDFromBytes(actorIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode audit log actor id")
		}
		if auditLog.TargetID, err = database.UUIDFromBytes(targetIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode audit log target id")
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
