package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/database"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// MySQLVerificationMethodRepository implements verification method persistence for MySQL.
type MySQLVerificationMethodRepository struct {
	db *sql.DB
}

// NewMySQLVerificationMethodRepository creates a new MySQL verification method repository.
func NewMySQLVerificationMethodRepository(db *sql.DB) *MySQLVerificationMethodRepository {
	return &MySQLVerificationMethodRepository{db: db}
}

// ReplaceForDocument swaps the document's method set for methods.
func (m *MySQLVerificationMethodRepository) ReplaceForDocument(
	ctx context.Context,
	documentID uuid.UUID,
	methods []*docDomain.VerificationMethod,
) error {
	querier := database.GetTx(ctx, m.db)

	if _, err := querier.ExecContext(
		ctx,
		`DELETE FROM document_verification_methods WHERE document_id = ?`,
		database.UUIDBytes(documentID),
	); err != nil {
		return apperrors.Wrap(err, "failed to delete verification methods")
	}

	query := `INSERT INTO document_verification_methods (` + verificationMethodColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, vm := range methods {
		_, err := querier.ExecContext(
			ctx,
			query,
			database.UUIDBytes(vm.ID),
			database.UUIDBytes(documentID),
			database.UUIDBytes(vm.CertificateID),
			vm.Fragment,
			vm.MethodType,
			docDomain.JoinRelationships(vm.Relationships),
			vm.Position,
			vm.IsActive,
			vm.CreatedAt,
			vm.UpdatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return docDomain.ErrDuplicateFragment
			}
			if database.IsForeignKeyViolation(err) {
				return docDomain.ErrCertificateNotUsable
			}
			return apperrors.Wrap(err, "failed to create verification method")
		}
	}
	return nil
}

// ListByDocument returns the document's methods in position order.
func (m *MySQLVerificationMethodRepository) ListByDocument(
	ctx context.Context,
	documentID uuid.UUID,
) ([]*docDomain.VerificationMethod, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + verificationMethodColumns + ` FROM document_verification_methods
			  WHERE document_id = ? ORDER BY position ASC, fragment ASC`

	rows, err := querier.QueryContext(ctx, query, database.UUIDBytes(documentID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list verification methods")
	}
	defer func() {
		_ = rows.Close()
	}()

	methods := make([]*docDomain.VerificationMethod, 0)
	for rows.Next() {
		var vm docDomain.VerificationMethod
		var idBytes, docIDBytes, certIDBytes []byte
		var relationships string
		err := rows.Scan(
			&idBytes,
			&docIDBytes,
			&certIDBytes,
			&vm.Fragment,
			&vm.MethodType,
			&relationships,
			&vm.Position,
			&vm.IsActive,
			&vm.CreatedAt,
			&vm.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan verification method")
		}
		if vm.ID, err = database.UUIDFromBytes(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode verification method id")
		}
		if vm.DocumentID, err = database.UUIDFromBytes(docIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode document id")
		}
		if vm.CertificateID, err = database.UUIDFromBytes(certIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode certificate id")
		}
		vm.Relationships = docDomain.SplitRelationships(relationships)
		methods = append(methods, &vm)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate verification methods")
	}
	return methods, nil
}

// DeactivateByCertificate marks the document's active methods on the certificate inactive
// and returns how many changed.
func (m *MySQLVerificationMethodRepository) DeactivateByCertificate(
	ctx context.Context,
	documentID, certificateID uuid.UUID,
	now time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE document_verification_methods SET is_active = FALSE, updated_at = ?
			  WHERE document_id = ? AND certificate_id = ? AND is_active = TRUE`

	result, err := querier.ExecContext(
		ctx,
		query,
		now,
		database.UUIDBytes(documentID),
		database.UUIDBytes(certificateID),
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to deactivate verification methods")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return n, nil
}
