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

const verificationMethodColumns = `id, document_id, certificate_id, fragment, method_type, relationships, position,
	is_active, created_at, updated_at`

// PostgreSQLVerificationMethodRepository implements verification method persistence for PostgreSQL.
type PostgreSQLVerificationMethodRepository struct {
	db *sql.DB
}

// NewPostgreSQLVerificationMethodRepository creates a new PostgreSQL verification method repository.
func NewPostgreSQLVerificationMethodRepository(db *sql.DB) *PostgreSQLVerificationMethodRepository {
	return &PostgreSQLVerificationMethodRepository{db: db}
}

// ReplaceForDocument swaps the document's method set for methods.
func (p *PostgreSQLVerificationMethodRepository) ReplaceForDocument(
	ctx context.Context,
	documentID uuid.UUID,
	methods []*docDomain.VerificationMethod,
) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(
		ctx,
		`DELETE FROM document_verification_methods WHERE document_id = $1`,
		documentID,
	); err != nil {
		return apperrors.Wrap(err, "failed to delete verification methods")
	}

	query := `INSERT INTO document_verification_methods (` + verificationMethodColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, vm := range methods {
		_, err := querier.ExecContext(
			ctx,
			query,
			vm.ID,
			documentID,
			vm.CertificateID,
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
func (p *PostgreSQLVerificationMethodRepository) ListByDocument(
	ctx context.Context,
	documentID uuid.UUID,
) ([]*docDomain.VerificationMethod, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + verificationMethodColumns + ` FROM document_verification_methods
			  WHERE document_id = $1 ORDER BY position ASC, fragment ASC`

	rows, err := querier.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list verification methods")
	}
	defer func() {
		_ = rows.Close()
	}()

	methods := make([]*docDomain.VerificationMethod, 0)
	for rows.Next() {
		var vm docDomain.VerificationMethod
		var relationships string
		err := rows.Scan(
			&vm.ID,
			&vm.DocumentID,
			&vm.CertificateID,
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
func (p *PostgreSQLVerificationMethodRepository) DeactivateByCertificate(
	ctx context.Context,
	documentID, certificateID uuid.UUID,
	now time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE document_verification_methods SET is_active = FALSE, updated_at = $1
			  WHERE document_id = $2 AND certificate_id = $3 AND is_active = TRUE`

	result, err := querier.ExecContext(ctx, query, now, documentID, certificateID)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to deactivate verification methods")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return n, nil
}
