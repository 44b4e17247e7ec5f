// Package repository implements DID document, document version and verification method
// persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/database"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

const documentColumns = `id, organization_id, label, did_uri, content, draft_content, services, status, version,
	owner_id, submitted_by, submitted_at, reviewed_by, reviewed_at, review_comment, published_at, deactivated_at,
	deactivation_reason, created_at, updated_at`

const documentVersionColumns = `id, document_id, version, content, signature, signed_at, published_at,
	published_by, registrar_response, created_at`

// PostgreSQLDocumentRepository implements DID document persistence for PostgreSQL.
type PostgreSQLDocumentRepository struct {
	db *sql.DB
}

// NewPostgreSQLDocumentRepository creates a new PostgreSQL document repository.
func NewPostgreSQLDocumentRepository(db *sql.DB) *PostgreSQLDocumentRepository {
	return &PostgreSQLDocumentRepository{db: db}
}

// Create inserts a document. A taken label or DID URI maps to ErrDocumentLabelConflict.
func (p *PostgreSQLDocumentRepository) Create(ctx context.Context, doc *docDomain.Document) error {
	querier := database.GetTx(ctx, p.db)

	services, err := marshalServices(doc.Services)
	if err != nil {
		return err
	}

	query := `INSERT INTO did_documents (` + documentColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = querier.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OrganizationID,
		doc.Label,
		doc.DIDURI,
		string(doc.Content),
		database.JSONValue(doc.DraftContent),
		services,
		string(doc.Status),
		doc.Version,
		doc.OwnerID,
		doc.SubmittedBy,
		doc.SubmittedAt,
		doc.ReviewedBy,
		doc.ReviewedAt,
		doc.ReviewComment,
		doc.PublishedAt,
		doc.DeactivatedAt,
		doc.DeactivationReason,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return docDomain.ErrDocumentLabelConflict
		}
		return apperrors.Wrap(err, "failed to create document")
	}
	return nil
}

// Update overwrites every mutable column of the document.
func (p *PostgreSQLDocumentRepository) Update(ctx context.Context, doc *docDomain.Document) error {
	querier := database.GetTx(ctx, p.db)

	services, err := marshalServices(doc.Services)
	if err != nil {
		return err
	}

	query := `UPDATE did_documents
			  SET content = $1, draft_content = $2, services = $3, status = $4, version = $5, submitted_by = $6,
				submitted_at = $7, reviewed_by = $8, reviewed_at = $9, review_comment = $10, published_at = $11,
				deactivated_at = $12, deactivation_reason = $13, updated_at = $14
			  WHERE id = $15`

	result, err := querier.ExecContext(
		ctx,
		query,
		string(doc.Content),
		database.JSONValue(doc.DraftContent),
		services,
		string(doc.Status),
		doc.Version,
		doc.SubmittedBy,
		doc.SubmittedAt,
		doc.ReviewedBy,
		doc.ReviewedAt,
		doc.ReviewComment,
		doc.PublishedAt,
		doc.DeactivatedAt,
		doc.DeactivationReason,
		doc.UpdatedAt,
		doc.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update document")
	}
	return checkAffected(result, docDomain.ErrDocumentNotFound)
}

// GetByID retrieves a document by id.
func (p *PostgreSQLDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents WHERE id = $1`
	return p.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a document and locks its row until the transaction ends.
func (p *PostgreSQLDocumentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents WHERE id = $1 FOR UPDATE`
	return p.getOne(ctx, query, id)
}

// GetByLabel retrieves the organization's document with the given label.
func (p *PostgreSQLDocumentRepository) GetByLabel(
	ctx context.Context,
	organizationID uuid.UUID,
	label string,
) (*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents WHERE organization_id = $1 AND label = $2`
	return p.getOne(ctx, query, organizationID, label)
}

// List returns the organization's documents ordered by creation.
func (p *PostgreSQLDocumentRepository) List(
	ctx context.Context,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents
			  WHERE organization_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	return p.getMany(ctx, query, organizationID, limit, offset)
}

// ListReferencingCertificate returns documents that still hold an active method on the
// certificate, plus PUBLISHED documents holding any method on it.
func (p *PostgreSQLDocumentRepository) ListReferencingCertificate(
	ctx context.Context,
	certificateID uuid.UUID,
) ([]*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents d
			  WHERE EXISTS (
				SELECT 1 FROM document_verification_methods m
				WHERE m.document_id = d.id AND m.certificate_id = $1
				  AND (m.is_active = TRUE OR d.status = $2)
			  )
			  ORDER BY d.created_at ASC, d.id ASC`
	return p.getMany(ctx, query, certificateID, string(docDomain.StatusPublished))
}

// CreateVersion inserts a version row.
func (p *PostgreSQLDocumentRepository) CreateVersion(ctx context.Context, version *docDomain.DocumentVersion) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO did_document_versions (` + documentVersionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := querier.ExecContext(
		ctx,
		query,
		version.ID,
		version.DocumentID,
		version.Version,
		string(version.Content),
		version.Signature,
		version.SignedAt,
		version.PublishedAt,
		version.PublishedBy,
		database.JSONValue(version.RegistrarResponse),
		version.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "document version already exists")
		}
		return apperrors.Wrap(err, "failed to create document version")
	}
	return nil
}

// FinalizeVersion fills an unpublished version row. Published rows are immutable and
// report ErrDocumentVersionNotFound.
func (p *PostgreSQLDocumentRepository) FinalizeVersion(ctx context.Context, version *docDomain.DocumentVersion) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE did_document_versions
			  SET content = $1, signature = $2, signed_at = $3, published_at = $4, published_by = $5,
				registrar_response = $6
			  WHERE document_id = $7 AND version = $8 AND published_at IS NULL`

	result, err := querier.ExecContext(
		ctx,
		query,
		string(version.Content),
		version.Signature,
		version.SignedAt,
		version.PublishedAt,
		version.PublishedBy,
		database.JSONValue(version.RegistrarResponse),
		version.DocumentID,
		version.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to finalize document version")
	}
	return checkAffected(result, docDomain.ErrDocumentVersionNotFound)
}

// GetVersion retrieves one version of a document.
func (p *PostgreSQLDocumentRepository) GetVersion(
	ctx context.Context,
	documentID uuid.UUID,
	version int,
) (*docDomain.DocumentVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentVersionColumns + ` FROM did_document_versions
			  WHERE document_id = $1 AND version = $2`

	v, err := scanPostgreSQLDocumentVersion(querier.QueryRowContext(ctx, query, documentID, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docDomain.ErrDocumentVersionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document version")
	}
	return v, nil
}

// ListVersions returns every version row of the document ordered by version.
func (p *PostgreSQLDocumentRepository) ListVersions(
	ctx context.Context,
	documentID uuid.UUID,
) ([]*docDomain.DocumentVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentVersionColumns + ` FROM did_document_versions
			  WHERE document_id = $1 ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list document versions")
	}
	defer func() {
		_ = rows.Close()
	}()

	versions := make([]*docDomain.DocumentVersion, 0)
	for rows.Next() {
		v, err := scanPostgreSQLDocumentVersion(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan document version")
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate document versions")
	}
	return versions, nil
}

func (p *PostgreSQLDocumentRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*docDomain.Document, error) {
	querier := database.GetTx(ctx, p.db)

	doc, err := scanPostgreSQLDocument(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docDomain.ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document")
	}
	return doc, nil
}

func (p *PostgreSQLDocumentRepository) getMany(
	ctx context.Context,
	query string,
	args ...any,
) ([]*docDomain.Document, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list documents")
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := make([]*docDomain.Document, 0)
	for rows.Next() {
		doc, err := scanPostgreSQLDocument(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan document")
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate documents")
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLDocument(row rowScanner) (*docDomain.Document, error) {
	var doc docDomain.Document
	var content, draft, services []byte
	var status string

	err := row.Scan(
		&doc.ID,
		&doc.OrganizationID,
		&doc.Label,
		&doc.DIDURI,
		&content,
		&draft,
		&services,
		&status,
		&doc.Version,
		&doc.OwnerID,
		&doc.SubmittedBy,
		&doc.SubmittedAt,
		&doc.ReviewedBy,
		&doc.ReviewedAt,
		&doc.ReviewComment,
		&doc.PublishedAt,
		&doc.DeactivatedAt,
		&doc.DeactivationReason,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Content = content
	doc.DraftContent = draft
	doc.Status = docDomain.Status(status)
	if doc.Services, err = unmarshalServices(services); err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanPostgreSQLDocumentVersion(row rowScanner) (*docDomain.DocumentVersion, error) {
	var v docDomain.DocumentVersion
	var content, registrar []byte

	err := row.Scan(
		&v.ID,
		&v.DocumentID,
		&v.Version,
		&content,
		&v.Signature,
		&v.SignedAt,
		&v.PublishedAt,
		&v.PublishedBy,
		&registrar,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Content = content
	v.RegistrarResponse = registrar
	return &v, nil
}

func marshalServices(services []docDomain.Service) (string, error) {
	if services == nil {
		services = []docDomain.Service{}
	}
	b, err := json.Marshal(services)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal services")
	}
	return string(b), nil
}

func unmarshalServices(raw []byte) ([]docDomain.Service, error) {
	services := make([]docDomain.Service, 0)
	if len(raw) == 0 {
		return services, nil
	}
	if err := json.Unmarshal(raw, &services); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal services")
	}
	return services, nil
}

func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
