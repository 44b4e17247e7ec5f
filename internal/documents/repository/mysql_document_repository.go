package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/database"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// MySQLDocumentRepository implements DID document persistence for MySQL.
type MySQLDocumentRepository struct {
	db *sql.DB
}

// NewMySQLDocumentRepository creates a new MySQL document repository.
func NewMySQLDocumentRepository(db *sql.DB) *MySQLDocumentRepository {
	return &MySQLDocumentRepository{db: db}
}

// Create inserts a document. A taken label or DID URI maps to ErrDocumentLabelConflict.
func (m *MySQLDocumentRepository) Create(ctx context.Context, doc *docDomain.Document) error {
	querier := database.GetTx(ctx, m.db)

	services, err := marshalServices(doc.Services)
	if err != nil {
		return err
	}

	query := `INSERT INTO did_documents (` + documentColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(doc.ID),
		database.UUIDBytes(doc.OrganizationID),
		doc.Label,
		doc.DIDURI,
		string(doc.Content),
		database.JSONValue(doc.DraftContent),
		services,
		string(doc.Status),
		doc.Version,
		database.UUIDBytes(doc.OwnerID),
		database.NullableUUIDBytes(doc.SubmittedBy),
		doc.SubmittedAt,
		database.NullableUUIDBytes(doc.ReviewedBy),
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

// Update overwrites every mutable column of the document. MySQL reports changed rather than
// matched rows, so a missing row is not detected here; callers hold the row lock.
func (m *MySQLDocumentRepository) Update(ctx context.Context, doc *docDomain.Document) error {
	querier := database.GetTx(ctx, m.db)

	services, err := marshalServices(doc.Services)
	if err != nil {
		return err
	}

	query := `UPDATE did_documents
			  SET content = ?, draft_content = ?, services = ?, status = ?, version = ?, submitted_by = ?,
				submitted_at = ?, reviewed_by = ?, reviewed_at = ?, review_comment = ?, published_at = ?,
				deactivated_at = ?, deactivation_reason = ?, updated_at = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(
		ctx,
		query,
		string(doc.Content),
		database.JSONValue(doc.DraftContent),
		services,
		string(doc.Status),
		doc.Version,
		database.NullableUUIDBytes(doc.SubmittedBy),
		doc.SubmittedAt,
		database.NullableUUIDBytes(doc.ReviewedBy),
		doc.ReviewedAt,
		doc.ReviewComment,
		doc.PublishedAt,
		doc.DeactivatedAt,
		doc.DeactivationReason,
		doc.UpdatedAt,
		database.UUIDBytes(doc.ID),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update document")
	}
	return nil
}

// GetByID retrieves a document by id.
func (m *MySQLDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents WHERE id = ?`
	return m.getOne(ctx, query, database.UUIDBytes(id))
}

// GetByIDForUpdate retrieves a document and locks its row until the transaction ends.
func (m *MySQLDocumentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents WHERE id = ? FOR UPDATE`
	return m.getOne(ctx, query, database.UUIDBytes(id))
}

// GetByLabel retrieves the organization's document with the given label.
func (m *MySQLDocumentRepository) GetByLabel(
	ctx context.Context,
	organizationID uuid.UUID,
	label string,
) (*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents WHERE organization_id = ? AND label = ?`
	return m.getOne(ctx, query, database.UUIDBytes(organizationID), label)
}

// List returns the organization's documents ordered by creation.
func (m *MySQLDocumentRepository) List(
	ctx context.Context,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents
			  WHERE organization_id = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	return m.getMany(ctx, query, database.UUIDBytes(organizationID), limit, offset)
}

// ListReferencingCertificate returns documents that still hold an active method on the
// certificate, plus PUBLISHED documents holding any method on it.
func (m *MySQLDocumentRepository) ListReferencingCertificate(
	ctx context.Context,
	certificateID uuid.UUID,
) ([]*docDomain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM did_documents d
			  WHERE EXISTS (
				SELECT 1 FROM document_verification_methods m
				WHERE m.document_id = d.id AND m.certificate_id = ?
				  AND (m.is_active = TRUE OR d.status = ?)
			  )
			  ORDER BY d.created_at ASC, d.id ASC`
	return m.getMany(ctx, query, database.UUIDBytes(certificateID), string(docDomain.StatusPublished))
}

// CreateVersion inserts a version row.
func (m *MySQLDocumentRepository) CreateVersion(ctx context.Context, version *docDomain.DocumentVersion) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO did_document_versions (` + documentVersionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(version.ID),
		database.UUIDBytes(version.DocumentID),
		version.Version,
		string(version.Content),
		version.Signature,
		version.SignedAt,
		version.PublishedAt,
		database.NullableUUIDBytes(version.PublishedBy),
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
func (m *MySQLDocumentRepository) FinalizeVersion(ctx context.Context, version *docDomain.DocumentVersion) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE did_document_versions
			  SET content = ?, signature = ?, signed_at = ?, published_at = ?, published_by = ?,
				registrar_response = ?
			  WHERE document_id = ? AND version = ? AND published_at IS NULL`

	result, err := querier.ExecContext(
		ctx,
		query,
		string(version.Content),
		version.Signature,
		version.SignedAt,
		version.PublishedAt,
		database.NullableUUIDBytes(version.PublishedBy),
		database.JSONValue(version.RegistrarResponse),
		database.UUIDBytes(version.DocumentID),
		version.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to finalize document version")
	}
	return checkAffected(result, docDomain.ErrDocumentVersionNotFound)
}

// GetVersion retrieves one version of a document.
func (m *MySQLDocumentRepository) GetVersion(
	ctx context.Context,
	documentID uuid.UUID,
	version int,
) (*docDomain.DocumentVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentVersionColumns + ` FROM did_document_versions
			  WHERE document_id = ? AND version = ?`

	v, err := scanMySQLDocumentVersion(querier.QueryRowContext(ctx, query, database.UUIDBytes(documentID), version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docDomain.ErrDocumentVersionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document version")
	}
	return v, nil
}

// ListVersions returns every version row of the document ordered by version.
func (m *MySQLDocumentRepository) ListVersions(
	ctx context.Context,
	documentID uuid.UUID,
) ([]*docDomain.DocumentVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentVersionColumns + ` FROM did_document_versions
			  WHERE document_id = ? ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, database.UUIDBytes(documentID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list document versions")
	}
	defer func() {
		_ = rows.Close()
	}()

	versions := make([]*docDomain.DocumentVersion, 0)
	for rows.Next() {
		v, err := scanMySQLDocumentVersion(rows)
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

func (m *MySQLDocumentRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*docDomain.Document, error) {
	querier := database.GetTx(ctx, m.db)

	doc, err := scanMySQLDocument(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docDomain.ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document")
	}
	return doc, nil
}

func (m *MySQLDocumentRepository) getMany(
	ctx context.Context,
	query string,
	args ...any,
) ([]*docDomain.Document, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list documents")
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := make([]*docDomain.Document, 0)
	for rows.Next() {
		doc, err := scanMySQLDocument(rows)
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

func scanMySQLDocument(row rowScanner) (*docDomain.Document, error) {
	var doc docDomain.Document
	var idBytes, orgIDBytes, ownerBytes, submittedByBytes, reviewedByBytes []byte
	var content, draft, services []byte
	var status string

	err := row.Scan(
		&idBytes,
		&orgIDBytes,
		&doc.Label,
		&doc.DIDURI,
		&content,
		&draft,
		&services,
		&status,
		&doc.Version,
		&ownerBytes,
		&submittedByBytes,
		&doc.SubmittedAt,
		&reviewedByBytes,
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

	if doc.ID, err = database.UUIDFromBytes(idBytes); err != nil {
		return nil, err
	}
	if doc.OrganizationID, err = database.UUIDFromBytes(orgIDBytes); err != nil {
		return nil, err
	}
	if doc.OwnerID, err = database.UUIDFromBytes(ownerBytes); err != nil {
		return nil, err
	}
	if doc.SubmittedBy, err = database.NullableUUIDFromBytes(submittedByBytes); err != nil {
		return nil, err
	}
	if doc.ReviewedBy, err = database.NullableUUIDFromBytes(reviewedByBytes); err != nil {
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

func scanMySQLDocumentVersion(row rowScanner) (*docDomain.DocumentVersion, error) {
	var v docDomain.DocumentVersion
	var idBytes, docIDBytes, publishedByBytes, content, registrar []byte

	err := row.Scan(
		&idBytes,
		&docIDBytes,
		&v.Version,
		&content,
		&v.Signature,
		&v.SignedAt,
		&v.PublishedAt,
		&publishedByBytes,
		&registrar,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if v.ID, err = database.UUIDFromBytes(idBytes); err != nil {
		return nil, err
	}
	if v.DocumentID, err = database.UUIDFromBytes(docIDBytes); err != nil {
		return nil, err
	}
	if v.PublishedBy, err = database.NullableUUIDFromBytes(publishedByBytes); err != nil {
		return nil, err
	}

	v.Content = content
	v.RegistrarResponse = registrar
	return &v, nil
}
