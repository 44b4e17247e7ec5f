// Package repository implements certificate and certificate version persistence for
// PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

const certificateColumns = `id, organization_id, label, fingerprint, subject_dn, issuer_dn, serial_number,
	not_valid_before, not_valid_after, pem, public_key_jwk, key_type, key_curve, key_size, status, version,
	revoked_at, revoked_by, revocation_reason, created_by, created_at, updated_at`

const certificateVersionColumns = `id, certificate_id, version, fingerprint, subject_dn, issuer_dn, serial_number,
	not_valid_before, not_valid_after, pem, public_key_jwk, key_type, key_curve, key_size, change_summary,
	created_by, created_at`

// PostgreSQLCertificateRepository implements certificate persistence for PostgreSQL.
type PostgreSQLCertificateRepository struct {
	db *sql.DB
}

// NewPostgreSQLCertificateRepository creates a new PostgreSQL certificate repository.
func NewPostgreSQLCertificateRepository(db *sql.DB) *PostgreSQLCertificateRepository {
	return &PostgreSQLCertificateRepository{db: db}
}

// Create inserts a certificate. A duplicate fingerprint or label within the organization
// maps to ErrCertificateFingerprintConflict or ErrCertificateLabelConflict.
func (p *PostgreSQLCertificateRepository) Create(ctx context.Context, cert *certDomain.Certificate) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO certificates (` + certificateColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22)`

	_, err := querier.ExecContext(
		ctx,
		query,
		cert.ID,
		cert.OrganizationID,
		cert.Label,
		cert.Fingerprint,
		cert.SubjectDN,
		cert.IssuerDN,
		cert.SerialNumber,
		cert.NotValidBefore,
		cert.NotValidAfter,
		cert.PEM,
		database.JSONValue(cert.PublicKeyJWK),
		cert.KeyType,
		cert.KeyCurve,
		cert.KeySize,
		string(cert.Status),
		cert.Version,
		cert.RevokedAt,
		cert.RevokedBy,
		cert.RevocationReason,
		cert.CreatedBy,
		cert.CreatedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return uniqueViolation(err)
		}
		return apperrors.Wrap(err, "failed to create certificate")
	}
	return nil
}

// Update overwrites every mutable column of the certificate.
func (p *PostgreSQLCertificateRepository) Update(ctx context.Context, cert *certDomain.Certificate) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE certificates
			  SET label = $1, fingerprint = $2, subject_dn = $3, issuer_dn = $4, serial_number = $5,
				not_valid_before = $6, not_valid_after = $7, pem = $8, public_key_jwk = $9, key_type = $10,
				key_curve = $11, key_size = $12, status = $13, version = $14, revoked_at = $15, revoked_by = $16,
				revocation_reason = $17, updated_at = $18
			  WHERE id = $19`

	result, err := querier.ExecContext(
		ctx,
		query,
		cert.Label,
		cert.Fingerprint,
		cert.SubjectDN,
		cert.IssuerDN,
		cert.SerialNumber,
		cert.NotValidBefore,
		cert.NotValidAfter,
		cert.PEM,
		database.JSONValue(cert.PublicKeyJWK),
		cert.KeyType,
		cert.KeyCurve,
		cert.KeySize,
		string(cert.Status),
		cert.Version,
		cert.RevokedAt,
		cert.RevokedBy,
		cert.RevocationReason,
		cert.UpdatedAt,
		cert.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return uniqueViolation(err)
		}
		return apperrors.Wrap(err, "failed to update certificate")
	}
	return checkAffected(result)
}

// GetByID retrieves a certificate by id.
func (p *PostgreSQLCertificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	return p.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a certificate and locks its row until the transaction ends.
func (p *PostgreSQLCertificateRepository) GetByIDForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1 FOR UPDATE`
	return p.getOne(ctx, query, id)
}

// GetByFingerprint retrieves the organization's certificate with the given fingerprint.
func (p *PostgreSQLCertificateRepository) GetByFingerprint(
	ctx context.Context,
	organizationID uuid.UUID,
	fingerprint string,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE organization_id = $1 AND fingerprint = $2`
	return p.getOne(ctx, query, organizationID, fingerprint)
}

// GetByLabel retrieves the organization's certificate with the given label.
func (p *PostgreSQLCertificateRepository) GetByLabel(
	ctx context.Context,
	organizationID uuid.UUID,
	label string,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE organization_id = $1 AND label = $2`
	return p.getOne(ctx, query, organizationID, label)
}

// GetByIDForShare retrieves a certificate and holds a shared lock on its row until the
// transaction ends, so a concurrent revocation waits for the reader to commit.
func (p *PostgreSQLCertificateRepository) GetByIDForShare(
	ctx context.Context,
	id uuid.UUID,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1 FOR SHARE`
	return p.getOne(ctx, query, id)
}

// List returns the organization's certificates ordered by creation.
func (p *PostgreSQLCertificateRepository) List(
	ctx context.Context,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates
			  WHERE organization_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	return p.getMany(ctx, query, organizationID, limit, offset)
}

// ListExpired returns ACTIVE certificates whose validity ended before now.
func (p *PostgreSQLCertificateRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates
			  WHERE status = $1 AND not_valid_after < $2 ORDER BY not_valid_after ASC LIMIT $3`
	return p.getMany(ctx, query, string(certDomain.StatusActive), now, limit)
}

// CreateVersion inserts an immutable version snapshot.
func (p *PostgreSQLCertificateRepository) CreateVersion(
	ctx context.Context,
	version *certDomain.CertificateVersion,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO certificate_versions (` + certificateVersionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := querier.ExecContext(
		ctx,
		query,
		version.ID,
		version.CertificateID,
		version.Version,
		version.Fingerprint,
		version.SubjectDN,
		version.IssuerDN,
		version.SerialNumber,
		version.NotValidBefore,
		version.NotValidAfter,
		version.PEM,
		database.JSONValue(version.PublicKeyJWK),
		version.KeyType,
		version.KeyCurve,
		version.KeySize,
		version.ChangeSummary,
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "certificate version already exists")
		}
		return apperrors.Wrap(err, "failed to create certificate version")
	}
	return nil
}

// ListVersions returns every snapshot of the certificate ordered by version.
func (p *PostgreSQLCertificateRepository) ListVersions(
	ctx context.Context,
	certificateID uuid.UUID,
) ([]*certDomain.CertificateVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + certificateVersionColumns + ` FROM certificate_versions
			  WHERE certificate_id = $1 ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, certificateID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list certificate versions")
	}
	defer func() {
		_ = rows.Close()
	}()

	versions := make([]*certDomain.CertificateVersion, 0)
	for rows.Next() {
		var v certDomain.CertificateVersion
		var jwkJSON []byte
		err := rows.Scan(
			&v.ID,
			&v.CertificateID,
			&v.Version,
			&v.Fingerprint,
			&v.SubjectDN,
			&v.IssuerDN,
			&v.SerialNumber,
			&v.NotValidBefore,
			&v.NotValidAfter,
			&v.PEM,
			&jwkJSON,
			&v.KeyType,
			&v.KeyCurve,
			&v.KeySize,
			&v.ChangeSummary,
			&v.CreatedBy,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan certificate version")
		}
		v.PublicKeyJWK = jwkJSON
		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate certificate versions")
	}
	return versions, nil
}

func (p *PostgreSQLCertificateRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*certDomain.Certificate, error) {
	querier := database.GetTx(ctx, p.db)

	cert, err := scanPostgreSQLCertificate(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, certDomain.ErrCertificateNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get certificate")
	}
	return cert, nil
}

func (p *PostgreSQLCertificateRepository) getMany(
	ctx context.Context,
	query string,
	args ...any,
) ([]*certDomain.Certificate, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list certificates")
	}
	defer func() {
		_ = rows.Close()
	}()

	certs := make([]*certDomain.Certificate, 0)
	for rows.Next() {
		cert, err := scanPostgreSQLCertificate(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan certificate")
		}
		certs = append(certs, cert)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate certificates")
	}
	return certs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLCertificate(row rowScanner) (*certDomain.Certificate, error) {
	var cert certDomain.Certificate
	var jwkJSON []byte
	var status string

	err := row.Scan(
		&cert.ID,
		&cert.OrganizationID,
		&cert.Label,
		&cert.Fingerprint,
		&cert.SubjectDN,
		&cert.IssuerDN,
		&cert.SerialNumber,
		&cert.NotValidBefore,
		&cert.NotValidAfter,
		&cert.PEM,
		&jwkJSON,
		&cert.KeyType,
		&cert.KeyCurve,
		&cert.KeySize,
		&status,
		&cert.Version,
		&cert.RevokedAt,
		&cert.RevokedBy,
		&cert.RevocationReason,
		&cert.CreatedBy,
		&cert.CreatedAt,
		&cert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cert.PublicKeyJWK = jwkJSON
	cert.Status = certDomain.Status(status)
	return &cert, nil
}

// uniqueViolation maps a certificates unique violation to the constraint it broke.
func uniqueViolation(err error) error {
	if database.IsUniqueViolationOn(err, "certificates_org_label_key") {
		return certDomain.ErrCertificateLabelConflict
	}
	return certDomain.ErrCertificateFingerprintConflict
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return certDomain.ErrCertificateNotFound
	}
	return nil
}
