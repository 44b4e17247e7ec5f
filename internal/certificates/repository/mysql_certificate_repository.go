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

// MySQLCertificateRepository implements certificate persistence for MySQL with BINARY(16) UUIDs.
type MySQLCertificateRepository struct {
	db *sql.DB
}

// NewMySQLCertificateRepository creates a new MySQL certificate repository.
func NewMySQLCertificateRepository(db *sql.DB) *MySQLCertificateRepository {
	return &MySQLCertificateRepository{db: db}
}

// Create inserts a certificate. A duplicate fingerprint or label within the organization
// maps to ErrCertificateFingerprintConflict or ErrCertificateLabelConflict.
func (m *MySQLCertificateRepository) Create(ctx context.Context, cert *certDomain.Certificate) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO certificates (` + certificateColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(cert.ID),
		database.UUIDBytes(cert.OrganizationID),
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
		database.NullableUUIDBytes(cert.RevokedBy),
		cert.RevocationReason,
		database.NullableUUIDBytes(cert.CreatedBy),
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

// Update overwrites every mutable column of the certificate. MySQL reports changed rather
// than matched rows, so a missing row is not detected here; callers update rows they locked.
func (m *MySQLCertificateRepository) Update(ctx context.Context, cert *certDomain.Certificate) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE certificates
			  SET label = ?, fingerprint = ?, subject_dn = ?, issuer_dn = ?, serial_number = ?,
				not_valid_before = ?, not_valid_after = ?, pem = ?, public_key_jwk = ?, key_type = ?,
				key_curve = ?, key_size = ?, status = ?, version = ?, revoked_at = ?, revoked_by = ?,
				revocation_reason = ?, updated_at = ?
			  WHERE id = ?`

	_, err := querier.ExecContext(
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
		database.NullableUUIDBytes(cert.RevokedBy),
		cert.RevocationReason,
		cert.UpdatedAt,
		database.UUIDBytes(cert.ID),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return uniqueViolation(err)
		}
		return apperrors.Wrap(err, "failed to update certificate")
	}
	return nil
}

// GetByID retrieves a certificate by id.
func (m *MySQLCertificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = ?`
	return m.getOne(ctx, query, database.UUIDBytes(id))
}

// GetByIDForUpdate retrieves a certificate and locks its row until the transaction ends.
func (m *MySQLCertificateRepository) GetByIDForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = ? FOR UPDATE`
	return m.getOne(ctx, query, database.UUIDBytes(id))
}

// GetByFingerprint retrieves the organization's certificate with the given fingerprint.
func (m *MySQLCertificateRepository) GetByFingerprint(
	ctx context.Context,
	organizationID uuid.UUID,
	fingerprint string,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE organization_id = ? AND fingerprint = ?`
	return m.getOne(ctx, query, database.UUIDBytes(organizationID), fingerprint)
}

// GetByLabel retrieves the organization's certificate with the given label.
func (m *MySQLCertificateRepository) GetByLabel(
	ctx context.Context,
	organizationID uuid.UUID,
	label string,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE organization_id = ? AND label = ?`
	return m.getOne(ctx, query, database.UUIDBytes(organizationID), label)
}

// GetByIDForShare retrieves a certificate and holds a shared lock on its row until the
// transaction ends, so a concurrent revocation waits for the reader to commit.
func (m *MySQLCertificateRepository) GetByIDForShare(
	ctx context.Context,
	id uuid.UUID,
) (*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = ? LOCK IN SHARE MODE`
	return m.getOne(ctx, query, database.UUIDBytes(id))
}

// List returns the organization's certificates ordered by creation.
func (m *MySQLCertificateRepository) List(
	ctx context.Context,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates
			  WHERE organization_id = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	return m.getMany(ctx, query, database.UUIDBytes(organizationID), limit, offset)
}

// ListExpired returns ACTIVE certificates whose validity ended before now.
func (m *MySQLCertificateRepository) ListExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*certDomain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates
			  WHERE status = ? AND not_valid_after < ? ORDER BY not_valid_after ASC LIMIT ?`
	return m.getMany(ctx, query, string(certDomain.StatusActive), now, limit)
}

// CreateVersion inserts an immutable version snapshot.
func (m *MySQLCertificateRepository) CreateVersion(
	ctx context.Context,
	version *certDomain.CertificateVersion,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO certificate_versions (` + certificateVersionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(version.ID),
		database.UUIDBytes(version.CertificateID),
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
		database.NullableUUIDBytes(version.CreatedBy),
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
func (m *MySQLCertificateRepository) ListVersions(
	ctx context.Context,
	certificateID uuid.UUID,
) ([]*certDomain.CertificateVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + certificateVersionColumns + ` FROM certificate_versions
			  WHERE certificate_id = ? ORDER BY version ASC`

	rows, err := querier.QueryContext(ctx, query, database.UUIDBytes(certificateID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list certificate versions")
	}
	defer func() {
		_ = rows.Close()
	}()

	versions := make([]*certDomain.CertificateVersion, 0)
	for rows.Next() {
		var v certDomain.CertificateVersion
		var idBytes, certIDBytes, createdByBytes, jwkJSON []byte
		err := rows.Scan(
			&idBytes,
			&certIDBytes,
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
			&createdByBytes,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan certificate version")
		}
		if v.ID, err = database.UUIDFromBytes(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode certificate version id")
		}
		if v.CertificateID, err = database.UUIDFromBytes(certIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode certificate id")
		}
		if v.CreatedBy, err = database.NullableUUIDFromBytes(createdByBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode certificate version creator")
		}
		v.PublicKeyJWK = jwkJSON
		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate certificate versions")
	}
	return versions, nil
}

func (m *MySQLCertificateRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*certDomain.Certificate, error) {
	querier := database.GetTx(ctx, m.db)

	cert, err := scanMySQLCertificate(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, certDomain.ErrCertificateNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get certificate")
	}
	return cert, nil
}

func (m *MySQLCertificateRepository) getMany(
	ctx context.Context,
	query string,
	args ...any,
) ([]*certDomain.Certificate, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list certificates")
	}
	defer func() {
		_ = rows.Close()
	}()

	certs := make([]*certDomain.Certificate, 0)
	for rows.Next() {
		cert, err := scanMySQLCertificate(rows)
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

func scanMySQLCertificate(row rowScanner) (*certDomain.Certificate, error) {
	var cert certDomain.Certificate
	var idBytes, orgIDBytes, revokedByBytes, createdByBytes, jwkJSON []byte
	var status string

	err := row.Scan(
		&idBytes,
		&orgIDBytes,
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
		&revokedByBytes,
		&cert.RevocationReason,
		&createdByBytes,
		&cert.CreatedAt,
		&cert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cert.ID, err = database.UUIDFromBytes(idBytes); err != nil {
		return nil, err
	}
	if cert.OrganizationID, err = database.UUIDFromBytes(orgIDBytes); err != nil {
		return nil, err
	}
	if cert.RevokedBy, err = database.NullableUUIDFromBytes(revokedByBytes); err != nil {
		return nil, err
	}
	if cert.CreatedBy, err = database.NullableUUIDFromBytes(createdByBytes); err != nil {
		return nil, err
	}

	cert.PublicKeyJWK = jwkJSON
	cert.Status = certDomain.Status(status)
	return &cert, nil
}
