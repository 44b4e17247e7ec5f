// Package usecase implements the certificate lifecycle: upload, rotation with version
// archiving, revocation and expiry.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// CertificateRepository persists certificates and their version history.
type CertificateRepository interface {
	Create(ctx context.Context, cert *certDomain.Certificate) error
	Update(ctx context.Context, cert *certDomain.Certificate) error
	GetByID(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error)
	GetByIDForShare(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error)
	GetByFingerprint(ctx context.Context, organizationID uuid.UUID, fingerprint string) (*certDomain.Certificate, error)
	GetByLabel(ctx context.Context, organizationID uuid.UUID, label string) (*certDomain.Certificate, error)
	List(ctx context.Context, organizationID uuid.UUID, offset, limit int) ([]*certDomain.Certificate, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*certDomain.Certificate, error)
	CreateVersion(ctx context.Context, version *certDomain.CertificateVersion) error
	ListVersions(ctx context.Context, certificateID uuid.UUID) ([]*certDomain.CertificateVersion, error)
}

// OrganizationLocker serializes writers of organization-scoped indexes.
type OrganizationLocker interface {
	LockByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error)
}

// CertificateParser extracts key material from a PEM certificate.
type CertificateParser interface {
	Parse(ctx context.Context, pem string) (*certDomain.ParsedCertificate, error)
}

// EventPublisher enqueues work items in the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// UploadInput describes a new certificate.
type UploadInput struct {
	OrganizationID uuid.UUID
	Actor          authz.Actor
	Label          string
	PEM            string
}

// RotateInput replaces a certificate's key material.
type RotateInput struct {
	CertificateID uuid.UUID
	Actor         authz.Actor
	PEM           string
	ChangeSummary string
}

// RevokeInput revokes a certificate.
type RevokeInput struct {
	CertificateID uuid.UUID
	Actor         authz.Actor
	Reason        string
}

// CertificateUseCase defines the certificate lifecycle operations.
type CertificateUseCase interface {
	// Upload parses the PEM, rejects a fingerprint already present in the organization and
	// stores the certificate at version 1 with its first version row.
	Upload(ctx context.Context, input UploadInput) (*certDomain.Certificate, error)

	// Rotate overwrites the live key material under the certificate row lock, increments the
	// version and queues repair of every draft body that references the certificate.
	Rotate(ctx context.Context, input RotateInput) (*certDomain.Certificate, error)

	// Revoke marks the certificate REVOKED and queues the revocation cascade.
	Revoke(ctx context.Context, input RevokeInput) (*certDomain.Certificate, error)

	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*certDomain.Certificate, error)
	List(
		ctx context.Context,
		actor authz.Actor,
		organizationID uuid.UUID,
		offset, limit int,
	) ([]*certDomain.Certificate, error)
	ListVersions(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]*certDomain.CertificateVersion, error)

	// ExpireDue marks ACTIVE certificates past their validity window as EXPIRED and returns
	// how many changed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}
