// Package usecase implements the DID document lifecycle: drafting, four-eyes review,
// publication through the signer and registrar, deactivation and the repairs triggered by
// certificate rotation and revocation.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// DocumentRepository persists documents and their version rows.
type DocumentRepository interface {
	Create(ctx context.Context, doc *docDomain.Document) error
	Update(ctx context.Context, doc *docDomain.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*docDomain.Document, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*docDomain.Document, error)
	GetByLabel(ctx context.Context, organizationID uuid.UUID, label string) (*docDomain.Document, error)
	List(ctx context.Context, organizationID uuid.UUID, offset, limit int) ([]*docDomain.Document, error)
	ListReferencingCertificate(ctx context.Context, certificateID uuid.UUID) ([]*docDomain.Document, error)
	CreateVersion(ctx context.Context, version *docDomain.DocumentVersion) error
	FinalizeVersion(ctx context.Context, version *docDomain.DocumentVersion) error
	GetVersion(ctx context.Context, documentID uuid.UUID, version int) (*docDomain.DocumentVersion, error)
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]*docDomain.DocumentVersion, error)
}

// VerificationMethodRepository persists verification methods.
type VerificationMethodRepository interface {
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, methods []*docDomain.VerificationMethod) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*docDomain.VerificationMethod, error)
	DeactivateByCertificate(ctx context.Context, documentID, certificateID uuid.UUID, now time.Time) (int64, error)
}

// CertificateReader loads referenced certificates. GetByIDForShare holds a shared row lock
// until the transaction ends.
type CertificateReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error)
	GetByIDForShare(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error)
}

// OrganizationRepository loads and locks organizations.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error)
	LockByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error)
}

// Signer returns a detached JWS over the canonical document bytes.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (string, error)
}

// Registrar publishes DID operations.
type Registrar interface {
	Create(ctx context.Context, didURI string, document json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, didURI string, document json.RawMessage) (json.RawMessage, error)
	Deactivate(ctx context.Context, didURI string) (json.RawMessage, error)
}

// EventPublisher enqueues work items in the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// CacheInvalidator drops cached resolver responses for a document.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, organizationSlug, label string) error
}

// MethodInput describes a verification method to bind.
type MethodInput struct {
	CertificateID uuid.UUID
	Fragment      string
	MethodType    string
	Relationships []docDomain.Relationship
}

// CreateInput describes a new document.
type CreateInput struct {
	OrganizationID uuid.UUID
	Actor          authz.Actor
	Label          string
	Methods        []MethodInput
	Services       []docDomain.Service
}

// UpdateDraftInput edits the working body. Nil fields are left unchanged.
type UpdateDraftInput struct {
	DocumentID uuid.UUID
	Actor      authz.Actor
	Methods    *[]MethodInput
	Services   *[]docDomain.Service
}

// TransitionInput moves a document through review, publication or deactivation. Comment
// holds the review comment, the rejection reason or the deactivation reason.
type TransitionInput struct {
	DocumentID uuid.UUID
	Actor      authz.Actor
	Comment    string
}

// CascadeOutcome is what a certificate revocation did to one document.
type CascadeOutcome string

// Cascade outcomes.
const (
	OutcomeUnchanged   CascadeOutcome = "unchanged"
	OutcomeDetached    CascadeOutcome = "detached"
	OutcomeDeactivated CascadeOutcome = "deactivated"
)

// DocumentUseCase defines the document lifecycle operations.
type DocumentUseCase interface {
	// Create validates the methods against the organization's ACTIVE certificates, reserves the
	// label under the organization lock and stores the document at DRAFT version 1.
	Create(ctx context.Context, input CreateInput) (*docDomain.Document, error)

	// UpdateDraft reassembles the working body. PUBLISHED documents keep serving content and
	// collect changes in draft content.
	UpdateDraft(ctx context.Context, input UpdateDraftInput) (*docDomain.Document, error)

	Submit(ctx context.Context, input TransitionInput) (*docDomain.Document, error)
	Approve(ctx context.Context, input TransitionInput) (*docDomain.Document, error)

	// Reject records the reason and returns the document to DRAFT.
	Reject(ctx context.Context, input TransitionInput) (*docDomain.Document, error)

	// Publish signs and registers the working body under the document lock. Nothing is
	// persisted unless every external call succeeded.
	Publish(ctx context.Context, input TransitionInput) (*docDomain.Document, error)

	// Deactivate calls the registrar first and leaves the document untouched on failure.
	Deactivate(ctx context.Context, input TransitionInput) (*docDomain.Document, error)

	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*docDomain.Document, error)
	GetByLabel(ctx context.Context, actor authz.Actor, organizationID uuid.UUID, label string) (*docDomain.Document, error)
	List(
		ctx context.Context,
		actor authz.Actor,
		organizationID uuid.UUID,
		offset, limit int,
	) ([]*docDomain.Document, error)
	ListMethods(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]*docDomain.VerificationMethod, error)
	ListVersions(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]*docDomain.DocumentVersion, error)
	GetVersion(ctx context.Context, actor authz.Actor, id uuid.UUID, version int) (*docDomain.DocumentVersion, error)

	// RefreshCertificate reassembles the working body after the certificate's key material
	// changed. It is a no-op when the body is already current.
	RefreshCertificate(ctx context.Context, documentID, certificateID uuid.UUID) error

	// ApplyCertificateRevocation auto-deactivates a PUBLISHED document or detaches the revoked
	// certificate's methods from a draft. Re-running it is a no-op.
	ApplyCertificateRevocation(
		ctx context.Context,
		documentID uuid.UUID,
		cert *certDomain.Certificate,
	) (CascadeOutcome, error)
}
