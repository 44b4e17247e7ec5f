// Package domain defines the append-only audit log written by every state-changing
// lifecycle operation.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of fact an audit entry records.
type Action string

// Audit actions.
const (
	ActionCertUploaded      Action = "CERT_UPLOADED"
	ActionCertRotated       Action = "CERT_ROTATED"
	ActionCertRevoked       Action = "CERT_REVOKED"
	ActionCertExpired       Action = "CERT_EXPIRED"
	ActionDocCreated        Action = "DOC_CREATED"
	ActionDocDraftUpdated   Action = "DOC_DRAFT_UPDATED"
	ActionDocVMRemoved      Action = "DOC_VM_REMOVED"
	ActionDocSubmitted      Action = "DOC_SUBMITTED"
	ActionDocApproved       Action = "DOC_APPROVED"
	ActionDocRejected       Action = "DOC_REJECTED"
	ActionDocSigned         Action = "DOC_SIGNED"
	ActionDocPublished      Action = "DOC_PUBLISHED"
	ActionDocDeactivated    Action = "DOC_DEACTIVATED"
	ActionOrgCreated        Action = "ORG_CREATED"
	ActionOrgMemberAdded    Action = "ORG_MEMBER_ADDED"
	ActionPlatformBootstrap Action = "PLATFORM_DID_BOOTSTRAPPED"
)

// TargetType is the kind of entity an audit entry refers to.
type TargetType string

// Audit target types.
const (
	TargetCertificate  TargetType = "CERTIFICATE"
	TargetDIDDocument  TargetType = "DID_DOCUMENT"
	TargetOrganization TargetType = "ORGANIZATION"
	TargetPlatform     TargetType = "PLATFORM"
)

// AuditLog is an immutable, signed fact. OrganizationID is nil for platform-scope events and
// ActorID is nil for automatic actions or deleted actors.
type AuditLog struct {
	ID             uuid.UUID
	OrganizationID *uuid.UUID
	ActorID        *uuid.UUID
	ActorEmail     string
	Action         Action
	TargetType     TargetType
	TargetID       uuid.UUID
	Metadata       map[string]any
	Automatic      bool
	Signature      []byte
	CreatedAt      time.Time
}

// Filter narrows audit log listings. Nil fields are ignored; time bounds are inclusive.
type Filter struct {
	OrganizationID *uuid.UUID
	TargetID       *uuid.UUID
	Action         *Action
	CreatedAtFrom  *time.Time
	CreatedAtTo    *time.Time
}
