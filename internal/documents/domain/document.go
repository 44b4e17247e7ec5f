// Package domain defines DID documents, their published version history and the
// verification methods that bind them to organization certificates.
package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a DID document.
type Status string

// Document statuses. SIGNED is only observed inside a publish and REJECTED is reverted to
// DRAFT by the reject operation itself.
const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusSigned        Status = "SIGNED"
	StatusPublished     Status = "PUBLISHED"
	StatusDeactivated   Status = "DEACTIVATED"
)

// DefaultServiceType is used for service endpoints submitted without a type.
const DefaultServiceType = "LinkedDomains"

// Service is an editable service endpoint entry.
type Service struct {
	ID              string `json:"id,omitempty"`
	Type            string `json:"type,omitempty"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Document is a DID document. Content is the body the resolver serves once published and
// the working body before that. DraftContent is only set while a PUBLISHED document has a
// next revision in preparation.
type Document struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	Label              string
	DIDURI             string
	Content            json.RawMessage
	DraftContent       json.RawMessage
	Services           []Service
	Status             Status
	Version            int
	OwnerID            uuid.UUID
	SubmittedBy        *uuid.UUID
	SubmittedAt        *time.Time
	ReviewedBy         *uuid.UUID
	ReviewedAt         *time.Time
	ReviewComment      string
	PublishedAt        *time.Time
	DeactivatedAt      *time.Time
	DeactivationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DocumentVersion is the body of one published version. The row for version 1 exists from
// creation and is finalized by the first publish; later rows are written complete.
type DocumentVersion struct {
	ID                uuid.UUID
	DocumentID        uuid.UUID
	Version           int
	Content           json.RawMessage
	Signature         string
	SignedAt          *time.Time
	PublishedAt       *time.Time
	PublishedBy       *uuid.UUID
	RegistrarResponse json.RawMessage
	CreatedAt         time.Time
}

// IsPublished reports whether the version row has been finalized by a publish.
func (v *DocumentVersion) IsPublished() bool {
	return v.PublishedAt != nil
}

// WorkingContent returns the body the next publish would sign.
func (d *Document) WorkingContent() json.RawMessage {
	if d.DraftContent != nil {
		return d.DraftContent
	}
	return d.Content
}

// HasPendingDraft reports whether a PUBLISHED document carries a draft that differs from
// the live body.
func (d *Document) HasPendingDraft() bool {
	return d.DraftContent != nil && !bytes.Equal(d.DraftContent, d.Content)
}

// ClearReview drops submission and review metadata.
func (d *Document) ClearReview() {
	d.SubmittedBy = nil
	d.SubmittedAt = nil
	d.ReviewedBy = nil
	d.ReviewedAt = nil
	d.ReviewComment = ""
}

// SetWorkingContent stores a reassembled body where the current status allows edits. A
// PUBLISHED document collects it in DraftContent; a DEACTIVATED body is frozen.
func (d *Document) SetWorkingContent(body json.RawMessage) {
	switch d.Status {
	case StatusDeactivated:
		return
	case StatusPublished:
		d.DraftContent = body
	default:
		d.Content = body
	}
}

// MarkDeactivated freezes the document. Content keeps the last published body and any
// pending draft is discarded.
func (d *Document) MarkDeactivated(now time.Time, reason string) {
	d.Status = StatusDeactivated
	d.DraftContent = nil
	d.DeactivatedAt = &now
	d.DeactivationReason = reason
	d.UpdatedAt = now
}
