package domain

import (
	"github.com/allisson/didregistry/internal/errors"
)

// Document-specific error definitions.
var (
	// ErrDocumentNotFound indicates the document does not exist.
	ErrDocumentNotFound = errors.Wrap(errors.ErrNotFound, "document not found")

	// ErrDocumentVersionNotFound indicates the requested version does not exist.
	ErrDocumentVersionNotFound = errors.Wrap(errors.ErrNotFound, "document version not found")

	// ErrDocumentLabelConflict indicates the label is already used in the organization.
	ErrDocumentLabelConflict = errors.Wrap(errors.ErrConflict, "document label already exists in organization")

	// ErrInvalidLabel indicates the label is not a valid DID path segment.
	ErrInvalidLabel = errors.Wrap(
		errors.ErrInvalidInput,
		"label must be 2-120 chars, lowercase alphanumeric and hyphens, starting and ending with a letter or digit",
	)

	// ErrDuplicateFragment indicates two methods share a fragment.
	ErrDuplicateFragment = errors.Wrap(errors.ErrInvalidInput, "duplicate verification method fragment")

	// ErrInvalidRelationship indicates an unknown verification relationship.
	ErrInvalidRelationship = errors.Wrap(errors.ErrInvalidInput, "invalid verification relationship")

	// ErrCertificateNotUsable indicates a referenced certificate is foreign or not ACTIVE.
	ErrCertificateNotUsable = errors.Wrap(
		errors.ErrInvalidInput,
		"certificate must belong to the organization and be ACTIVE",
	)

	// ErrStaleReference indicates a method references a certificate that is no longer ACTIVE.
	ErrStaleReference = errors.Wrap(errors.ErrInvalidInput, "stale reference: certificate is no longer ACTIVE")

	// ErrNoActiveMethods indicates the document has no active verification method.
	ErrNoActiveMethods = errors.Wrap(errors.ErrInvalidInput, "document needs at least one active verification method")

	// ErrSelfReview indicates the owner tried to approve or reject their own document.
	ErrSelfReview = errors.Wrap(errors.ErrInvalidInput, "document owner cannot review their own document")

	// ErrInvalidTransition indicates the operation is not allowed in the current status.
	ErrInvalidTransition = errors.Wrap(errors.ErrStateTransition, "operation not allowed in current document status")

	// ErrNothingToPublish indicates a PUBLISHED document has no differing draft.
	ErrNothingToPublish = errors.Wrap(errors.ErrStateTransition, "no pending changes to publish")
)
