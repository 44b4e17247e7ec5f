package domain

import (
	"github.com/allisson/didregistry/internal/errors"
)

// Organization-specific error definitions.
var (
	// ErrOrganizationNotFound indicates the organization does not exist.
	ErrOrganizationNotFound = errors.Wrap(errors.ErrNotFound, "organization not found")

	// ErrOrganizationSlugConflict indicates another organization already uses the slug.
	ErrOrganizationSlugConflict = errors.Wrap(errors.ErrConflict, "organization slug already exists")

	// ErrInvalidSlug indicates the slug is not URL-safe.
	ErrInvalidSlug = errors.Wrap(errors.ErrInvalidInput, "slug must be 2-120 lowercase alphanumerics or hyphens")

	// ErrInvalidRole indicates an unknown member role.
	ErrInvalidRole = errors.Wrap(errors.ErrInvalidInput, "invalid member role")

	// ErrMemberNotFound indicates the user is not a member of the organization.
	ErrMemberNotFound = errors.Wrap(errors.ErrNotFound, "organization member not found")
)
