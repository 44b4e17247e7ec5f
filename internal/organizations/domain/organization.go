// Package domain defines organizations and their members. Organizations own every
// certificate and DID document and scope the fingerprint and label uniqueness rules.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// slugPattern matches URL-safe slugs usable as a did:web path segment.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,118}[a-z0-9]$`)

// Organization is the tenant owning certificates and documents.
type Organization struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role is a member's role inside an organization.
type Role string

// Organization roles.
const (
	RoleOrgAdmin  Role = "ORG_ADMIN"
	RoleOrgMember Role = "ORG_MEMBER"
	RoleAuditor   Role = "AUDITOR"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOrgAdmin, RoleOrgMember, RoleAuditor:
		return true
	}
	return false
}

// Member links a user to an organization with a role. Email is denormalized for audit
// and notification purposes.
type Member struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Email          string
	Role           Role
	CreatedAt      time.Time
}

// NormalizeSlug lower-cases and trims a slug candidate.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidSlug reports whether slug is usable as an organization slug.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}
