// Package authz implements the capability check called at every lifecycle operation
// boundary: (actor, organization, permission) -> allow or ErrForbidden.
package authz

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// SystemEmail is recorded as the actor email for automatic actions.
const SystemEmail = "system"

// Actor identifies who performs an operation. The zero ID denotes the system.
type Actor struct {
	ID    uuid.UUID
	Email string
}

// System returns the actor used by background work (cascade, expiry, bootstrap).
func System() Actor {
	return Actor{ID: uuid.Nil, Email: SystemEmail}
}

// IsSystem reports whether a is the system actor.
func (a Actor) IsSystem() bool {
	return a.ID == uuid.Nil
}

// IDPtr returns a pointer to the actor id, or nil for the system actor.
func (a Actor) IDPtr() *uuid.UUID {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}

// Permission names an action guarded by the capability check.
type Permission string

// Permissions.
const (
	PermViewDocuments      Permission = "VIEW_DOCUMENTS"
	PermMutateDocuments    Permission = "MUTATE_DOCUMENTS"
	PermReviewDocuments    Permission = "REVIEW_DOCUMENTS"
	PermSkipReview         Permission = "SKIP_REVIEW"
	PermViewCertificates   Permission = "VIEW_CERTIFICATES"
	PermMutateCertificates Permission = "MUTATE_CERTIFICATES"
	PermRevokeCertificates Permission = "REVOKE_CERTIFICATES"
	PermManageMembers      Permission = "MANAGE_MEMBERS"
	PermViewAudits         Permission = "VIEW_AUDITS"
)

var rolePermissions = map[orgDomain.Role]map[Permission]bool{
	orgDomain.RoleOrgAdmin: {
		PermViewDocuments:      true,
		PermMutateDocuments:    true,
		PermReviewDocuments:    true,
		PermSkipReview:         true,
		PermViewCertificates:   true,
		PermMutateCertificates: true,
		PermRevokeCertificates: true,
		PermManageMembers:      true,
		PermViewAudits:         true,
	},
	orgDomain.RoleOrgMember: {
		PermViewDocuments:      true,
		PermMutateDocuments:    true,
		PermReviewDocuments:    true,
		PermViewCertificates:   true,
		PermMutateCertificates: true,
	},
	orgDomain.RoleAuditor: {
		PermViewDocuments:    true,
		PermViewCertificates: true,
		PermViewAudits:       true,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role orgDomain.Role, perm Permission) bool {
	return rolePermissions[role][perm]
}

// MemberLookup resolves a user's membership in an organization.
type MemberLookup interface {
	GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*orgDomain.Member, error)
}

// Authorizer checks capabilities.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, organizationID uuid.UUID, perm Permission) error
}

type memberAuthorizer struct {
	members MemberLookup
}

// NewAuthorizer returns an Authorizer backed by organization memberships.
func NewAuthorizer(members MemberLookup) Authorizer {
	return &memberAuthorizer{members: members}
}

// Authorize returns nil when actor may perform perm in the organization. Non-members and
// members whose role lacks perm get ErrForbidden.
func (a *memberAuthorizer) Authorize(
	ctx context.Context,
	actor Actor,
	organizationID uuid.UUID,
	perm Permission,
) error {
	if actor.IsSystem() {
		return nil
	}

	member, err := a.members.GetMember(ctx, organizationID, actor.ID)
	if err != nil {
		if apperrors.Is(err, orgDomain.ErrMemberNotFound) {
			return apperrors.Wrap(apperrors.ErrForbidden, "actor is not a member of the organization")
		}
		return err
	}

	if !HasPermission(member.Role, perm) {
		return apperrors.Wrap(apperrors.ErrForbidden, "missing permission "+string(perm))
	}
	return nil
}
