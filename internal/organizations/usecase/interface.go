// Package usecase creates organizations and manages their memberships.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/authz"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// OrganizationRepository persists organizations and members.
type OrganizationRepository interface {
	Create(ctx context.Context, org *orgDomain.Organization) error
	GetBySlug(ctx context.Context, slug string) (*orgDomain.Organization, error)
	LockByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error)
	UpsertMember(ctx context.Context, member *orgDomain.Member) error
}

// CreateInput describes a new organization and its first administrator.
type CreateInput struct {
	Actor      authz.Actor
	Slug       string
	Name       string
	AdminID    uuid.UUID
	AdminEmail string
}

// AddMemberInput grants a user a role in an organization.
type AddMemberInput struct {
	OrganizationID uuid.UUID
	Actor          authz.Actor
	UserID         uuid.UUID
	Email          string
	Role           orgDomain.Role
}

// OrganizationUseCase manages organizations.
type OrganizationUseCase interface {
	Create(ctx context.Context, input CreateInput) (*orgDomain.Organization, error)
	AddMember(ctx context.Context, input AddMemberInput) (*orgDomain.Member, error)
	GetBySlug(ctx context.Context, slug string) (*orgDomain.Organization, error)
}
