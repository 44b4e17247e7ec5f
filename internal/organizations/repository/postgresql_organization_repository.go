// Package repository implements organization persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// PostgreSQLOrganizationRepository implements organization persistence for PostgreSQL.
type PostgreSQLOrganizationRepository struct {
	db *sql.DB
}

// NewPostgreSQLOrganizationRepository creates a new PostgreSQLOrganizationRepository.
func NewPostgreSQLOrganizationRepository(db *sql.DB) *PostgreSQLOrganizationRepository {
	return &PostgreSQLOrganizationRepository{db: db}
}

// Create inserts a new organization.
func (r *PostgreSQLOrganizationRepository) Create(ctx context.Context, org *orgDomain.Organization) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO organizations (id, slug, name, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, org.ID, org.Slug, org.Name, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return orgDomain.ErrOrganizationSlugConflict
		}
		return apperrors.Wrap(err, "failed to create organization")
	}
	return nil
}

// GetByID retrieves an organization by id.
func (r *PostgreSQLOrganizationRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*orgDomain.Organization, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM organizations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetBySlug retrieves an organization by slug.
func (r *PostgreSQLOrganizationRepository) GetBySlug(
	ctx context.Context,
	slug string,
) (*orgDomain.Organization, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM organizations WHERE slug = $1`
	return r.getOne(ctx, query, slug)
}

// LockByID takes a row lock on the organization until the surrounding transaction ends.
// It serializes writers of the organization-scoped fingerprint and label indexes.
func (r *PostgreSQLOrganizationRepository) LockByID(
	ctx context.Context,
	id uuid.UUID,
) (*orgDomain.Organization, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM organizations WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgreSQLOrganizationRepository) getOne(
	ctx context.Context,
	query string,
	arg any,
) (*orgDomain.Organization, error) {
	querier := database.GetTx(ctx, r.db)

	var org orgDomain.Organization
	err := querier.QueryRowContext(ctx, query, arg).Scan(
		&org.ID,
		&org.Slug,
		&org.Name,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orgDomain.ErrOrganizationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get organization")
	}
	return &org, nil
}

// UpsertMember creates or updates a membership.
func (r *PostgreSQLOrganizationRepository) UpsertMember(ctx context.Context, member *orgDomain.Member) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO organization_members (organization_id, user_id, email, role, created_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (organization_id, user_id) DO UPDATE SET email = EXCLUDED.email, role = EXCLUDED.role`

	_, err := querier.ExecContext(
		ctx,
		query,
		member.OrganizationID,
		member.UserID,
		member.Email,
		member.Role,
		member.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return orgDomain.ErrOrganizationNotFound
		}
		return apperrors.Wrap(err, "failed to upsert organization member")
	}
	return nil
}

// GetMember retrieves a user's membership in an organization.
func (r *PostgreSQLOrganizationRepository) GetMember(
	ctx context.Context,
	organizationID, userID uuid.UUID,
) (*orgDomain.Member, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT organization_id, user_id, email, role, created_at
			  FROM organization_members
			  WHERE organization_id = $1 AND user_id = $2`

	var member orgDomain.Member
	err := querier.QueryRowContext(ctx, query, organizationID, userID).Scan(
		&member.OrganizationID,
		&member.UserID,
		&member.Email,
		&member.Role,
		&member.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orgDomain.ErrMemberNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get organization member")
	}
	return &member, nil
}

// ListMembersByRole lists the members holding one of roles.
func (r *PostgreSQLOrganizationRepository) ListMembersByRole(
	ctx context.Context,
	organizationID uuid.UUID,
	roles ...orgDomain.Role,
) ([]*orgDomain.Member, error) {
	querier := database.GetTx(ctx, r.db)

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	query := `SELECT organization_id, user_id, email, role, created_at
			  FROM organization_members
			  WHERE organization_id = $1 AND role = ANY($2)
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, organizationID, pq.Array(names))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list organization members")
	}
	defer rows.Close() //nolint:errcheck

	var members []*orgDomain.Member
	for rows.Next() {
		var member orgDomain.Member
		if err := rows.Scan(
			&member.OrganizationID,
			&member.UserID,
			&member.Email,
			&member.Role,
			&member.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan organization member")
		}
		members = append(members, &member)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate organization members")
	}
	return members, nil
}
