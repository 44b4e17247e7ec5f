package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// MySQLOrganizationRepository implements organization persistence for MySQL.
// UUIDs are stored as BINARY(16).
type MySQLOrganizationRepository struct {
	db *sql.DB
}

// NewMySQLOrganizationRepository creates a new MySQLOrganizationRepository.
func NewMySQLOrganizationRepository(db *sql.DB) *MySQLOrganizationRepository {
	return &MySQLOrganizationRepository{db: db}
}

// Create inserts a new organization.
func (r *MySQLOrganizationRepository) Create(ctx context.Context, org *orgDomain.Organization) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO organizations (id, slug, name, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(org.ID),
		org.Slug,
		org.Name,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return orgDomain.ErrOrganizationSlugConflict
		}
		return apperrors.Wrap(err, "failed to create organization")
	}
	return nil
}

// GetByID retrieves an organization by id.
func (r *MySQLOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM organizations WHERE id = ?`
	return r.getOne(ctx, query, database.UUIDBytes(id))
}

// GetBySlug retrieves an organization by slug.
func (r *MySQLOrganizationRepository) GetBySlug(ctx context.Context, slug string) (*orgDomain.Organization, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM organizations WHERE slug = ?`
	return r.getOne(ctx, query, slug)
}

// LockByID takes a row lock on the organization until the surrounding transaction ends.
func (r *MySQLOrganizationRepository) LockByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM organizations WHERE id = ? FOR UPDATE`
	return r.getOne(ctx, query, database.UUIDBytes(id))
}

func (r *MySQLOrganizationRepository) getOne(
	ctx context.Context,
	query string,
	arg any,
) (*orgDomain.Organization, error) {
	querier := database.GetTx(ctx, r.db)

	var org orgDomain.Organization
	var idBytes []byte
	err := querier.QueryRowContext(ctx, query, arg).Scan(
		&idBytes,
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

	if org.ID, err = database.UUIDFromBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode organization id")
	}
	return &org, nil
}

// UpsertMember creates or updates a membership.
func (r *MySQLOrganizationRepository) UpsertMember(ctx context.Context, member *orgDomain.Member) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO organization_members (organization_id, user_id, email, role, created_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE email = VALUES(email), role = VALUES(role)`

	_, err := querier.ExecContext(
		ctx,
		query,
		database.UUIDBytes(member.OrganizationID),
		database.UUIDBytes(member.UserID),
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
func (r *MySQLOrganizationRepository) GetMember(
	ctx context.Context,
	organizationID, userID uuid.UUID,
) (*orgDomain.Member, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT organization_id, user_id, email, role, created_at
			  FROM organization_members
			  WHERE organization_id = ? AND user_id = ?`

	row := querier.QueryRowContext(ctx, query, database.UUIDBytes(organizationID), database.UUIDBytes(userID))
	member, err := scanMySQLMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orgDomain.ErrMemberNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get organization member")
	}
	return member, nil
}

// ListMembersByRole lists the members holding one of roles.
func (r *MySQLOrganizationRepository) ListMembersByRole(
	ctx context.Context,
	organizationID uuid.UUID,
	roles ...orgDomain.Role,
) ([]*orgDomain.Member, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	querier := database.GetTx(ctx, r.db)

	args := []any{database.UUIDBytes(organizationID)}
	for _, role := range roles {
		args = append(args, string(role))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roles)), ", ")

	query := `SELECT organization_id, user_id, email, role, created_at
			  FROM organization_members
			  WHERE organization_id = ? AND role IN (` + placeholders + `)
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list organization members")
	}
	defer rows.Close() //nolint:errcheck

	var members []*orgDomain.Member
	for rows.Next() {
		member, err := scanMySQLMember(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan organization member")
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate organization members")
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLMember(row rowScanner) (*orgDomain.Member, error) {
	var member orgDomain.Member
	var orgIDBytes, userIDBytes []byte
	if err := row.Scan(&orgIDBytes, &userIDBytes, &member.Email, &member.Role, &member.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if member.OrganizationID, err = database.UUIDFromBytes(orgIDBytes); err != nil {
		return nil, err
	}
	if member.UserID, err = database.UUIDFromBytes(userIDBytes); err != nil {
		return nil, err
	}
	return &member, nil
}
