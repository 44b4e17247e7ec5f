package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	"github.com/allisson/didregistry/internal/authz"
	"github.com/allisson/didregistry/internal/database"
	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	customValidation "github.com/allisson/didregistry/internal/validation"
)

// ErrPlatformOnly indicates a non-system actor tried to create an organization.
var ErrPlatformOnly = apperrors.Wrap(apperrors.ErrForbidden, "only the platform may create organizations")

type organizationUseCase struct {
	txManager  database.TxManager
	orgRepo    OrganizationRepository
	authorizer authz.Authorizer
	audit      auditUseCase.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrganizationUseCase creates a new OrganizationUseCase.
func NewOrganizationUseCase(
	txManager database.TxManager,
	orgRepo OrganizationRepository,
	authorizer authz.Authorizer,
	audit auditUseCase.Recorder,
	logger *slog.Logger,
) OrganizationUseCase {
	return &organizationUseCase{
		txManager:  txManager,
		orgRepo:    orgRepo,
		authorizer: authorizer,
		audit:      audit,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Create inserts the organization and its first ORG_ADMIN. Creating organizations is a
// platform operation, so only the system actor may call it.
func (o *organizationUseCase) Create(ctx context.Context, input CreateInput) (*orgDomain.Organization, error) {
	input.Slug = orgDomain.NormalizeSlug(input.Slug)
	input.Name = strings.TrimSpace(input.Name)
	input.AdminEmail = strings.TrimSpace(input.AdminEmail)
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Slug, validation.Required, customValidation.Label),
		validation.Field(&input.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&input.AdminID, customValidation.RequiredUUID),
		validation.Field(&input.AdminEmail, validation.Required, customValidation.Email),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}
	if !input.Actor.IsSystem() {
		return nil, ErrPlatformOnly
	}

	now := o.now()
	org := &orgDomain.Organization{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      input.Slug,
		Name:      input.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := &orgDomain.Member{
		OrganizationID: org.ID,
		UserID:         input.AdminID,
		Email:          input.AdminEmail,
		Role:           orgDomain.RoleOrgAdmin,
		CreatedAt:      now,
	}

	err = o.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := o.orgRepo.Create(ctx, org); err != nil {
			return err
		}
		if err := o.orgRepo.UpsertMember(ctx, admin); err != nil {
			return err
		}
		if err := o.record(ctx, input.Actor, org.ID, auditDomain.ActionOrgCreated, map[string]any{
			"slug": org.Slug,
			"name": org.Name,
		}); err != nil {
			return err
		}
		return o.record(ctx, input.Actor, org.ID, auditDomain.ActionOrgMemberAdded, memberMetadata(admin))
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("organization created",
		slog.String("organization_id", org.ID.String()),
		slog.String("slug", org.Slug),
	)
	return org, nil
}

func (o *organizationUseCase) AddMember(ctx context.Context, input AddMemberInput) (*orgDomain.Member, error) {
	input.Email = strings.TrimSpace(input.Email)
	err := validation.ValidateStruct(&input,
		validation.Field(&input.OrganizationID, customValidation.RequiredUUID),
		validation.Field(&input.UserID, customValidation.RequiredUUID),
		validation.Field(&input.Email, validation.Required, customValidation.Email),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}
	if !input.Role.Valid() {
		return nil, orgDomain.ErrInvalidRole
	}

	if err := o.authorizer.Authorize(ctx, input.Actor, input.OrganizationID, authz.PermManageMembers); err != nil {
		return nil, err
	}

	member := &orgDomain.Member{
		OrganizationID: input.OrganizationID,
		UserID:         input.UserID,
		Email:          input.Email,
		Role:           input.Role,
		CreatedAt:      o.now(),
	}

	err = o.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := o.orgRepo.LockByID(ctx, input.OrganizationID); err != nil {
			return err
		}
		if err := o.orgRepo.UpsertMember(ctx, member); err != nil {
			return err
		}
		return o.record(ctx, input.Actor, input.OrganizationID, auditDomain.ActionOrgMemberAdded, memberMetadata(member))
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("organization member added",
		slog.String("organization_id", member.OrganizationID.String()),
		slog.String("user_id", member.UserID.String()),
		slog.String("role", string(member.Role)),
	)
	return member, nil
}

func (o *organizationUseCase) GetBySlug(ctx context.Context, slug string) (*orgDomain.Organization, error) {
	return o.orgRepo.GetBySlug(ctx, orgDomain.NormalizeSlug(slug))
}

func (o *organizationUseCase) record(
	ctx context.Context,
	actor authz.Actor,
	orgID uuid.UUID,
	action auditDomain.Action,
	metadata map[string]any,
) error {
	return o.audit.Record(ctx, auditUseCase.Entry{
		OrganizationID: &orgID,
		Actor:          actor,
		Action:         action,
		TargetType:     auditDomain.TargetOrganization,
		TargetID:       orgID,
		Metadata:       metadata,
		Automatic:      actor.IsSystem(),
	})
}

func memberMetadata(member *orgDomain.Member) map[string]any {
	return map[string]any{
		"user_id": member.UserID.String(),
		"email":   member.Email,
		"role":    string(member.Role),
	}
}
