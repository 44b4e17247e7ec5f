package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/authz"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	orgUseCase "github.com/allisson/didregistry/internal/organizations/usecase"
)

// RunCreateOrganization creates an organization with its first ORG_ADMIN. Operators act as
// the system actor.
func RunCreateOrganization(
	ctx context.Context,
	organizations orgUseCase.OrganizationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	slug, name, adminID, adminEmail string,
	format string,
) error {
	userID, err := uuid.Parse(adminID)
	if err != nil {
		return fmt.Errorf("invalid admin id: %w", err)
	}

	org, err := organizations.Create(ctx, orgUseCase.CreateInput{
		Actor:      authz.System(),
		Slug:       slug,
		Name:       name,
		AdminID:    userID,
		AdminEmail: adminEmail,
	})
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	logger.Info("organization created",
		slog.String("organization_id", org.ID.String()),
		slog.String("slug", org.Slug),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"id":         org.ID,
			"slug":       org.Slug,
			"name":       org.Name,
			"created_at": org.CreatedAt,
		})
	}

	_, _ = fmt.Fprintf(writer, "Organization created\n")
	_, _ = fmt.Fprintf(writer, "ID:    %s\n", org.ID)
	_, _ = fmt.Fprintf(writer, "Slug:  %s\n", org.Slug)
	_, _ = fmt.Fprintf(writer, "Admin: %s\n", adminEmail)
	return nil
}

// RunAddMember grants a user a role in the organization identified by slug.
func RunAddMember(
	ctx context.Context,
	organizations orgUseCase.OrganizationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	slug, userID, email, role string,
	format string,
) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	org, err := organizations.GetBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("failed to find organization: %w", err)
	}

	member, err := organizations.AddMember(ctx, orgUseCase.AddMemberInput{
		OrganizationID: org.ID,
		Actor:          authz.System(),
		UserID:         id,
		Email:          email,
		Role:           orgDomain.Role(role),
	})
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	logger.Info("member added",
		slog.String("organization_id", org.ID.String()),
		slog.String("user_id", member.UserID.String()),
		slog.String("role", string(member.Role)),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"organization_id": member.OrganizationID,
			"user_id":         member.UserID,
			"email":           member.Email,
			"role":            member.Role,
		})
	}

	_, _ = fmt.Fprintf(writer, "%s is now %s of %s\n", member.Email, member.Role, org.Slug)
	return nil
}
