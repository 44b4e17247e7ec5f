package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/didregistry/internal/authz"
	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	orgUseCase "github.com/allisson/didregistry/internal/organizations/usecase"
)

func TestRunCreateOrganization(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.Must(uuid.NewV7())
	org := &orgDomain.Organization{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      "acme",
		Name:      "Acme Corp",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("Success_SystemActor", func(t *testing.T) {
		organizations := &mockOrganizationUseCase{}
		organizations.On("Create", ctx, mock.MatchedBy(func(in orgUseCase.CreateInput) bool {
			return in.Actor.IsSystem() && in.Slug == "acme" && in.AdminID == adminID &&
				in.AdminEmail == "admin@acme.example"
		})).Return(org, nil)

		var out bytes.Buffer
		err := RunCreateOrganization(
			ctx, organizations, discardLogger(), &out,
			"acme", "Acme Corp", adminID.String(), "admin@acme.example", "text",
		)
		require.NoError(t, err)
		assert.Contains(t, out.String(), org.ID.String())
		organizations.AssertExpectations(t)
	})

	t.Run("Success_JSON", func(t *testing.T) {
		organizations := &mockOrganizationUseCase{}
		organizations.On("Create", ctx, mock.Anything).Return(org, nil)

		var out bytes.Buffer
		err := RunCreateOrganization(
			ctx, organizations, discardLogger(), &out,
			"acme", "Acme Corp", adminID.String(), "admin@acme.example", "json",
		)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "acme", decoded["slug"])
	})

	t.Run("Error_InvalidAdminID", func(t *testing.T) {
		err := RunCreateOrganization(
			ctx, &mockOrganizationUseCase{}, discardLogger(), &bytes.Buffer{},
			"acme", "Acme Corp", "not-a-uuid", "admin@acme.example", "text",
		)
		assert.ErrorContains(t, err, "invalid admin id")
	})

	t.Run("Error_Conflict", func(t *testing.T) {
		organizations := &mockOrganizationUseCase{}
		organizations.On("Create", ctx, mock.Anything).Return(nil, apperrors.ErrConflict)

		err := RunCreateOrganization(
			ctx, organizations, discardLogger(), &bytes.Buffer{},
			"acme", "Acme Corp", adminID.String(), "admin@acme.example", "text",
		)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestRunAddMember(t *testing.T) {
	ctx := context.Background()
	org := &orgDomain.Organization{ID: uuid.Must(uuid.NewV7()), Slug: "acme"}
	userID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		organizations := &mockOrganizationUseCase{}
		organizations.On("GetBySlug", ctx, "acme").Return(org, nil)
		organizations.On("AddMember", ctx, orgUseCase.AddMemberInput{
			OrganizationID: org.ID,
			Actor:          authz.System(),
			UserID:         userID,
			Email:          "auditor@acme.example",
			Role:           orgDomain.RoleAuditor,
		}).Return(&orgDomain.Member{
			OrganizationID: org.ID,
			UserID:         userID,
			Email:          "auditor@acme.example",
			Role:           orgDomain.RoleAuditor,
		}, nil)

		var out bytes.Buffer
		err := RunAddMember(
			ctx, organizations, discardLogger(), &out,
			"acme", userID.String(), "auditor@acme.example", "AUDITOR", "text",
		)
		require.NoError(t, err)
		assert.Equal(t, "auditor@acme.example is now AUDITOR of acme\n", out.String())
		organizations.AssertExpectations(t)
	})

	t.Run("Error_UnknownOrganization", func(t *testing.T) {
		organizations := &mockOrganizationUseCase{}
		organizations.On("GetBySlug", ctx, "nope").Return(nil, orgDomain.ErrOrganizationNotFound)

		err := RunAddMember(
			ctx, organizations, discardLogger(), &bytes.Buffer{},
			"nope", userID.String(), "auditor@acme.example", "AUDITOR", "text",
		)
		assert.ErrorIs(t, err, orgDomain.ErrOrganizationNotFound)
		organizations.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything)
	})

	t.Run("Error_InvalidUserID", func(t *testing.T) {
		err := RunAddMember(
			ctx, &mockOrganizationUseCase{}, discardLogger(), &bytes.Buffer{},
			"acme", "bogus", "auditor@acme.example", "AUDITOR", "text",
		)
		assert.ErrorContains(t, err, "invalid user id")
	})
}
