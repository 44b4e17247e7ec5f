package notifications

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

type mockMemberDirectory struct {
	mock.Mock
}

func (m *mockMemberDirectory) GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*orgDomain.Member, error) {
	args := m.Called(ctx, organizationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orgDomain.Member), args.Error(1)
}

func (m *mockMemberDirectory) ListMembersByRole(
	ctx context.Context,
	organizationID uuid.UUID,
	roles ...orgDomain.Role,
) ([]*orgDomain.Member, error) {
	args := m.Called(ctx, organizationID, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*orgDomain.Member), args.Error(1)
}

type recordingNotifier struct {
	messages []Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

func TestService_Handle(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	ownerID := uuid.New()
	adminID := uuid.New()
	logger := slog.New(slog.DiscardHandler)

	base := Request{
		OrganizationID: orgID,
		DocumentID:     uuid.New(),
		DocumentLabel:  "corporate-auth",
		DIDURI:         "did:web:registry.example:acme:corporate-auth",
		OwnerID:        ownerID,
		ActorEmail:     "bob@acme.test",
	}

	t.Run("Success_ReviewRequestedGoesToOtherAdmins", func(t *testing.T) {
		members := &mockMemberDirectory{}
		notifier := &recordingNotifier{}
		members.On("ListMembersByRole", ctx, orgID, []orgDomain.Role{orgDomain.RoleOrgAdmin}).Return([]*orgDomain.Member{
			{UserID: ownerID, Email: "owner@acme.test"},
			{UserID: adminID, Email: "admin@acme.test"},
		}, nil)

		req := base
		req.Kind = KindReviewRequested
		require.NoError(t, NewService(members, notifier, logger).Handle(ctx, req))

		require.Len(t, notifier.messages, 1)
		assert.Equal(t, []string{"admin@acme.test"}, notifier.messages[0].Recipients)
		assert.Equal(t, "Review requested: corporate-auth", notifier.messages[0].Subject)
		members.AssertNotCalled(t, "GetMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success_RejectedGoesToOwnerWithReason", func(t *testing.T) {
		members := &mockMemberDirectory{}
		notifier := &recordingNotifier{}
		members.On("GetMember", ctx, orgID, ownerID).Return(&orgDomain.Member{Email: "owner@acme.test"}, nil)

		req := base
		req.Kind = KindRejected
		req.Reason = "wrong key"
		require.NoError(t, NewService(members, notifier, logger).Handle(ctx, req))

		require.Len(t, notifier.messages, 1)
		assert.Equal(t, []string{"owner@acme.test"}, notifier.messages[0].Recipients)
		assert.Contains(t, notifier.messages[0].Body, "Reason: wrong key")
	})

	t.Run("Success_AutoDeactivatedCopiesAdmins", func(t *testing.T) {
		members := &mockMemberDirectory{}
		notifier := &recordingNotifier{}
		members.On("GetMember", ctx, orgID, ownerID).Return(&orgDomain.Member{Email: "owner@acme.test"}, nil)
		members.On("ListMembersByRole", ctx, orgID, []orgDomain.Role{orgDomain.RoleOrgAdmin}).Return([]*orgDomain.Member{
			{UserID: adminID, Email: "admin@acme.test"},
			{UserID: ownerID, Email: "owner@acme.test"},
		}, nil)

		req := base
		req.Kind = KindAutoDeactivated
		req.Reason = "certificate 'cert-A' revoked"
		require.NoError(t, NewService(members, notifier, logger).Handle(ctx, req))

		require.Len(t, notifier.messages, 1)
		assert.Equal(t, []string{"owner@acme.test", "admin@acme.test"}, notifier.messages[0].Recipients)
		assert.Contains(t, notifier.messages[0].Body, "cert-A")
	})

	t.Run("Success_OwnerGoneDropsMessage", func(t *testing.T) {
		members := &mockMemberDirectory{}
		notifier := &recordingNotifier{}
		members.On("GetMember", ctx, orgID, ownerID).Return(nil, orgDomain.ErrMemberNotFound)

		req := base
		req.Kind = KindPublished
		req.Version = 2
		require.NoError(t, NewService(members, notifier, logger).Handle(ctx, req))
		assert.Empty(t, notifier.messages)
	})

	t.Run("Error_DirectoryFailure", func(t *testing.T) {
		members := &mockMemberDirectory{}
		members.On("GetMember", ctx, orgID, ownerID).Return(nil, errors.New("db down"))

		req := base
		req.Kind = KindApproved
		err := NewService(members, &recordingNotifier{}, logger).Handle(ctx, req)
		assert.EqualError(t, err, "db down")
	})

	t.Run("Error_UnknownKind", func(t *testing.T) {
		req := base
		req.Kind = "bogus"
		err := NewService(&mockMemberDirectory{}, &recordingNotifier{}, logger).Handle(ctx, req)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(slog.New(slog.DiscardHandler))
	assert.NoError(t, n.Notify(context.Background(), Message{Kind: KindPublished, Recipients: []string{"a@b.c"}}))
}
