package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditService "github.com/allisson/didregistry/internal/audit/service"
	"github.com/allisson/didregistry/internal/authz"
)

type mockAuditLogRepository struct {
	mock.Mock
}

func (m *mockAuditLogRepository) Create(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	args := m.Called(ctx, auditLog)
	return args.Error(0)
}

func (m *mockAuditLogRepository) List(
	ctx context.Context,
	filter auditDomain.Filter,
	offset, limit int,
) ([]*auditDomain.AuditLog, error) {
	args := m.Called(ctx, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditLog), args.Error(1)
}

func newSigner(t *testing.T) auditService.AuditSigner {
	t.Helper()
	signer, err := auditService.NewAuditSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return signer
}

func TestAuditLogUseCase_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_SignedEntry", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		signer := newSigner(t)
		uc := NewAuditLogUseCase(repo, signer)

		orgID := uuid.Must(uuid.NewV7())
		actor := authz.Actor{ID: uuid.Must(uuid.NewV7()), Email: "alice@acme.test"}
		targetID := uuid.Must(uuid.NewV7())

		var captured *auditDomain.AuditLog
		repo.On("Create", ctx, mock.AnythingOfType("*domain.AuditLog")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(*auditDomain.AuditLog)
			}).
			Return(nil).
			Once()

		err := uc.Record(ctx, Entry{
			OrganizationID: &orgID,
			Actor:          actor,
			Action:         auditDomain.ActionCertUploaded,
			TargetType:     auditDomain.TargetCertificate,
			TargetID:       targetID,
			Metadata:       map[string]any{"label": "cert-A"},
		})
		require.NoError(t, err)
		require.NotNil(t, captured)

		assert.Equal(t, actor.ID, *captured.ActorID)
		assert.Equal(t, "alice@acme.test", captured.ActorEmail)
		assert.Equal(t, targetID, captured.TargetID)
		assert.Equal(t, time.UTC, captured.CreatedAt.Location())
		assert.Zero(t, captured.CreatedAt.Nanosecond()%int(time.Microsecond))
		assert.NotEmpty(t, captured.Signature)
		assert.NoError(t, signer.Verify(captured))
		repo.AssertExpectations(t)
	})

	t.Run("Success_SystemActorHasNoID", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, newSigner(t))

		var captured *auditDomain.AuditLog
		repo.On("Create", ctx, mock.AnythingOfType("*domain.AuditLog")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(*auditDomain.AuditLog)
			}).
			Return(nil).
			Once()

		err := uc.Record(ctx, Entry{
			Actor:      authz.System(),
			Action:     auditDomain.ActionDocDeactivated,
			TargetType: auditDomain.TargetDIDDocument,
			TargetID:   uuid.Must(uuid.NewV7()),
			Automatic:  true,
		})
		require.NoError(t, err)
		assert.Nil(t, captured.ActorID)
		assert.Equal(t, authz.SystemEmail, captured.ActorEmail)
		assert.True(t, captured.Automatic)
	})

	t.Run("Error_RepositoryFailure", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, newSigner(t))
		dbErr := errors.New("db down")

		repo.On("Create", ctx, mock.Anything).Return(dbErr).Once()

		err := uc.Record(ctx, Entry{Actor: authz.System(), TargetID: uuid.Must(uuid.NewV7())})
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestAuditLogUseCase_Verify(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	filter := auditDomain.Filter{CreatedAtFrom: &from, CreatedAtTo: &to}

	t.Run("Success_DetectsTampering", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		signer := newSigner(t)
		uc := NewAuditLogUseCase(repo, signer)

		good := &auditDomain.AuditLog{
			ID:         uuid.Must(uuid.NewV7()),
			ActorEmail: "alice@acme.test",
			Action:     auditDomain.ActionDocPublished,
			TargetType: auditDomain.TargetDIDDocument,
			TargetID:   uuid.Must(uuid.NewV7()),
			CreatedAt:  from.Add(time.Hour),
		}
		sig, err := signer.Sign(good)
		require.NoError(t, err)
		good.Signature = sig

		tampered := *good
		tampered.ID = uuid.Must(uuid.NewV7())
		tampered.Action = auditDomain.ActionDocDeactivated

		repo.On("List", ctx, filter, 0, verifyBatchSize).
			Return([]*auditDomain.AuditLog{good, &tampered}, nil).
			Once()

		report, err := uc.Verify(ctx, from, to)
		require.NoError(t, err)
		assert.Equal(t, 2, report.TotalChecked)
		assert.Equal(t, 1, report.ValidCount)
		assert.Equal(t, 1, report.InvalidCount)
		assert.Equal(t, []uuid.UUID{tampered.ID}, report.InvalidLogs)
	})

	t.Run("Error_ListFailure", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, newSigner(t))

		repo.On("List", ctx, filter, 0, verifyBatchSize).Return(nil, errors.New("boom")).Once()

		_, err := uc.Verify(ctx, from, to)
		assert.Error(t, err)
	})
}
