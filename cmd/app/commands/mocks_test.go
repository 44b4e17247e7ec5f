package commands

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	orgUseCase "github.com/allisson/didregistry/internal/organizations/usecase"
	"github.com/allisson/didregistry/internal/platform"
	revocationUseCase "github.com/allisson/didregistry/internal/revocation/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockAuditVerifier struct {
	mock.Mock
}

func (m *mockAuditVerifier) Verify(ctx context.Context, from, to time.Time) (*auditUseCase.VerificationReport, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditUseCase.VerificationReport), args.Error(1)
}

type mockOrganizationUseCase struct {
	mock.Mock
}

func (m *mockOrganizationUseCase) Create(
	ctx context.Context,
	input orgUseCase.CreateInput,
) (*orgDomain.Organization, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orgDomain.Organization), args.Error(1)
}

func (m *mockOrganizationUseCase) AddMember(
	ctx context.Context,
	input orgUseCase.AddMemberInput,
) (*orgDomain.Member, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orgDomain.Member), args.Error(1)
}

func (m *mockOrganizationUseCase) GetBySlug(ctx context.Context, slug string) (*orgDomain.Organization, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orgDomain.Organization), args.Error(1)
}

type mockBootstrapper struct {
	mock.Mock
}

func (m *mockBootstrapper) Bootstrap(ctx context.Context, force bool) (*platform.Result, error) {
	args := m.Called(ctx, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Result), args.Error(1)
}

type mockSealer struct {
	mock.Mock
}

func (m *mockSealer) Seal(ctx context.Context, keyURI string, key []byte) (string, error) {
	args := m.Called(ctx, keyURI, key)
	return args.String(0), args.Error(1)
}

type mockCascade struct {
	mock.Mock
}

func (m *mockCascade) Run(ctx context.Context, certificateID uuid.UUID) (*revocationUseCase.Report, error) {
	args := m.Called(ctx, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revocationUseCase.Report), args.Error(1)
}

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
