package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	certService "github.com/allisson/didregistry/internal/certificates/service"
	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	outboxDomain "github.com/allisson/didregistry/internal/outbox/domain"
	"github.com/allisson/didregistry/internal/testutil"
)

type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryCertificateRepository keeps certificates in memory so rotation sequences can be
// asserted end to end.
type memoryCertificateRepository struct {
	mu       sync.Mutex
	certs    map[uuid.UUID]certDomain.Certificate
	versions map[uuid.UUID][]*certDomain.CertificateVersion
	failOn   string
}

func newMemoryCertificateRepository() *memoryCertificateRepository {
	return &memoryCertificateRepository{
		certs:    make(map[uuid.UUID]certDomain.Certificate),
		versions: make(map[uuid.UUID][]*certDomain.CertificateVersion),
	}
}

func (r *memoryCertificateRepository) fail(op string) error {
	if r.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (r *memoryCertificateRepository) Create(_ context.Context, cert *certDomain.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	r.certs[cert.ID] = *cert
	return nil
}

func (r *memoryCertificateRepository) Update(_ context.Context, cert *certDomain.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Update"); err != nil {
		return err
	}
	if _, ok := r.certs[cert.ID]; !ok {
		return certDomain.ErrCertificateNotFound
	}
	r.certs[cert.ID] = *cert
	return nil
}

func (r *memoryCertificateRepository) GetByID(_ context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[id]
	if !ok {
		return nil, certDomain.ErrCertificateNotFound
	}
	return &cert, nil
}

func (r *memoryCertificateRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryCertificateRepository) GetByIDForShare(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryCertificateRepository) GetByFingerprint(
	_ context.Context,
	organizationID uuid.UUID,
	fingerprint string,
) (*certDomain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cert := range r.certs {
		if cert.OrganizationID == organizationID && cert.Fingerprint == fingerprint {
			return &cert, nil
		}
	}
	return nil, certDomain.ErrCertificateNotFound
}

func (r *memoryCertificateRepository) GetByLabel(
	_ context.Context,
	organizationID uuid.UUID,
	label string,
) (*certDomain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cert := range r.certs {
		if cert.OrganizationID == organizationID && cert.Label == label {
			return &cert, nil
		}
	}
	return nil, certDomain.ErrCertificateNotFound
}

func (r *memoryCertificateRepository) List(
	_ context.Context,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*certDomain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*certDomain.Certificate
	for _, cert := range r.certs {
		if cert.OrganizationID == organizationID {
			out = append(out, &cert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryCertificateRepository) ListExpired(
	_ context.Context,
	now time.Time,
	limit int,
) ([]*certDomain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListExpired"); err != nil {
		return nil, err
	}
	var out []*certDomain.Certificate
	for _, cert := range r.certs {
		if cert.Status == certDomain.StatusActive && cert.NotValidAfter.Before(now) {
			out = append(out, &cert)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryCertificateRepository) CreateVersion(_ context.Context, version *certDomain.CertificateVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.versions[version.CertificateID] {
		if existing.Version == version.Version {
			return apperrors.ErrConflict
		}
	}
	r.versions[version.CertificateID] = append(r.versions[version.CertificateID], version)
	return nil
}

func (r *memoryCertificateRepository) ListVersions(
	_ context.Context,
	certificateID uuid.UUID,
) ([]*certDomain.CertificateVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*certDomain.CertificateVersion(nil), r.versions[certificateID]...), nil
}

type mockOrganizationLocker struct {
	mock.Mock
}

func (m *mockOrganizationLocker) LockByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orgDomain.Organization), args.Error(1)
}

// inspectingParser parses locally, standing in for the external parser service.
// A non-empty jwk replaces the derived key, the way a misbehaving parser would.
type inspectingParser struct {
	err error
	jwk json.RawMessage
}

func (p *inspectingParser) Parse(_ context.Context, pem string) (*certDomain.ParsedCertificate, error) {
	if p.err != nil {
		return nil, p.err
	}
	parsed, err := certService.Inspect(pem)
	if err != nil {
		return nil, err
	}
	if len(p.jwk) > 0 {
		parsed.PublicKeyJWK = p.jwk
	}
	return parsed, nil
}

type mockAuthorizer struct {
	mock.Mock
}

func (m *mockAuthorizer) Authorize(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	perm authz.Permission,
) error {
	args := m.Called(ctx, actor, organizationID, perm)
	return args.Error(0)
}

type recordingAudit struct {
	entries []auditUseCase.Entry
}

func (r *recordingAudit) Record(_ context.Context, entry auditUseCase.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) actions() []auditDomain.Action {
	out := make([]auditDomain.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type publishedEvent struct {
	eventType string
	payload   any
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.events = append(p.events, publishedEvent{eventType: eventType, payload: payload})
	return nil
}

type certificateFixture struct {
	uc         *certificateUseCase
	repo       *memoryCertificateRepository
	orgs       *mockOrganizationLocker
	parser     *inspectingParser
	authorizer *mockAuthorizer
	audit      *recordingAudit
	events     *recordingPublisher
	orgID      uuid.UUID
	actor      authz.Actor
}

func newCertificateFixture(t *testing.T) *certificateFixture {
	t.Helper()

	f := &certificateFixture{
		repo:       newMemoryCertificateRepository(),
		orgs:       &mockOrganizationLocker{},
		parser:     &inspectingParser{},
		authorizer: &mockAuthorizer{},
		audit:      &recordingAudit{},
		events:     &recordingPublisher{},
		orgID:      uuid.Must(uuid.NewV7()),
		actor:      authz.Actor{ID: uuid.Must(uuid.NewV7()), Email: "alice@acme.test"},
	}
	f.orgs.On("LockByID", mock.Anything, f.orgID).Return(&orgDomain.Organization{ID: f.orgID, Slug: "acme"}, nil)
	f.authorizer.On("Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	uc := NewCertificateUseCase(
		passthroughTxManager{},
		f.repo,
		f.orgs,
		f.parser,
		f.authorizer,
		f.audit,
		f.events,
		slog.New(slog.DiscardHandler),
	)
	f.uc = uc.(*certificateUseCase)
	return f
}

func (f *certificateFixture) upload(t *testing.T, label, cn string) *certDomain.Certificate {
	t.Helper()
	cert, err := f.uc.Upload(context.Background(), UploadInput{
		OrganizationID: f.orgID,
		Actor:          f.actor,
		Label:          label,
		PEM:            testutil.GenerateCertificatePEM(t, cn, time.Now().Add(365*24*time.Hour)),
	})
	require.NoError(t, err)
	return cert
}

func TestCertificateUseCase_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_StoresVersionOne", func(t *testing.T) {
		f := newCertificateFixture(t)
		pemText := testutil.GenerateCertificatePEM(t, "acme-signing", time.Now().Add(24*time.Hour))

		cert, err := f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          "  Signing key ",
			PEM:            pemText,
		})
		require.NoError(t, err)

		expectedFingerprint, err := certService.Fingerprint(pemText)
		require.NoError(t, err)

		assert.Equal(t, "Signing key", cert.Label)
		assert.Equal(t, certDomain.StatusActive, cert.Status)
		assert.Equal(t, 1, cert.Version)
		assert.Equal(t, expectedFingerprint, cert.Fingerprint)
		assert.Equal(t, "EC", cert.KeyType)
		assert.Equal(t, "P-256", cert.KeyCurve)
		assert.NotEmpty(t, cert.PublicKeyJWK)
		assert.Equal(t, &f.actor.ID, cert.CreatedBy)

		versions, err := f.repo.ListVersions(ctx, cert.ID)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 1, versions[0].Version)
		assert.Equal(t, cert.Fingerprint, versions[0].Fingerprint)
		assert.Equal(t, initialChangeSummary, versions[0].ChangeSummary)

		assert.Equal(t, []auditDomain.Action{auditDomain.ActionCertUploaded}, f.audit.actions())
		assert.Equal(t, cert.ID, f.audit.entries[0].TargetID)
		assert.Equal(t, auditDomain.TargetCertificate, f.audit.entries[0].TargetType)
		assert.Empty(t, f.events.events)
	})

	t.Run("Error_DuplicateFingerprintInOrganization", func(t *testing.T) {
		f := newCertificateFixture(t)
		pemText := testutil.GenerateCertificatePEM(t, "dup", time.Now().Add(24*time.Hour))

		_, err := f.uc.Upload(ctx, UploadInput{OrganizationID: f.orgID, Actor: f.actor, Label: "one", PEM: pemText})
		require.NoError(t, err)

		_, err = f.uc.Upload(ctx, UploadInput{OrganizationID: f.orgID, Actor: f.actor, Label: "two", PEM: pemText})
		assert.ErrorIs(t, err, certDomain.ErrCertificateFingerprintConflict)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Success_ParserPrivateKeyReducedToPublic", func(t *testing.T) {
		f := newCertificateFixture(t)
		pemText, privateKey := testutil.GenerateCertificateWithKey(t, "leaky", time.Now().Add(24*time.Hour))
		private, err := jwk.Import(privateKey)
		require.NoError(t, err)
		f.parser.jwk, err = json.Marshal(private)
		require.NoError(t, err)

		cert, err := f.uc.Upload(ctx, UploadInput{OrganizationID: f.orgID, Actor: f.actor, Label: "leaky", PEM: pemText})
		require.NoError(t, err)

		var members map[string]any
		require.NoError(t, json.Unmarshal(cert.PublicKeyJWK, &members))
		assert.NotContains(t, members, "d")
		expected, err := certService.PublicKeyJWK(pemText)
		require.NoError(t, err)
		assert.JSONEq(t, string(expected), string(cert.PublicKeyJWK))
	})

	t.Run("Error_ParserKeyDoesNotMatchCertificate", func(t *testing.T) {
		f := newCertificateFixture(t)
		var err error
		f.parser.jwk, err = certService.PublicKeyJWK(
			testutil.GenerateCertificatePEM(t, "other", time.Now().Add(24*time.Hour)),
		)
		require.NoError(t, err)

		_, err = f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          "mismatch",
			PEM:            testutil.GenerateCertificatePEM(t, "mine", time.Now().Add(24*time.Hour)),
		})
		assert.ErrorIs(t, err, certDomain.ErrInvalidJWK)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Empty(t, f.audit.entries)
	})

	t.Run("Error_DuplicateLabelInOrganization", func(t *testing.T) {
		f := newCertificateFixture(t)
		first := f.upload(t, "signing", "first")

		_, err := f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          " signing ",
			PEM:            testutil.GenerateCertificatePEM(t, "second", time.Now().Add(24*time.Hour)),
		})
		assert.ErrorIs(t, err, certDomain.ErrCertificateLabelConflict)
		assert.ErrorIs(t, err, apperrors.ErrConflict)

		certs, err := f.repo.List(ctx, f.orgID, 0, 10)
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.Equal(t, first.ID, certs[0].ID)
		assert.Equal(t, []auditDomain.Action{auditDomain.ActionCertUploaded}, f.audit.actions())
		f.orgs.AssertCalled(t, "LockByID", mock.Anything, f.orgID)
	})

	t.Run("Success_SameFingerprintInAnotherOrganization", func(t *testing.T) {
		f := newCertificateFixture(t)
		pemText := testutil.GenerateCertificatePEM(t, "shared", time.Now().Add(24*time.Hour))
		otherOrg := uuid.Must(uuid.NewV7())
		f.orgs.On("LockByID", mock.Anything, otherOrg).Return(&orgDomain.Organization{ID: otherOrg}, nil)

		_, err := f.uc.Upload(ctx, UploadInput{OrganizationID: f.orgID, Actor: f.actor, Label: "a", PEM: pemText})
		require.NoError(t, err)
		_, err = f.uc.Upload(ctx, UploadInput{OrganizationID: otherOrg, Actor: f.actor, Label: "b", PEM: pemText})
		assert.NoError(t, err)
	})

	t.Run("Error_ExpiredCertificate", func(t *testing.T) {
		f := newCertificateFixture(t)

		_, err := f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          "old",
			PEM:            testutil.GenerateCertificatePEM(t, "old", time.Now().Add(-time.Hour)),
		})
		assert.ErrorIs(t, err, certDomain.ErrCertificateExpired)
		assert.Empty(t, f.repo.certs)
	})

	t.Run("Error_InvalidPEM", func(t *testing.T) {
		f := newCertificateFixture(t)

		_, err := f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          "bad",
			PEM:            "not a certificate",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		f := newCertificateFixture(t)
		f.authorizer.ExpectedCalls = nil
		f.authorizer.On("Authorize", mock.Anything, f.actor, f.orgID, authz.PermMutateCertificates).
			Return(apperrors.ErrForbidden)

		_, err := f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          "x",
			PEM:            testutil.GenerateCertificatePEM(t, "x", time.Now().Add(time.Hour)),
		})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		assert.Empty(t, f.audit.entries)
	})

	t.Run("Error_ParserUnavailable", func(t *testing.T) {
		f := newCertificateFixture(t)
		f.parser.err = apperrors.NewExternalServiceError("parser", "parse", 503, errors.New("down"))

		_, err := f.uc.Upload(ctx, UploadInput{
			OrganizationID: f.orgID,
			Actor:          f.actor,
			Label:          "x",
			PEM:            testutil.GenerateCertificatePEM(t, "x", time.Now().Add(time.Hour)),
		})
		assert.ErrorIs(t, err, apperrors.ErrExternalService)
		f.orgs.AssertNotCalled(t, "LockByID", mock.Anything, mock.Anything)
	})
}

func TestCertificateUseCase_Rotate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_VersionsAreGapless", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")
		fingerprints := []string{cert.Fingerprint}

		for i := 0; i < 3; i++ {
			rotated, err := f.uc.Rotate(ctx, RotateInput{
				CertificateID: cert.ID,
				Actor:         f.actor,
				PEM:           testutil.GenerateCertificatePEM(t, "next", time.Now().Add(48*time.Hour)),
				ChangeSummary: "scheduled rotation",
			})
			require.NoError(t, err)
			assert.Equal(t, i+2, rotated.Version)
			fingerprints = append(fingerprints, rotated.Fingerprint)
		}

		live, err := f.repo.GetByID(ctx, cert.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, live.Version)

		versions, err := f.repo.ListVersions(ctx, cert.ID)
		require.NoError(t, err)
		require.Len(t, versions, 4)
		for i, v := range versions {
			assert.Equal(t, i+1, v.Version)
			assert.Equal(t, fingerprints[i], v.Fingerprint)
		}
		assert.Equal(t, live.Fingerprint, versions[3].Fingerprint)

		require.Len(t, f.events.events, 3)
		last := f.events.events[2]
		assert.Equal(t, outboxDomain.EventCertificateRotated, last.eventType)
		assert.Equal(t, outboxDomain.CertificateEvent{
			CertificateID:  cert.ID,
			OrganizationID: f.orgID,
			Version:        4,
		}, last.payload)
	})

	t.Run("Success_ReactivatesExpired", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")
		stored := f.repo.certs[cert.ID]
		stored.Status = certDomain.StatusExpired
		f.repo.certs[cert.ID] = stored

		rotated, err := f.uc.Rotate(ctx, RotateInput{
			CertificateID: cert.ID,
			Actor:         f.actor,
			PEM:           testutil.GenerateCertificatePEM(t, "fresh", time.Now().Add(time.Hour)),
		})
		require.NoError(t, err)
		assert.Equal(t, certDomain.StatusActive, rotated.Status)
	})

	t.Run("Error_RevokedCertificate", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")
		_, err := f.uc.Revoke(ctx, RevokeInput{CertificateID: cert.ID, Actor: f.actor, Reason: "compromised"})
		require.NoError(t, err)

		_, err = f.uc.Rotate(ctx, RotateInput{
			CertificateID: cert.ID,
			Actor:         f.actor,
			PEM:           testutil.GenerateCertificatePEM(t, "v2", time.Now().Add(time.Hour)),
		})
		assert.ErrorIs(t, err, certDomain.ErrCertificateRevoked)
		assert.ErrorIs(t, err, apperrors.ErrStateTransition)
	})

	t.Run("Error_FingerprintOwnedByAnotherCertificate", func(t *testing.T) {
		f := newCertificateFixture(t)
		first := f.upload(t, "first", "a")
		second := f.upload(t, "second", "b")

		_, err := f.uc.Rotate(ctx, RotateInput{
			CertificateID: second.ID,
			Actor:         f.actor,
			PEM:           f.repo.certs[first.ID].PEM,
		})
		assert.ErrorIs(t, err, certDomain.ErrCertificateFingerprintConflict)

		versions, err := f.repo.ListVersions(ctx, second.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 1)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		f := newCertificateFixture(t)

		_, err := f.uc.Rotate(ctx, RotateInput{
			CertificateID: uuid.Must(uuid.NewV7()),
			Actor:         f.actor,
			PEM:           testutil.GenerateCertificatePEM(t, "v2", time.Now().Add(time.Hour)),
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Error_UpdateFailureLeavesNoVersion", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")
		f.repo.failOn = "Update"

		_, err := f.uc.Rotate(ctx, RotateInput{
			CertificateID: cert.ID,
			Actor:         f.actor,
			PEM:           testutil.GenerateCertificatePEM(t, "v2", time.Now().Add(time.Hour)),
		})
		assert.Error(t, err)

		versions, err := f.repo.ListVersions(ctx, cert.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 1)
		assert.Empty(t, f.events.events)
	})
}

func TestCertificateUseCase_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PublishesCascadeEvent", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")

		revoked, err := f.uc.Revoke(ctx, RevokeInput{CertificateID: cert.ID, Actor: f.actor, Reason: " key leaked "})
		require.NoError(t, err)

		assert.Equal(t, certDomain.StatusRevoked, revoked.Status)
		assert.Equal(t, "key leaked", revoked.RevocationReason)
		require.NotNil(t, revoked.RevokedAt)
		assert.Equal(t, &f.actor.ID, revoked.RevokedBy)

		assert.Equal(t,
			[]auditDomain.Action{auditDomain.ActionCertUploaded, auditDomain.ActionCertRevoked},
			f.audit.actions(),
		)
		require.Len(t, f.events.events, 1)
		assert.Equal(t, outboxDomain.EventCertificateRevoked, f.events.events[0].eventType)
		f.authorizer.AssertCalled(t, "Authorize", mock.Anything, f.actor, f.orgID, authz.PermRevokeCertificates)
	})

	t.Run("Error_AlreadyRevoked", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")
		_, err := f.uc.Revoke(ctx, RevokeInput{CertificateID: cert.ID, Actor: f.actor})
		require.NoError(t, err)

		_, err = f.uc.Revoke(ctx, RevokeInput{CertificateID: cert.ID, Actor: f.actor})
		assert.ErrorIs(t, err, certDomain.ErrCertificateRevoked)
		assert.Len(t, f.events.events, 1)
	})
}

func TestCertificateUseCase_ExpireDue(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ExpiresOnlyPastDue", func(t *testing.T) {
		f := newCertificateFixture(t)
		soon := f.upload(t, "soon", "soon")
		later := f.upload(t, "later", "later")

		stored := f.repo.certs[soon.ID]
		stored.NotValidAfter = time.Now().Add(-time.Minute)
		f.repo.certs[soon.ID] = stored

		count, err := f.uc.ExpireDue(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, certDomain.StatusExpired, f.repo.certs[soon.ID].Status)
		assert.Equal(t, certDomain.StatusActive, f.repo.certs[later.ID].Status)

		last := f.audit.entries[len(f.audit.entries)-1]
		assert.Equal(t, auditDomain.ActionCertExpired, last.Action)
		assert.True(t, last.Automatic)
		assert.True(t, last.Actor.IsSystem())

		count, err = f.uc.ExpireDue(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Error_ListFailure", func(t *testing.T) {
		f := newCertificateFixture(t)
		f.repo.failOn = "ListExpired"

		_, err := f.uc.ExpireDue(ctx, time.Now())
		assert.Error(t, err)
	})
}

func TestCertificateUseCase_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_GetListAndVersions", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")

		got, err := f.uc.Get(ctx, f.actor, cert.ID)
		require.NoError(t, err)
		assert.Equal(t, cert.ID, got.ID)

		list, err := f.uc.List(ctx, f.actor, f.orgID, 0, 10)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		versions, err := f.uc.ListVersions(ctx, f.actor, cert.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 1)
	})

	t.Run("Error_ViewForbidden", func(t *testing.T) {
		f := newCertificateFixture(t)
		cert := f.upload(t, "signing", "v1")
		outsider := authz.Actor{ID: uuid.Must(uuid.NewV7()), Email: "eve@evil.test"}
		f.authorizer.ExpectedCalls = nil
		f.authorizer.On("Authorize", mock.Anything, outsider, f.orgID, authz.PermViewCertificates).
			Return(apperrors.ErrForbidden)

		_, err := f.uc.Get(ctx, outsider, cert.ID)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		_, err = f.uc.ListVersions(ctx, outsider, cert.ID)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}
