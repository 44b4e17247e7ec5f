package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memoryDocumentRepository struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]docDomain.Document
	versions map[uuid.UUID][]docDomain.DocumentVersion
	failOn   string
}

func newMemoryDocumentRepository() *memoryDocumentRepository {
	return &memoryDocumentRepository{
		docs:     make(map[uuid.UUID]docDomain.Document),
		versions: make(map[uuid.UUID][]docDomain.DocumentVersion),
	}
}

func (r *memoryDocumentRepository) fail(op string) error {
	if r.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (r *memoryDocumentRepository) Create(_ context.Context, doc *docDomain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	for _, existing := range r.docs {
		if existing.OrganizationID == doc.OrganizationID && existing.Label == doc.Label {
			return docDomain.ErrDocumentLabelConflict
		}
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memoryDocumentRepository) Update(_ context.Context, doc *docDomain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Update"); err != nil {
		return err
	}
	if _, ok := r.docs[doc.ID]; !ok {
		return docDomain.ErrDocumentNotFound
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memoryDocumentRepository) GetByID(_ context.Context, id uuid.UUID) (*docDomain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, docDomain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (r *memoryDocumentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*docDomain.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryDocumentRepository) GetByLabel(
	_ context.Context,
	organizationID uuid.UUID,
	label string,
) (*docDomain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.OrganizationID == organizationID && doc.Label == label {
			return &doc, nil
		}
	}
	return nil, docDomain.ErrDocumentNotFound
}

func (r *memoryDocumentRepository) List(
	_ context.Context,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*docDomain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*docDomain.Document
	for _, doc := range r.docs {
		if doc.OrganizationID == organizationID {
			out = append(out, &doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryDocumentRepository) ListReferencingCertificate(
	context.Context,
	uuid.UUID,
) ([]*docDomain.Document, error) {
	return nil, errors.New("not used by the document use case")
}

func (r *memoryDocumentRepository) CreateVersion(_ context.Context, version *docDomain.DocumentVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.versions[version.DocumentID] {
		if existing.Version == version.Version {
			return errors.New("duplicate version")
		}
	}
	r.versions[version.DocumentID] = append(r.versions[version.DocumentID], *version)
	return nil
}

func (r *memoryDocumentRepository) FinalizeVersion(_ context.Context, version *docDomain.DocumentVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.versions[version.DocumentID]
	for i := range rows {
		if rows[i].Version == version.Version && rows[i].PublishedAt == nil {
			id, createdAt := rows[i].ID, rows[i].CreatedAt
			rows[i] = *version
			rows[i].ID, rows[i].CreatedAt = id, createdAt
			return nil
		}
	}
	return docDomain.ErrDocumentVersionNotFound
}

func (r *memoryDocumentRepository) GetVersion(
	_ context.Context,
	documentID uuid.UUID,
	version int,
) (*docDomain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.versions[documentID] {
		if row.Version == version {
			return &row, nil
		}
	}
	return nil, docDomain.ErrDocumentVersionNotFound
}

func (r *memoryDocumentRepository) ListVersions(
	_ context.Context,
	documentID uuid.UUID,
) ([]*docDomain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*docDomain.DocumentVersion, 0, len(r.versions[documentID]))
	for _, row := range r.versions[documentID] {
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type memoryMethodRepository struct {
	mu      sync.Mutex
	methods map[uuid.UUID][]docDomain.VerificationMethod
}

func newMemoryMethodRepository() *memoryMethodRepository {
	return &memoryMethodRepository{methods: make(map[uuid.UUID][]docDomain.VerificationMethod)}
}

func (r *memoryMethodRepository) ReplaceForDocument(
	_ context.Context,
	documentID uuid.UUID,
	methods []*docDomain.VerificationMethod,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]docDomain.VerificationMethod, 0, len(methods))
	for _, m := range methods {
		rows = append(rows, *m)
	}
	r.methods[documentID] = rows
	return nil
}

func (r *memoryMethodRepository) ListByDocument(
	_ context.Context,
	documentID uuid.UUID,
) ([]*docDomain.VerificationMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*docDomain.VerificationMethod, 0, len(r.methods[documentID]))
	for _, row := range r.methods[documentID] {
		out = append(out, &row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memoryMethodRepository) DeactivateByCertificate(
	_ context.Context,
	documentID, certificateID uuid.UUID,
	now time.Time,
) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	rows := r.methods[documentID]
	for i := range rows {
		if rows[i].CertificateID == certificateID && rows[i].IsActive {
			rows[i].IsActive = false
			rows[i].UpdatedAt = now
			changed++
		}
	}
	return changed, nil
}

func (r *memoryMethodRepository) fragments(documentID uuid.UUID, active bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, row := range r.methods[documentID] {
		if row.IsActive == active {
			out = append(out, row.Fragment)
		}
	}
	return out
}

type memoryCertificates struct {
	mu     sync.Mutex
	certs  map[uuid.UUID]certDomain.Certificate
	shared []shareLock
}

type shareLock struct {
	id   uuid.UUID
	inTx bool
}

func (m *memoryCertificates) GetByID(_ context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cert, ok := m.certs[id]
	if !ok {
		return nil, certDomain.ErrCertificateNotFound
	}
	return &cert, nil
}

func (m *memoryCertificates) GetByIDForShare(ctx context.Context, id uuid.UUID) (*certDomain.Certificate, error) {
	m.mu.Lock()
	m.shared = append(m.shared, shareLock{id: id, inTx: ctx.Value(txMarker{}) != nil})
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *memoryCertificates) set(cert certDomain.Certificate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certs[cert.ID] = cert
}

type staticOrganizations struct {
	org orgDomain.Organization
}

func (s *staticOrganizations) GetByID(_ context.Context, id uuid.UUID) (*orgDomain.Organization, error) {
	if id != s.org.ID {
		return nil, orgDomain.ErrOrganizationNotFound
	}
	org := s.org
	return &org, nil
}

func (s *staticOrganizations) LockByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error) {
	return s.GetByID(ctx, id)
}

type memberTable map[uuid.UUID]orgDomain.Role

func (m memberTable) GetMember(_ context.Context, organizationID, userID uuid.UUID) (*orgDomain.Member, error) {
	role, ok := m[userID]
	if !ok {
		return nil, orgDomain.ErrMemberNotFound
	}
	return &orgDomain.Member{OrganizationID: organizationID, UserID: userID, Role: role}, nil
}

type fakeSigner struct {
	jws      string
	err      error
	payloads [][]byte
}

func (s *fakeSigner) Sign(_ context.Context, payload []byte) (string, error) {
	s.payloads = append(s.payloads, payload)
	if s.err != nil {
		return "", s.err
	}
	return s.jws, nil
}

type registrarCall struct {
	op  string
	did string
}

type fakeRegistrar struct {
	errs  map[string]error
	calls []registrarCall
}

func (r *fakeRegistrar) do(op, did string) (json.RawMessage, error) {
	r.calls = append(r.calls, registrarCall{op: op, did: did})
	if err := r.errs[op]; err != nil {
		return nil, err
	}
	return json.RawMessage(`{"didState":{"state":"finished","did":"` + did + `"}}`), nil
}

func (r *fakeRegistrar) Create(_ context.Context, did string, _ json.RawMessage) (json.RawMessage, error) {
	return r.do("create", did)
}

func (r *fakeRegistrar) Update(_ context.Context, did string, _ json.RawMessage) (json.RawMessage, error) {
	return r.do("update", did)
}

func (r *fakeRegistrar) Deactivate(_ context.Context, did string) (json.RawMessage, error) {
	return r.do("deactivate", did)
}

func (r *fakeRegistrar) ops() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.op)
	}
	return out
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

func (r *recordingAudit) last() auditUseCase.Entry {
	return r.entries[len(r.entries)-1]
}

type recordingPublisher struct {
	payloads []any
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload any) error {
	p.payloads = append(p.payloads, payload)
	return nil
}

type recordingCache struct {
	keys []string
}

func (c *recordingCache) Invalidate(_ context.Context, organizationSlug, label string) error {
	c.keys = append(c.keys, organizationSlug+"/"+label)
	return nil
}

type txMarker struct{}

// markingTxManager tags the ctx it hands to fn so fakes can tell transactional calls apart.
type markingTxManager struct{}

func (markingTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, txMarker{}, true))
}

type lookupRecordingOrganizations struct {
	*staticOrganizations
	inTx []bool
}

func (r *lookupRecordingOrganizations) GetByID(ctx context.Context, id uuid.UUID) (*orgDomain.Organization, error) {
	r.inTx = append(r.inTx, ctx.Value(txMarker{}) != nil)
	return r.staticOrganizations.GetByID(ctx, id)
}
