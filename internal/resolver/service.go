// Package resolver serves published DID documents, their version history and publication
// credentials over the did:web path layout.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/didregistry/internal/documents/assembler"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
	"github.com/allisson/didregistry/internal/platform"
)

var (
	// ErrGone indicates the document was deactivated.
	ErrGone = apperrors.Wrap(apperrors.ErrNotFound, "document deactivated")

	// ErrNotPublished indicates the document exists but has never been published.
	ErrNotPublished = apperrors.Wrap(apperrors.ErrNotFound, "document not published")
)

// OrganizationReader looks organizations up by slug.
type OrganizationReader interface {
	GetBySlug(ctx context.Context, slug string) (*orgDomain.Organization, error)
}

// DocumentReader reads documents and their published versions.
type DocumentReader interface {
	GetByLabel(ctx context.Context, organizationID uuid.UUID, label string) (*docDomain.Document, error)
	GetVersion(ctx context.Context, documentID uuid.UUID, version int) (*docDomain.DocumentVersion, error)
}

// PlatformDocument loads the bootstrapped platform DID document.
type PlatformDocument interface {
	Load() (json.RawMessage, error)
}

// Artifact is a rendered response body with its caching metadata.
type Artifact struct {
	Body      []byte
	ETag      string
	MaxAge    time.Duration
	Immutable bool
}

// Config carries resolver settings.
type Config struct {
	PlatformDomain string
	PlatformName   string
	CacheTTL       time.Duration
}

// Service resolves artifacts from the database, consulting the cache for live bodies.
type Service struct {
	orgs     OrganizationReader
	docs     DocumentReader
	platform PlatformDocument
	cache    Cache
	config   Config
	logger   *slog.Logger
}

// NewService creates a resolver Service. A nil cache disables caching.
func NewService(
	orgs OrganizationReader,
	docs DocumentReader,
	platformDoc PlatformDocument,
	cache Cache,
	config Config,
	logger *slog.Logger,
) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &Service{
		orgs:     orgs,
		docs:     docs,
		platform: platformDoc,
		cache:    cache,
		config:   config,
		logger:   logger,
	}
}

// Platform returns the platform DID document.
func (s *Service) Platform(ctx context.Context) (*Artifact, error) {
	body, err := s.platform.Load()
	if err != nil {
		return nil, err
	}
	return s.live(body), nil
}

// Document returns the live body of a published document, or the body of a published
// version when version is positive.
func (s *Service) Document(ctx context.Context, orgSlug, label string, version int) (*Artifact, error) {
	orgSlug, label = normalize(orgSlug), normalize(label)

	if version <= 0 {
		if body, ok := s.cached(ctx, DocumentKey(orgSlug, label)); ok {
			return s.live(body), nil
		}
	}

	doc, err := s.published(ctx, orgSlug, label)
	if err != nil {
		return nil, err
	}

	if version > 0 {
		v, err := s.docs.GetVersion(ctx, doc.ID, version)
		if err != nil {
			return nil, err
		}
		if !v.IsPublished() {
			return nil, docDomain.ErrDocumentVersionNotFound
		}
		return &Artifact{
			Body:      v.Content,
			ETag:      etag(v.Content),
			MaxAge:    365 * 24 * time.Hour,
			Immutable: true,
		}, nil
	}

	s.store(ctx, DocumentKey(orgSlug, label), doc.Content)
	return s.live(doc.Content), nil
}

// Credential returns the publication credential of a published document.
func (s *Service) Credential(ctx context.Context, orgSlug, label string) (*Artifact, error) {
	orgSlug, label = normalize(orgSlug), normalize(label)
	key := CredentialKey(orgSlug, label)

	if body, ok := s.cached(ctx, key); ok {
		return s.live(body), nil
	}

	org, err := s.orgs.GetBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	doc, err := s.publishedIn(ctx, org, label)
	if err != nil {
		return nil, err
	}

	body, err := assembler.PublicationCredential(assembler.CredentialInput{
		PlatformDID:  platform.DID(s.config.PlatformDomain),
		PlatformName: s.config.PlatformName,
		DIDURI:       doc.DIDURI,
		Organization: org.Name,
		Label:        doc.Label,
		Version:      doc.Version,
		PublishedAt:  *doc.PublishedAt,
		Document:     doc.Content,
	})
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, body)
	return s.live(body), nil
}

func (s *Service) published(ctx context.Context, orgSlug, label string) (*docDomain.Document, error) {
	org, err := s.orgs.GetBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	return s.publishedIn(ctx, org, label)
}

func (s *Service) publishedIn(
	ctx context.Context,
	org *orgDomain.Organization,
	label string,
) (*docDomain.Document, error) {
	doc, err := s.docs.GetByLabel(ctx, org.ID, label)
	if err != nil {
		return nil, err
	}
	switch {
	case doc.Status == docDomain.StatusDeactivated:
		return nil, ErrGone
	case doc.PublishedAt == nil || len(doc.Content) == 0:
		return nil, ErrNotPublished
	}
	return doc, nil
}

// cached treats cache failures as misses.
func (s *Service) cached(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("resolver cache read failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return body, ok
}

func (s *Service) store(ctx context.Context, key string, body []byte) {
	if err := s.cache.Set(ctx, key, body); err != nil {
		s.logger.Warn("resolver cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) live(body []byte) *Artifact {
	return &Artifact{Body: body, ETag: etag(body), MaxAge: s.config.CacheTTL}
}

func etag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
