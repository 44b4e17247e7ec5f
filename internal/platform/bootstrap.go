// Package platform maintains the registry's own root DID, did:web:{domain}, which issues
// publication credentials and advertises the directory, resolver and registrar endpoints.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	"github.com/allisson/didregistry/internal/authz"
	"github.com/allisson/didregistry/internal/database"
	"github.com/allisson/didregistry/internal/documents/assembler"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// DocumentPath is the location of the platform document relative to the DID directory.
const DocumentPath = ".well-known/did.json"

// ErrDomainRequired indicates no platform domain is configured.
var ErrDomainRequired = apperrors.Wrap(apperrors.ErrInvalidInput, "platform domain is required")

// ErrNotBootstrapped indicates the platform document has not been written yet.
var ErrNotBootstrapped = apperrors.Wrap(apperrors.ErrNotFound, "platform DID not bootstrapped")

// DID returns the platform DID for domain. A port separator is percent-encoded as did:web requires.
func DID(domain string) string {
	return "did:web:" + strings.ReplaceAll(domain, ":", "%3A")
}

// Result describes a Bootstrap run.
type Result struct {
	DID      string
	Path     string
	Document json.RawMessage
	Written  bool
}

type service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
	Description     string `json:"description"`
}

type document struct {
	Context            []string  `json:"@context"`
	ID                 string    `json:"id"`
	Controller         string    `json:"controller"`
	VerificationMethod []any     `json:"verificationMethod"`
	Authentication     []string  `json:"authentication"`
	AssertionMethod    []string  `json:"assertionMethod"`
	Service            []service `json:"service"`
	Created            string    `json:"created"`
	Updated            string    `json:"updated"`
}

// Bootstrapper writes the platform DID document under a directory served by the resolver.
type Bootstrapper struct {
	domain    string
	dir       string
	txManager database.TxManager
	audit     auditUseCase.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewBootstrapper creates a Bootstrapper.
func NewBootstrapper(
	domain, dir string,
	txManager database.TxManager,
	audit auditUseCase.Recorder,
	logger *slog.Logger,
) *Bootstrapper {
	return &Bootstrapper{
		domain:    domain,
		dir:       dir,
		txManager: txManager,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Path returns the file path of the platform document.
func (b *Bootstrapper) Path() string {
	return NewDocumentFile(b.dir).Path()
}

// Bootstrap writes the platform document. An existing document is left untouched and
// returned unless force is set.
func (b *Bootstrapper) Bootstrap(ctx context.Context, force bool) (*Result, error) {
	if strings.TrimSpace(b.domain) == "" {
		return nil, ErrDomainRequired
	}

	didURI := DID(b.domain)
	path := b.Path()

	if !force {
		existing, err := os.ReadFile(path)
		if err == nil {
			b.logger.Info("platform DID already bootstrapped", slog.String("path", path))
			return &Result{DID: didURI, Path: path, Document: existing}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(err, "failed to read platform DID document")
		}
	}

	body, err := b.build(didURI)
	if err != nil {
		return nil, err
	}

	err = b.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := b.audit.Record(ctx, auditUseCase.Entry{
			Actor:      authz.System(),
			Action:     auditDomain.ActionPlatformBootstrap,
			TargetType: auditDomain.TargetPlatform,
			TargetID:   PlatformID(b.domain),
			Metadata:   map[string]any{"did": didURI, "forced": force},
			Automatic:  true,
		}); err != nil {
			return err
		}
		return writeAtomic(path, body)
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("platform DID bootstrapped",
		slog.String("did", didURI),
		slog.String("path", path),
		slog.Bool("forced", force),
	)
	return &Result{DID: didURI, Path: path, Document: body, Written: true}, nil
}

// Load returns the stored platform document.
func (b *Bootstrapper) Load() (json.RawMessage, error) {
	return NewDocumentFile(b.dir).Load()
}

// DocumentFile reads the platform document without the means to write it. The resolver
// serves from it.
type DocumentFile struct {
	dir string
}

// NewDocumentFile returns the platform document stored under dir.
func NewDocumentFile(dir string) DocumentFile {
	return DocumentFile{dir: dir}
}

// Path returns the file path of the platform document.
func (f DocumentFile) Path() string {
	return filepath.Join(f.dir, filepath.FromSlash(DocumentPath))
}

// Load returns the stored document, or ErrNotBootstrapped when there is none.
func (f DocumentFile) Load() (json.RawMessage, error) {
	body, err := os.ReadFile(f.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotBootstrapped
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read platform DID document")
	}
	return body, nil
}

// PlatformID is the stable audit target id of the platform DID for domain.
func PlatformID(domain string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(DID(domain)))
}

func (b *Bootstrapper) build(didURI string) (json.RawMessage, error) {
	now := b.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	base := "https://" + b.domain

	doc := document{
		Context:            assembler.Contexts,
		ID:                 didURI,
		Controller:         didURI,
		VerificationMethod: []any{},
		Authentication:     []string{},
		AssertionMethod:    []string{},
		Service: []service{
			{
				ID:              didURI + "#directory",
				Type:            "DIDDirectory",
				ServiceEndpoint: base,
				Description:     "DID web directory service",
			},
			{
				ID:              didURI + "#resolver",
				Type:            "DIDResolver",
				ServiceEndpoint: base + "/resolver/1.0/identifiers/",
				Description:     "Universal Resolver endpoint",
			},
			{
				ID:              didURI + "#registrar",
				Type:            "DIDRegistrar",
				ServiceEndpoint: base + "/registrar/1.0/",
				Description:     "Universal Registrar endpoint (authorized use only)",
			},
		},
		Created: now,
		Updated: now,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode platform DID document")
	}
	return body, nil
}

// writeAtomic replaces path through a temp file in the same directory so readers never see
// a partial document.
func writeAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, "failed to create platform DID directory")
	}

	tmp, err := os.CreateTemp(dir, ".did-*.json")
	if err != nil {
		return apperrors.Wrap(err, "failed to create temp file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return apperrors.Wrap(err, "failed to write platform DID document")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return apperrors.Wrap(err, "failed to sync platform DID document")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, "failed to close platform DID document")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return apperrors.Wrap(err, "failed to set platform DID document mode")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Wrap(err, "failed to move platform DID document into place")
	}
	return nil
}
