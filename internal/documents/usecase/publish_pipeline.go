package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/allisson/didregistry/internal/documents/assembler"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// PublishResult is what a successful pipeline run produced. Nothing has been persisted yet.
type PublishResult struct {
	Body              json.RawMessage
	Signature         string
	SignedAt          time.Time
	RegistrarResponse json.RawMessage
	FirstPublication  bool
}

// PublishPipeline signs a document body and submits it to the registrar.
type PublishPipeline struct {
	certReader CertificateReader
	signer     Signer
	registrar  Registrar
	logger     *slog.Logger
	now        func() time.Time
}

// NewPublishPipeline creates a new PublishPipeline.
func NewPublishPipeline(
	certReader CertificateReader,
	signer Signer,
	registrar Registrar,
	logger *slog.Logger,
) *PublishPipeline {
	return &PublishPipeline{
		certReader: certReader,
		signer:     signer,
		registrar:  registrar,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Run validates the working body's references, signs its canonical bytes, embeds the proof
// and registers the result. A failure at any step leaves no trace; a retry signs again.
func (p *PublishPipeline) Run(
	ctx context.Context,
	doc *docDomain.Document,
	methods []*docDomain.VerificationMethod,
) (*PublishResult, error) {
	body := doc.WorkingContent()
	if len(body) == 0 {
		return nil, docDomain.ErrNothingToPublish
	}

	var signingMethod *docDomain.VerificationMethod
	for _, method := range methods {
		if !method.IsActive {
			continue
		}
		cert, err := p.certReader.GetByID(ctx, method.CertificateID)
		if err != nil {
			return nil, err
		}
		if !cert.IsActive() {
			return nil, apperrors.Wrap(
				docDomain.ErrStaleReference,
				fmt.Sprintf("method %q uses certificate %q in status %s", method.Fragment, cert.Label, cert.Status),
			)
		}
		if signingMethod == nil {
			signingMethod = method
		}
	}
	if signingMethod == nil {
		return nil, docDomain.ErrNoActiveMethods
	}

	canonical, err := assembler.StripProof(body)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to canonicalize document")
	}

	jws, err := p.signer.Sign(ctx, canonical)
	if err != nil {
		return nil, err
	}
	jws = strings.TrimSpace(jws)
	if jws == "" {
		return nil, apperrors.NewExternalServiceError("signer", "sign", 0, apperrors.New("empty signature"))
	}

	signedAt := p.now()
	signed, err := assembler.AttachProof(canonical, jws, doc.DIDURI+"#"+signingMethod.Fragment, signedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to attach proof")
	}

	first := doc.PublishedAt == nil
	var response json.RawMessage
	if first {
		response, err = p.registrar.Create(ctx, doc.DIDURI, signed)
	} else {
		response, err = p.registrar.Update(ctx, doc.DIDURI, signed)
	}
	if err != nil {
		p.logger.Warn("registrar rejected document",
			slog.String("document_id", doc.ID.String()),
			slog.String("did", doc.DIDURI),
			slog.Bool("first_publication", first),
			slog.Any("error", err),
		)
		return nil, err
	}

	return &PublishResult{
		Body:              signed,
		Signature:         jws,
		SignedAt:          signedAt,
		RegistrarResponse: response,
		FirstPublication:  first,
	}, nil
}
