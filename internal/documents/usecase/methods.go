package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	"github.com/allisson/didregistry/internal/documents/assembler"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
	customValidation "github.com/allisson/didregistry/internal/validation"
)

// DIDURI builds the did:web identifier of a document. A port in the platform domain is
// percent-encoded because ':' separates path segments in did:web.
func DIDURI(platformDomain, organizationSlug, label string) string {
	return fmt.Sprintf(
		"did:web:%s:%s:%s",
		strings.ReplaceAll(platformDomain, ":", "%3A"),
		organizationSlug,
		label,
	)
}

func validateMethodInputs(inputs []MethodInput) error {
	seen := make(map[string]bool, len(inputs))
	for i := range inputs {
		input := &inputs[i]
		input.Fragment = strings.TrimPrefix(strings.TrimSpace(input.Fragment), "#")
		input.MethodType = strings.TrimSpace(input.MethodType)

		err := validation.ValidateStruct(input,
			validation.Field(&input.CertificateID, customValidation.RequiredUUID),
			validation.Field(&input.Fragment, validation.Required, customValidation.Fragment),
			validation.Field(&input.MethodType, validation.Length(0, 100)),
		)
		if err != nil {
			return customValidation.WrapValidationError(err)
		}

		if seen[input.Fragment] {
			return apperrors.Wrap(docDomain.ErrDuplicateFragment, input.Fragment)
		}
		seen[input.Fragment] = true

		if input.MethodType == "" {
			input.MethodType = docDomain.DefaultMethodType
		}
		if len(input.Relationships) == 0 {
			input.Relationships = append([]docDomain.Relationship(nil), docDomain.DefaultRelationships...)
		}
		input.Relationships = uniqueRelationships(input.Relationships)
		for _, rel := range input.Relationships {
			if !rel.Valid() {
				return apperrors.Wrap(docDomain.ErrInvalidRelationship, string(rel))
			}
		}
	}
	return nil
}

func uniqueRelationships(rels []docDomain.Relationship) []docDomain.Relationship {
	seen := make(map[docDomain.Relationship]bool, len(rels))
	out := make([]docDomain.Relationship, 0, len(rels))
	for _, rel := range rels {
		rel = docDomain.Relationship(strings.TrimSpace(string(rel)))
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, rel)
	}
	return out
}

func normalizeServices(services []docDomain.Service) ([]docDomain.Service, error) {
	out := make([]docDomain.Service, 0, len(services))
	for _, svc := range services {
		svc.ID = strings.TrimPrefix(strings.TrimSpace(svc.ID), "#")
		svc.Type = strings.TrimSpace(svc.Type)
		svc.ServiceEndpoint = strings.TrimSpace(svc.ServiceEndpoint)

		err := validation.ValidateStruct(&svc,
			validation.Field(&svc.ID, customValidation.Fragment),
			validation.Field(&svc.Type, validation.Length(0, 100)),
			validation.Field(&svc.ServiceEndpoint, validation.Required, customValidation.AbsoluteURL),
		)
		if err != nil {
			return nil, customValidation.WrapValidationError(err)
		}
		out = append(out, svc)
	}
	return out, nil
}

// usableCertificate loads a certificate a new method may bind to. The row stays share-locked
// until the caller's transaction ends, so a revocation cannot commit between this check and
// the method insert.
func (d *documentUseCase) usableCertificate(
	ctx context.Context,
	organizationID, certificateID uuid.UUID,
) (*certDomain.Certificate, error) {
	cert, err := d.certReader.GetByIDForShare(ctx, certificateID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Wrap(docDomain.ErrCertificateNotUsable, certificateID.String())
		}
		return nil, err
	}
	if cert.OrganizationID != organizationID || !cert.IsActive() {
		return nil, apperrors.Wrap(docDomain.ErrCertificateNotUsable, certificateID.String())
	}
	return cert, nil
}

// buildMethods turns validated inputs into method rows, reusing the identity of existing rows
// with the same fragment and certificate. With retainDropped, rows missing from the inputs
// are kept inactive so a PUBLISHED document's live methods stay discoverable until the next
// publish. Revocation history is kept either way.
func (d *documentUseCase) buildMethods(
	ctx context.Context,
	doc *docDomain.Document,
	inputs []MethodInput,
	existing []*docDomain.VerificationMethod,
	retainDropped bool,
	now time.Time,
) ([]*docDomain.VerificationMethod, error) {
	byFragment := make(map[string]*docDomain.VerificationMethod, len(existing))
	for _, method := range existing {
		byFragment[method.Fragment] = method
	}

	rows := make([]*docDomain.VerificationMethod, 0, len(inputs)+len(existing))
	used := make(map[string]bool, len(inputs))
	for i, input := range inputs {
		if _, err := d.usableCertificate(ctx, doc.OrganizationID, input.CertificateID); err != nil {
			return nil, err
		}

		row := &docDomain.VerificationMethod{
			ID:            uuid.Must(uuid.NewV7()),
			DocumentID:    doc.ID,
			CertificateID: input.CertificateID,
			Fragment:      input.Fragment,
			MethodType:    input.MethodType,
			Relationships: input.Relationships,
			Position:      i,
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if prev, ok := byFragment[input.Fragment]; ok {
			if prev.CertificateID != input.CertificateID {
				history, err := d.isRevocationHistory(ctx, prev)
				if err != nil {
					return nil, err
				}
				if history {
					return nil, apperrors.Wrap(
						docDomain.ErrDuplicateFragment,
						input.Fragment+" is kept as the record of a revoked certificate",
					)
				}
			}
			if retainDropped && prev.CertificateID != input.CertificateID {
				return nil, apperrors.Wrap(
					docDomain.ErrDuplicateFragment,
					input.Fragment+" is bound to another certificate in the published document",
				)
			}
			if prev.CertificateID == input.CertificateID {
				row.ID = prev.ID
				row.CreatedAt = prev.CreatedAt
			}
		}
		used[input.Fragment] = true
		rows = append(rows, row)
	}

	for _, prev := range existing {
		if used[prev.Fragment] {
			continue
		}
		if !retainDropped {
			history, err := d.isRevocationHistory(ctx, prev)
			if err != nil {
				return nil, err
			}
			if !history {
				continue
			}
		}
		kept := *prev
		kept.Position = len(rows)
		if kept.IsActive {
			kept.IsActive = false
			kept.UpdatedAt = now
		}
		rows = append(rows, &kept)
	}
	return rows, nil
}

// isRevocationHistory reports whether row is an inactive binding to a revoked certificate.
// Such rows are never deleted: they record which documents used the certificate and keep
// it from being removed.
func (d *documentUseCase) isRevocationHistory(
	ctx context.Context,
	row *docDomain.VerificationMethod,
) (bool, error) {
	if row.IsActive {
		return false, nil
	}
	cert, err := d.certReader.GetByID(ctx, row.CertificateID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return cert.Status == certDomain.StatusRevoked, nil
}

// publishedRows is the method set stored by a publish: the active rows plus the revocation
// history. Rows the draft dropped for any other reason are pruned.
func (d *documentUseCase) publishedRows(
	ctx context.Context,
	rows []*docDomain.VerificationMethod,
) ([]*docDomain.VerificationMethod, error) {
	out := make([]*docDomain.VerificationMethod, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			history, err := d.isRevocationHistory(ctx, row)
			if err != nil {
				return nil, err
			}
			if !history {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// assemble builds the canonical body from the active rows, loading each certificate's key.
func (d *documentUseCase) assemble(
	ctx context.Context,
	doc *docDomain.Document,
	rows []*docDomain.VerificationMethod,
) (json.RawMessage, error) {
	methods := make([]assembler.Method, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		cert, err := d.certReader.GetByID(ctx, row.CertificateID)
		if err != nil {
			return nil, err
		}
		methods = append(methods, assembler.Method{
			Fragment:      row.Fragment,
			Type:          row.MethodType,
			Relationships: row.Relationships,
			PublicKeyJWK:  cert.PublicKeyJWK,
			Active:        true,
		})
	}
	return assembler.Build(doc.DIDURI, methods, doc.Services)
}

// storeWorkingBody places a reassembled body. A PUBLISHED document whose draft matches the
// live body again drops the draft.
func storeWorkingBody(doc *docDomain.Document, body json.RawMessage) error {
	doc.SetWorkingContent(body)
	if doc.Status != docDomain.StatusPublished || doc.DraftContent == nil {
		return nil
	}
	live, err := assembler.StripProof(doc.Content)
	if err != nil {
		return apperrors.Wrap(err, "failed to read live document body")
	}
	if string(live) == string(body) {
		doc.DraftContent = nil
	}
	return nil
}

// currentBody is the working body without any proof, for change detection.
func currentBody(doc *docDomain.Document) (json.RawMessage, error) {
	working := doc.WorkingContent()
	if len(working) == 0 {
		return nil, nil
	}
	return assembler.StripProof(working)
}

// liveFragments returns the fragments of the verification methods the live body serves.
func liveFragments(doc *docDomain.Document) (map[string]bool, error) {
	var body struct {
		VerificationMethod []struct {
			ID string `json:"id"`
		} `json:"verificationMethod"`
	}
	if err := json.Unmarshal(doc.Content, &body); err != nil {
		return nil, apperrors.Wrap(err, "failed to read live document body")
	}
	fragments := make(map[string]bool, len(body.VerificationMethod))
	for _, vm := range body.VerificationMethod {
		if _, fragment, ok := strings.Cut(vm.ID, "#"); ok {
			fragments[fragment] = true
		}
	}
	return fragments, nil
}

