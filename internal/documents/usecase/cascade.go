package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	"github.com/allisson/didregistry/internal/authz"
	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	"github.com/allisson/didregistry/internal/notifications"
)

// ApplyCertificateRevocation runs under the document row lock. A PUBLISHED document whose
// live body serves a method on the certificate is deactivated at the registrar first; any
// other document loses its methods on the certificate and gets a reassembled working body.
func (d *documentUseCase) ApplyCertificateRevocation(
	ctx context.Context,
	documentID uuid.UUID,
	cert *certDomain.Certificate,
) (CascadeOutcome, error) {
	outcome := OutcomeUnchanged
	var doc *docDomain.Document
	var slug string

	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		locked, err := d.docRepo.GetByIDForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		rows, err := d.methodRepo.ListByDocument(ctx, locked.ID)
		if err != nil {
			return err
		}

		var onCert []*docDomain.VerificationMethod
		activeOnCert := 0
		for _, row := range rows {
			if row.CertificateID == cert.ID {
				onCert = append(onCert, row)
				if row.IsActive {
					activeOnCert++
				}
			}
		}
		if len(onCert) == 0 {
			return nil
		}

		now := d.now()
		switch locked.Status {
		case docDomain.StatusDeactivated:
			changed, err := d.methodRepo.DeactivateByCertificate(ctx, locked.ID, cert.ID, now)
			if err != nil {
				return err
			}
			if changed > 0 {
				outcome = OutcomeDetached
			}
			return nil

		case docDomain.StatusPublished:
			live, err := liveFragments(locked)
			if err != nil {
				return err
			}
			for _, row := range onCert {
				if live[row.Fragment] {
					outcome = OutcomeDeactivated
					doc = locked
					slug = d.organizationSlug(ctx, locked)
					return d.autoDeactivate(ctx, locked, cert, now)
				}
			}
		}

		if activeOnCert == 0 {
			return nil
		}
		if _, err := d.methodRepo.DeactivateByCertificate(ctx, locked.ID, cert.ID, now); err != nil {
			return err
		}

		fragments := make([]string, 0, len(onCert))
		for _, row := range onCert {
			if row.IsActive {
				fragments = append(fragments, row.Fragment)
			}
			row.IsActive = false
		}

		body, err := d.assemble(ctx, locked, rows)
		if err != nil {
			return err
		}
		previousStatus := locked.Status
		sendBackToDraft(locked)
		if err := storeWorkingBody(locked, body); err != nil {
			return err
		}
		locked.UpdatedAt = now
		if err := d.docRepo.Update(ctx, locked); err != nil {
			return err
		}

		outcome = OutcomeDetached
		return d.record(ctx, authz.System(), auditDomain.ActionDocVMRemoved, locked, true, map[string]any{
			"certificate_id":    cert.ID.String(),
			"certificate_label": cert.Label,
			"fragments":         fragments,
			"previous_status":   string(previousStatus),
			"status":            string(locked.Status),
		})
	})
	if err != nil {
		return OutcomeUnchanged, err
	}

	if outcome == OutcomeDeactivated {
		d.invalidate(ctx, slug, doc)
	}
	if outcome != OutcomeUnchanged {
		d.logger.Info("certificate revocation applied to document",
			slog.String("document_id", documentID.String()),
			slog.String("certificate_id", cert.ID.String()),
			slog.String("outcome", string(outcome)),
		)
	}
	return outcome, nil
}

func (d *documentUseCase) autoDeactivate(
	ctx context.Context,
	doc *docDomain.Document,
	cert *certDomain.Certificate,
	now time.Time,
) error {
	response, err := d.registrar.Deactivate(ctx, doc.DIDURI)
	if err != nil {
		return err
	}
	if _, err := d.methodRepo.DeactivateByCertificate(ctx, doc.ID, cert.ID, now); err != nil {
		return err
	}

	reason := fmt.Sprintf("certificate '%s' revoked", cert.Label)
	doc.MarkDeactivated(now, reason)
	if err := d.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	system := authz.System()
	if err := d.record(ctx, system, auditDomain.ActionDocDeactivated, doc, true, map[string]any{
		"reason":             reason,
		"certificate_id":     cert.ID.String(),
		"registrar_response": string(response),
	}); err != nil {
		return err
	}
	return d.notify(ctx, notifications.KindAutoDeactivated, doc, system, reason)
}

// RefreshCertificate repairs working bodies after a rotation changed a certificate's key.
// The live body of a PUBLISHED document keeps the old key until the next publish.
func (d *documentUseCase) RefreshCertificate(ctx context.Context, documentID, certificateID uuid.UUID) error {
	return d.txManager.WithTx(ctx, func(ctx context.Context) error {
		locked, err := d.docRepo.GetByIDForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if locked.Status == docDomain.StatusDeactivated {
			return nil
		}

		rows, err := d.methodRepo.ListByDocument(ctx, locked.ID)
		if err != nil {
			return err
		}
		uses := false
		for _, row := range rows {
			if row.IsActive && row.CertificateID == certificateID {
				uses = true
				break
			}
		}
		if !uses {
			return nil
		}

		body, err := d.assemble(ctx, locked, rows)
		if err != nil {
			return err
		}
		current, err := currentBody(locked)
		if err != nil {
			return err
		}
		if string(current) == string(body) {
			return nil
		}

		previousStatus := locked.Status
		sendBackToDraft(locked)
		if err := storeWorkingBody(locked, body); err != nil {
			return err
		}
		locked.UpdatedAt = d.now()
		if err := d.docRepo.Update(ctx, locked); err != nil {
			return err
		}
		return d.record(ctx, authz.System(), auditDomain.ActionDocDraftUpdated, locked, true, map[string]any{
			"certificate_id":  certificateID.String(),
			"reason":          "certificate rotated",
			"previous_status": string(previousStatus),
			"status":          string(locked.Status),
		})
	})
}

// sendBackToDraft reopens documents whose reviewed body is about to change.
func sendBackToDraft(doc *docDomain.Document) {
	switch doc.Status {
	case docDomain.StatusPendingReview, docDomain.StatusApproved, docDomain.StatusRejected:
		doc.Status = docDomain.StatusDraft
		doc.ClearReview()
	}
}
