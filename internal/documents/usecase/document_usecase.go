package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
	auditUseCase "github.com/allisson/didregistry/internal/audit/usecase"
	"github.com/allisson/didregistry/internal/authz"
	"github.com/allisson/didregistry/internal/database"
	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/notifications"
	outboxDomain "github.com/allisson/didregistry/internal/outbox/domain"
	customValidation "github.com/allisson/didregistry/internal/validation"
)

type documentUseCase struct {
	txManager      database.TxManager
	docRepo        DocumentRepository
	methodRepo     VerificationMethodRepository
	certReader     CertificateReader
	orgRepo        OrganizationRepository
	pipeline       *PublishPipeline
	registrar      Registrar
	authorizer     authz.Authorizer
	audit          auditUseCase.Recorder
	events         EventPublisher
	cache          CacheInvalidator
	logger         *slog.Logger
	platformDomain string
	now            func() time.Time
}

// NewDocumentUseCase creates a new DocumentUseCase. cache may be nil when the resolver runs
// without a response cache.
func NewDocumentUseCase(
	txManager database.TxManager,
	docRepo DocumentRepository,
	methodRepo VerificationMethodRepository,
	certReader CertificateReader,
	orgRepo OrganizationRepository,
	pipeline *PublishPipeline,
	registrar Registrar,
	authorizer authz.Authorizer,
	audit auditUseCase.Recorder,
	events EventPublisher,
	cache CacheInvalidator,
	logger *slog.Logger,
	platformDomain string,
) DocumentUseCase {
	return &documentUseCase{
		txManager:      txManager,
		docRepo:        docRepo,
		methodRepo:     methodRepo,
		certReader:     certReader,
		orgRepo:        orgRepo,
		pipeline:       pipeline,
		registrar:      registrar,
		authorizer:     authorizer,
		audit:          audit,
		events:         events,
		cache:          cache,
		logger:         logger,
		platformDomain: platformDomain,
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (d *documentUseCase) Create(ctx context.Context, input CreateInput) (*docDomain.Document, error) {
	input.Label = strings.ToLower(strings.TrimSpace(input.Label))
	err := validation.ValidateStruct(&input,
		validation.Field(&input.OrganizationID, customValidation.RequiredUUID),
		validation.Field(&input.Label, validation.Required, customValidation.Label),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}
	if err := validateMethodInputs(input.Methods); err != nil {
		return nil, err
	}
	services, err := normalizeServices(input.Services)
	if err != nil {
		return nil, err
	}

	if err := d.authorizer.Authorize(ctx, input.Actor, input.OrganizationID, authz.PermMutateDocuments); err != nil {
		return nil, err
	}

	now := d.now()
	var doc *docDomain.Document
	err = d.txManager.WithTx(ctx, func(ctx context.Context) error {
		org, err := d.orgRepo.LockByID(ctx, input.OrganizationID)
		if err != nil {
			return err
		}

		_, err = d.docRepo.GetByLabel(ctx, org.ID, input.Label)
		switch {
		case err == nil:
			return docDomain.ErrDocumentLabelConflict
		case !apperrors.Is(err, apperrors.ErrNotFound):
			return err
		}

		doc = &docDomain.Document{
			ID:             uuid.Must(uuid.NewV7()),
			OrganizationID: org.ID,
			Label:          input.Label,
			DIDURI:         DIDURI(d.platformDomain, org.Slug, input.Label),
			Services:       services,
			Status:         docDomain.StatusDraft,
			Version:        1,
			OwnerID:        input.Actor.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		rows, err := d.buildMethods(ctx, doc, input.Methods, nil, false, now)
		if err != nil {
			return err
		}
		if doc.Content, err = d.assemble(ctx, doc, rows); err != nil {
			return err
		}

		if err := d.docRepo.Create(ctx, doc); err != nil {
			return err
		}
		if err := d.methodRepo.ReplaceForDocument(ctx, doc.ID, rows); err != nil {
			return err
		}
		if err := d.docRepo.CreateVersion(ctx, &docDomain.DocumentVersion{
			ID:         uuid.Must(uuid.NewV7()),
			DocumentID: doc.ID,
			Version:    1,
			Content:    doc.Content,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		return d.record(ctx, input.Actor, auditDomain.ActionDocCreated, doc, false, map[string]any{
			"label":   doc.Label,
			"did":     doc.DIDURI,
			"methods": len(rows),
		})
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("document created",
		slog.String("document_id", doc.ID.String()),
		slog.String("did", doc.DIDURI),
	)
	return doc, nil
}

func (d *documentUseCase) UpdateDraft(ctx context.Context, input UpdateDraftInput) (*docDomain.Document, error) {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.DocumentID, customValidation.RequiredUUID),
	)
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	var methods []MethodInput
	if input.Methods != nil {
		methods = append(methods, (*input.Methods)...)
		if err := validateMethodInputs(methods); err != nil {
			return nil, err
		}
	}
	var services []docDomain.Service
	if input.Services != nil {
		if services, err = normalizeServices(*input.Services); err != nil {
			return nil, err
		}
	}

	if _, err := d.authorized(ctx, input.Actor, input.DocumentID, authz.PermMutateDocuments); err != nil {
		return nil, err
	}

	now := d.now()
	var doc *docDomain.Document
	err = d.txManager.WithTx(ctx, func(ctx context.Context) error {
		locked, err := d.docRepo.GetByIDForUpdate(ctx, input.DocumentID)
		if err != nil {
			return err
		}

		switch locked.Status {
		case docDomain.StatusDraft, docDomain.StatusPublished:
		case docDomain.StatusRejected:
			locked.Status = docDomain.StatusDraft
			locked.ClearReview()
		default:
			return apperrors.Wrap(docDomain.ErrInvalidTransition, "cannot edit a "+string(locked.Status)+" document")
		}

		rows, err := d.methodRepo.ListByDocument(ctx, locked.ID)
		if err != nil {
			return err
		}
		if input.Methods != nil {
			retain := locked.Status == docDomain.StatusPublished
			if rows, err = d.buildMethods(ctx, locked, methods, rows, retain, now); err != nil {
				return err
			}
		}
		if input.Services != nil {
			locked.Services = services
		}

		body, err := d.assemble(ctx, locked, rows)
		if err != nil {
			return err
		}
		if err := storeWorkingBody(locked, body); err != nil {
			return err
		}
		locked.UpdatedAt = now

		if err := d.docRepo.Update(ctx, locked); err != nil {
			return err
		}
		if input.Methods != nil {
			if err := d.methodRepo.ReplaceForDocument(ctx, locked.ID, rows); err != nil {
				return err
			}
		}

		doc = locked
		return d.record(ctx, input.Actor, auditDomain.ActionDocDraftUpdated, locked, false, map[string]any{
			"status":            string(locked.Status),
			"methods_changed":   input.Methods != nil,
			"services_changed":  input.Services != nil,
			"has_pending_draft": locked.HasPendingDraft(),
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *documentUseCase) Submit(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	if err := validateTransition(&input, false); err != nil {
		return nil, err
	}
	if _, err := d.authorized(ctx, input.Actor, input.DocumentID, authz.PermMutateDocuments); err != nil {
		return nil, err
	}

	return d.transition(ctx, input, func(ctx context.Context, doc *docDomain.Document, now time.Time) error {
		if doc.Status != docDomain.StatusDraft {
			return apperrors.Wrap(docDomain.ErrInvalidTransition, "only DRAFT documents can be submitted")
		}
		rows, err := d.methodRepo.ListByDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		if !docDomain.HasActiveMethod(rows) {
			return docDomain.ErrNoActiveMethods
		}

		doc.Status = docDomain.StatusPendingReview
		doc.SubmittedBy = input.Actor.IDPtr()
		doc.SubmittedAt = &now
		doc.ReviewedBy = nil
		doc.ReviewedAt = nil
		doc.ReviewComment = ""
		if err := d.docRepo.Update(ctx, doc); err != nil {
			return err
		}
		if err := d.record(ctx, input.Actor, auditDomain.ActionDocSubmitted, doc, false, map[string]any{
			"comment": input.Comment,
		}); err != nil {
			return err
		}
		return d.notify(ctx, notifications.KindReviewRequested, doc, input.Actor, input.Comment)
	})
}

func (d *documentUseCase) Approve(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	if err := validateTransition(&input, false); err != nil {
		return nil, err
	}
	if _, err := d.authorized(ctx, input.Actor, input.DocumentID, authz.PermReviewDocuments); err != nil {
		return nil, err
	}

	return d.transition(ctx, input, func(ctx context.Context, doc *docDomain.Document, now time.Time) error {
		if err := checkReviewable(doc, input.Actor); err != nil {
			return err
		}

		doc.Status = docDomain.StatusApproved
		doc.ReviewedBy = input.Actor.IDPtr()
		doc.ReviewedAt = &now
		doc.ReviewComment = input.Comment
		if err := d.docRepo.Update(ctx, doc); err != nil {
			return err
		}
		if err := d.record(ctx, input.Actor, auditDomain.ActionDocApproved, doc, false, map[string]any{
			"comment": input.Comment,
		}); err != nil {
			return err
		}
		return d.notify(ctx, notifications.KindApproved, doc, input.Actor, input.Comment)
	})
}

// Reject never leaves the document in REJECTED: the owner can edit again straight away and
// the reason stays on the document until the next submission.
func (d *documentUseCase) Reject(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	if err := validateTransition(&input, true); err != nil {
		return nil, err
	}
	if _, err := d.authorized(ctx, input.Actor, input.DocumentID, authz.PermReviewDocuments); err != nil {
		return nil, err
	}

	return d.transition(ctx, input, func(ctx context.Context, doc *docDomain.Document, now time.Time) error {
		if err := checkReviewable(doc, input.Actor); err != nil {
			return err
		}

		doc.Status = docDomain.StatusRejected
		doc.ReviewedBy = input.Actor.IDPtr()
		doc.ReviewedAt = &now
		if err := d.record(ctx, input.Actor, auditDomain.ActionDocRejected, doc, false, map[string]any{
			"reason": input.Comment,
		}); err != nil {
			return err
		}

		doc.Status = docDomain.StatusDraft
		doc.ClearReview()
		doc.ReviewComment = input.Comment
		if err := d.docRepo.Update(ctx, doc); err != nil {
			return err
		}
		return d.notify(ctx, notifications.KindRejected, doc, input.Actor, input.Comment)
	})
}

func (d *documentUseCase) Publish(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	if err := validateTransition(&input, false); err != nil {
		return nil, err
	}
	current, err := d.authorized(ctx, input.Actor, input.DocumentID, authz.PermMutateDocuments)
	if err != nil {
		return nil, err
	}
	skipReview := false
	if current.Status == docDomain.StatusDraft {
		err := d.authorizer.Authorize(ctx, input.Actor, current.OrganizationID, authz.PermSkipReview)
		switch {
		case err == nil:
			skipReview = true
		case !apperrors.Is(err, apperrors.ErrForbidden):
			return nil, err
		}
	}

	doc, err := d.transition(ctx, input, func(ctx context.Context, doc *docDomain.Document, now time.Time) error {
		switch doc.Status {
		case docDomain.StatusApproved:
		case docDomain.StatusPublished:
			if !doc.HasPendingDraft() {
				return docDomain.ErrNothingToPublish
			}
		case docDomain.StatusDraft:
			if !skipReview {
				return apperrors.Wrap(docDomain.ErrInvalidTransition, "DRAFT documents must be reviewed before publishing")
			}
		default:
			return apperrors.Wrap(docDomain.ErrInvalidTransition, "cannot publish a "+string(doc.Status)+" document")
		}

		rows, err := d.methodRepo.ListByDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		result, err := d.pipeline.Run(ctx, doc, rows)
		if err != nil {
			return err
		}

		previousStatus := doc.Status
		if !result.FirstPublication {
			doc.Version++
		}
		version := &docDomain.DocumentVersion{
			ID:                uuid.Must(uuid.NewV7()),
			DocumentID:        doc.ID,
			Version:           doc.Version,
			Content:           result.Body,
			Signature:         result.Signature,
			SignedAt:          &result.SignedAt,
			PublishedAt:       &now,
			PublishedBy:       input.Actor.IDPtr(),
			RegistrarResponse: result.RegistrarResponse,
			CreatedAt:         now,
		}
		if result.FirstPublication {
			err = d.docRepo.FinalizeVersion(ctx, version)
		} else {
			err = d.docRepo.CreateVersion(ctx, version)
		}
		if err != nil {
			return err
		}

		doc.Content = result.Body
		doc.DraftContent = nil
		doc.Status = docDomain.StatusPublished
		doc.PublishedAt = &now
		doc.ClearReview()
		doc.UpdatedAt = now
		if err := d.docRepo.Update(ctx, doc); err != nil {
			return err
		}
		kept, err := d.publishedRows(ctx, rows)
		if err != nil {
			return err
		}
		if err := d.methodRepo.ReplaceForDocument(ctx, doc.ID, kept); err != nil {
			return err
		}

		if err := d.record(ctx, input.Actor, auditDomain.ActionDocSigned, doc, false, map[string]any{
			"version":   doc.Version,
			"signed_at": result.SignedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
		if err := d.record(ctx, input.Actor, auditDomain.ActionDocPublished, doc, false, map[string]any{
			"version":         doc.Version,
			"did":             doc.DIDURI,
			"previous_status": string(previousStatus),
			"skip_review":     previousStatus == docDomain.StatusDraft,
		}); err != nil {
			return err
		}
		return d.notify(ctx, notifications.KindPublished, doc, input.Actor, "")
	})
	if err != nil {
		return nil, err
	}

	d.invalidate(ctx, d.organizationSlug(ctx, doc), doc)
	d.logger.Info("document published",
		slog.String("document_id", doc.ID.String()),
		slog.String("did", doc.DIDURI),
		slog.Int("version", doc.Version),
	)
	return doc, nil
}

func (d *documentUseCase) Deactivate(ctx context.Context, input TransitionInput) (*docDomain.Document, error) {
	if err := validateTransition(&input, false); err != nil {
		return nil, err
	}
	if _, err := d.authorized(ctx, input.Actor, input.DocumentID, authz.PermMutateDocuments); err != nil {
		return nil, err
	}

	doc, err := d.transition(ctx, input, func(ctx context.Context, doc *docDomain.Document, now time.Time) error {
		if doc.Status != docDomain.StatusPublished {
			return apperrors.Wrap(docDomain.ErrInvalidTransition, "only PUBLISHED documents can be deactivated")
		}

		response, err := d.registrar.Deactivate(ctx, doc.DIDURI)
		if err != nil {
			return err
		}

		doc.MarkDeactivated(now, input.Comment)
		if err := d.docRepo.Update(ctx, doc); err != nil {
			return err
		}
		return d.record(ctx, input.Actor, auditDomain.ActionDocDeactivated, doc, false, map[string]any{
			"reason":             input.Comment,
			"registrar_response": string(response),
		})
	})
	if err != nil {
		return nil, err
	}

	d.invalidate(ctx, d.organizationSlug(ctx, doc), doc)
	d.logger.Info("document deactivated",
		slog.String("document_id", doc.ID.String()),
		slog.String("did", doc.DIDURI),
	)
	return doc, nil
}

func (d *documentUseCase) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*docDomain.Document, error) {
	return d.authorized(ctx, actor, id, authz.PermViewDocuments)
}

func (d *documentUseCase) GetByLabel(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	label string,
) (*docDomain.Document, error) {
	if err := d.authorizer.Authorize(ctx, actor, organizationID, authz.PermViewDocuments); err != nil {
		return nil, err
	}
	return d.docRepo.GetByLabel(ctx, organizationID, strings.ToLower(strings.TrimSpace(label)))
}

func (d *documentUseCase) List(
	ctx context.Context,
	actor authz.Actor,
	organizationID uuid.UUID,
	offset, limit int,
) ([]*docDomain.Document, error) {
	if err := d.authorizer.Authorize(ctx, actor, organizationID, authz.PermViewDocuments); err != nil {
		return nil, err
	}
	return d.docRepo.List(ctx, organizationID, offset, limit)
}

func (d *documentUseCase) ListMethods(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) ([]*docDomain.VerificationMethod, error) {
	if _, err := d.authorized(ctx, actor, id, authz.PermViewDocuments); err != nil {
		return nil, err
	}
	return d.methodRepo.ListByDocument(ctx, id)
}

func (d *documentUseCase) ListVersions(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
) ([]*docDomain.DocumentVersion, error) {
	if _, err := d.authorized(ctx, actor, id, authz.PermViewDocuments); err != nil {
		return nil, err
	}
	return d.docRepo.ListVersions(ctx, id)
}

func (d *documentUseCase) GetVersion(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
	version int,
) (*docDomain.DocumentVersion, error) {
	if _, err := d.authorized(ctx, actor, id, authz.PermViewDocuments); err != nil {
		return nil, err
	}
	return d.docRepo.GetVersion(ctx, id, version)
}

// authorized loads the document and checks perm in its organization.
func (d *documentUseCase) authorized(
	ctx context.Context,
	actor authz.Actor,
	id uuid.UUID,
	perm authz.Permission,
) (*docDomain.Document, error) {
	doc, err := d.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.authorizer.Authorize(ctx, actor, doc.OrganizationID, perm); err != nil {
		return nil, err
	}
	return doc, nil
}

// transition runs fn on the row-locked document inside a transaction.
func (d *documentUseCase) transition(
	ctx context.Context,
	input TransitionInput,
	fn func(ctx context.Context, doc *docDomain.Document, now time.Time) error,
) (*docDomain.Document, error) {
	var doc *docDomain.Document
	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		locked, err := d.docRepo.GetByIDForUpdate(ctx, input.DocumentID)
		if err != nil {
			return err
		}
		now := d.now()
		locked.UpdatedAt = now
		if err := fn(ctx, locked, now); err != nil {
			return err
		}
		doc = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func validateTransition(input *TransitionInput, commentRequired bool) error {
	input.Comment = strings.TrimSpace(input.Comment)
	commentRules := []validation.Rule{validation.Length(0, 1000)}
	if commentRequired {
		commentRules = append(commentRules, validation.Required)
	}
	err := validation.ValidateStruct(input,
		validation.Field(&input.DocumentID, customValidation.RequiredUUID),
		validation.Field(&input.Comment, commentRules...),
	)
	if err != nil {
		return customValidation.WrapValidationError(err)
	}
	return nil
}

// checkReviewable enforces the four-eyes rule.
func checkReviewable(doc *docDomain.Document, actor authz.Actor) error {
	if doc.Status != docDomain.StatusPendingReview {
		return apperrors.Wrap(docDomain.ErrInvalidTransition, "only PENDING_REVIEW documents can be reviewed")
	}
	if !actor.IsSystem() && actor.ID == doc.OwnerID {
		return docDomain.ErrSelfReview
	}
	return nil
}

func (d *documentUseCase) notify(
	ctx context.Context,
	kind notifications.Kind,
	doc *docDomain.Document,
	actor authz.Actor,
	reason string,
) error {
	return d.events.Publish(ctx, outboxDomain.EventNotificationRequested, notifications.Request{
		Kind:           kind,
		OrganizationID: doc.OrganizationID,
		DocumentID:     doc.ID,
		DocumentLabel:  doc.Label,
		DIDURI:         doc.DIDURI,
		OwnerID:        doc.OwnerID,
		ActorEmail:     actor.Email,
		Reason:         reason,
		Version:        doc.Version,
	})
}

// organizationSlug resolves the resolver path segment of doc. Callers inside a transaction
// pass its ctx so the lookup never leaves the transaction's connection.
func (d *documentUseCase) organizationSlug(ctx context.Context, doc *docDomain.Document) string {
	if d.cache == nil {
		return ""
	}
	org, err := d.orgRepo.GetByID(ctx, doc.OrganizationID)
	if err != nil {
		d.logger.Warn("failed to resolve organization for cache invalidation",
			slog.String("document_id", doc.ID.String()),
			slog.Any("error", err),
		)
		return ""
	}
	return org.Slug
}

// invalidate drops cached resolver responses after commit. Failures only delay freshness
// until the cache entry expires.
func (d *documentUseCase) invalidate(ctx context.Context, slug string, doc *docDomain.Document) {
	if d.cache == nil || slug == "" {
		return
	}
	if err := d.cache.Invalidate(ctx, slug, doc.Label); err != nil {
		d.logger.Warn("failed to invalidate resolver cache",
			slog.String("document_id", doc.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (d *documentUseCase) record(
	ctx context.Context,
	actor authz.Actor,
	action auditDomain.Action,
	doc *docDomain.Document,
	automatic bool,
	metadata map[string]any,
) error {
	orgID := doc.OrganizationID
	return d.audit.Record(ctx, auditUseCase.Entry{
		OrganizationID: &orgID,
		Actor:          actor,
		Action:         action,
		TargetType:     auditDomain.TargetDIDDocument,
		TargetID:       doc.ID,
		Metadata:       metadata,
		Automatic:      automatic,
	})
}
