// Package notifications turns lifecycle events into messages for organization members.
// Requests travel through the outbox as notification.requested events; delivery sits
// behind the Notifier interface.
package notifications

import (
	"bytes"
	"context"
	"log/slog"
	"text/template"

	"github.com/google/uuid"

	apperrors "github.com/allisson/didregistry/internal/errors"
	orgDomain "github.com/allisson/didregistry/internal/organizations/domain"
)

// Kind identifies the lifecycle event a notification reports.
type Kind string

// Notification kinds.
const (
	KindReviewRequested Kind = "review_requested"
	KindApproved        Kind = "approved"
	KindRejected        Kind = "rejected"
	KindPublished       Kind = "published"
	KindAutoDeactivated Kind = "auto_deactivated"
)

// Request is the outbox payload describing what happened to a document.
type Request struct {
	Kind           Kind      `json:"kind"`
	OrganizationID uuid.UUID `json:"organization_id"`
	DocumentID     uuid.UUID `json:"document_id"`
	DocumentLabel  string    `json:"document_label"`
	DIDURI         string    `json:"did_uri"`
	OwnerID        uuid.UUID `json:"owner_id"`
	ActorEmail     string    `json:"actor_email"`
	Reason         string    `json:"reason,omitempty"`
	Version        int       `json:"version,omitempty"`
}

// Message is a rendered notification ready for delivery.
type Message struct {
	Kind       Kind
	Recipients []string
	Subject    string
	Body       string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// MemberDirectory resolves recipients.
type MemberDirectory interface {
	GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*orgDomain.Member, error)
	ListMembersByRole(ctx context.Context, organizationID uuid.UUID, roles ...orgDomain.Role) ([]*orgDomain.Member, error)
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

var templates = map[Kind]messageTemplate{
	KindReviewRequested: mustTemplate(
		`Review requested: {{.DocumentLabel}}`,
		`{{.ActorEmail}} submitted {{.DIDURI}} for review.`,
	),
	KindApproved: mustTemplate(
		`Approved: {{.DocumentLabel}}`,
		`{{.ActorEmail}} approved {{.DIDURI}}. It can now be published.`,
	),
	KindRejected: mustTemplate(
		`Changes requested: {{.DocumentLabel}}`,
		`{{.ActorEmail}} rejected {{.DIDURI}}.{{if .Reason}} Reason: {{.Reason}}{{end}} The document is back in DRAFT.`,
	),
	KindPublished: mustTemplate(
		`Published: {{.DocumentLabel}} v{{.Version}}`,
		`{{.DIDURI}} version {{.Version}} is now resolvable.`,
	),
	KindAutoDeactivated: mustTemplate(
		`Deactivated: {{.DocumentLabel}}`,
		`{{.DIDURI}} was deactivated automatically: {{.Reason}}.`,
	),
}

// Service resolves recipients for a request, renders it and hands it to the notifier.
type Service struct {
	members  MemberDirectory
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a notification service.
func NewService(members MemberDirectory, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{members: members, notifier: notifier, logger: logger}
}

// Handle delivers req. Requests without recipients are dropped with a log record.
func (s *Service) Handle(ctx context.Context, req Request) error {
	tmpl, ok := templates[req.Kind]
	if !ok {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown notification kind "+string(req.Kind))
	}

	recipients, err := s.recipients(ctx, req)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		s.logger.Warn("notification has no recipients",
			slog.String("kind", string(req.Kind)),
			slog.String("document_id", req.DocumentID.String()),
		)
		return nil
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, req); err != nil {
		return apperrors.Wrap(err, "failed to render notification subject")
	}
	if err := tmpl.body.Execute(&body, req); err != nil {
		return apperrors.Wrap(err, "failed to render notification body")
	}

	return s.notifier.Notify(ctx, Message{
		Kind:       req.Kind,
		Recipients: recipients,
		Subject:    subject.String(),
		Body:       body.String(),
	})
}

// recipients: reviewers for review requests, the owner otherwise. Admins are copied on
// automatic deactivations.
func (s *Service) recipients(ctx context.Context, req Request) ([]string, error) {
	var emails []string
	seen := map[string]bool{}
	add := func(email string) {
		if email != "" && !seen[email] {
			seen[email] = true
			emails = append(emails, email)
		}
	}

	if req.Kind != KindReviewRequested {
		owner, err := s.members.GetMember(ctx, req.OrganizationID, req.OwnerID)
		switch {
		case err == nil:
			add(owner.Email)
		case apperrors.Is(err, orgDomain.ErrMemberNotFound):
		default:
			return nil, err
		}
	}

	if req.Kind == KindReviewRequested || req.Kind == KindAutoDeactivated {
		admins, err := s.members.ListMembersByRole(ctx, req.OrganizationID, orgDomain.RoleOrgAdmin)
		if err != nil {
			return nil, err
		}
		for _, m := range admins {
			if req.Kind == KindReviewRequested && m.UserID == req.OwnerID {
				continue
			}
			add(m.Email)
		}
	}

	return emails, nil
}

// LogNotifier writes notifications as structured log records.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs msg.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", string(msg.Kind)),
		slog.Any("recipients", msg.Recipients),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
