// Package registrar drives a Universal Registrar compatible service for did:web operations.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/integrations"
)

const serviceName = "registrar"

type didState struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
	DID    string `json:"did,omitempty"`
}

type operationResponse struct {
	DIDState didState `json:"didState"`
}

// Client calls the registrar create, update and deactivate endpoints.
type Client struct {
	baseURL string
	network string
	caller  *integrations.Caller
}

// NewClient creates a registrar Client. network is forwarded in create options when set.
func NewClient(baseURL, network string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		network: network,
		caller:  integrations.NewCaller(serviceName, timeout, logger),
	}
}

// Create registers a new DID document.
func (c *Client) Create(ctx context.Context, didURI string, document json.RawMessage) (json.RawMessage, error) {
	options := map[string]any{}
	if c.network != "" {
		options["network"] = c.network
	}
	return c.post(ctx, "create", "/1.0/create?method=web", map[string]any{
		"jobId":       nil,
		"options":     options,
		"secret":      map[string]any{},
		"didDocument": document,
	})
}

// Update replaces the registered document for didURI.
func (c *Client) Update(ctx context.Context, didURI string, document json.RawMessage) (json.RawMessage, error) {
	return c.post(ctx, "update", "/1.0/update", map[string]any{
		"jobId":                nil,
		"did":                  didURI,
		"options":              map[string]any{},
		"secret":               map[string]any{},
		"didDocumentOperation": []string{"setDidDocument"},
		"didDocument":          []json.RawMessage{document},
	})
}

// Deactivate deactivates didURI.
func (c *Client) Deactivate(ctx context.Context, didURI string) (json.RawMessage, error) {
	return c.post(ctx, "deactivate", "/1.0/deactivate", map[string]any{
		"jobId":   nil,
		"did":     didURI,
		"options": map[string]any{},
		"secret":  map[string]any{},
	})
}

// Health checks the registrar properties endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.caller.Ping(ctx, integrations.JoinURL(c.baseURL, "/1.0/properties"))
}

func (c *Client) post(ctx context.Context, operation, path string, payload any) (json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode registrar request")
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		integrations.JoinURL(c.baseURL, path),
		bytes.NewReader(encoded),
	)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, operation, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.caller.Do(req, operation, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var parsed operationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, operation, status, err)
	}
	if parsed.DIDState.State == "failed" {
		reason := parsed.DIDState.Reason
		if reason == "" {
			reason = integrations.Snippet(body)
		}
		return nil, apperrors.NewExternalServiceError(serviceName, operation, status, errors.New(reason))
	}
	return json.RawMessage(body), nil
}

// Stub acknowledges every operation without calling anything. It is wired when no
// registrar URL is configured.
type Stub struct {
	logger *slog.Logger
}

// NewStub creates a Stub.
func NewStub(logger *slog.Logger) *Stub {
	return &Stub{logger: logger}
}

func (s *Stub) respond(operation, didURI string) (json.RawMessage, error) {
	s.logger.Warn("registrar not configured, returning stub response",
		slog.String("operation", operation),
		slog.String("did", didURI),
	)
	return json.Marshal(map[string]any{
		"didState": map[string]any{
			"state":       "finished",
			"did":         didURI,
			"didDocument": map[string]any{},
		},
		"_stub": true,
	})
}

// Create returns a finished stub state.
func (s *Stub) Create(_ context.Context, didURI string, _ json.RawMessage) (json.RawMessage, error) {
	return s.respond("create", didURI)
}

// Update returns a finished stub state.
func (s *Stub) Update(_ context.Context, didURI string, _ json.RawMessage) (json.RawMessage, error) {
	return s.respond("update", didURI)
}

// Deactivate returns a finished stub state.
func (s *Stub) Deactivate(_ context.Context, didURI string) (json.RawMessage, error) {
	return s.respond("deactivate", didURI)
}

// Health always succeeds.
func (s *Stub) Health(context.Context) error {
	return nil
}
