// Package signer talks to the signing service, which returns a detached JWS over the
// canonical document bytes.
package signer

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/integrations"
)

const (
	serviceName = "signer"

	// DefaultWorkerName is the signing worker used when none is configured.
	DefaultWorkerName = "DIDDocumentSigner"

	// StubJWS is returned by the development stub.
	StubJWS = "eyJhbGciOiJFUzI1NiJ9..STUB_SIGNATURE_DEV_MODE"

	workerHeader = "X-SignServer-WorkerName"
)

// Client posts canonical bytes to the process URL of the signing service.
type Client struct {
	processURL string
	workerName string
	caller     *integrations.Caller
}

// NewClient creates a signer Client.
func NewClient(processURL, workerName string, timeout time.Duration, logger *slog.Logger) *Client {
	if workerName == "" {
		workerName = DefaultWorkerName
	}
	return &Client{
		processURL: processURL,
		workerName: workerName,
		caller:     integrations.NewCaller(serviceName, timeout, logger),
	}
}

// Sign returns the JWS text. An empty body is a failure.
func (c *Client) Sign(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.NewExternalServiceError(serviceName, "sign", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(workerHeader, c.workerName)

	body, status, err := c.caller.Do(req, "sign", http.StatusOK)
	if err != nil {
		return "", err
	}

	jws := strings.TrimSpace(string(body))
	if jws == "" {
		return "", apperrors.NewExternalServiceError(serviceName, "sign", status, apperrors.New("empty signature"))
	}
	return jws, nil
}

// Health checks the signing service health endpoint next to the process URL.
func (c *Client) Health(ctx context.Context) error {
	base := strings.TrimSuffix(strings.TrimRight(c.processURL, "/"), "/process")
	return c.caller.Ping(ctx, integrations.JoinURL(base, "/healthcheck/signserverhealth"))
}

// Stub signs nothing and returns StubJWS. It is wired when no signer URL is configured.
type Stub struct {
	logger *slog.Logger
}

// NewStub creates a Stub.
func NewStub(logger *slog.Logger) *Stub {
	return &Stub{logger: logger}
}

// Sign returns StubJWS.
func (s *Stub) Sign(_ context.Context, payload []byte) (string, error) {
	s.logger.Warn("signer not configured, returning stub signature", slog.Int("payload_bytes", len(payload)))
	return StubJWS, nil
}

// Health always succeeds.
func (s *Stub) Health(context.Context) error {
	return nil
}
