// Package integrations holds the HTTP plumbing shared by the parser, signer and registrar
// clients. Every failure surfaces as an ExternalServiceError.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	apperrors "github.com/allisson/didregistry/internal/errors"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Caller performs one round trip to an external service with a bounded timeout.
type Caller struct {
	service string
	client  *http.Client
	logger  *slog.Logger
}

// NewCaller creates a Caller for service. A zero timeout falls back to 10 seconds.
func NewCaller(service string, timeout time.Duration, logger *slog.Logger) *Caller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Caller{
		service: service,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Service returns the service name used in errors and logs.
func (c *Caller) Service() string {
	return c.service
}

// Do sends req and returns the body when the status is one of accepted (any 2xx when
// accepted is empty).
func (c *Caller) Do(req *http.Request, operation string, accepted ...int) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("external service call failed",
			slog.String("service", c.service),
			slog.String("operation", operation),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, 0, apperrors.NewExternalServiceError(c.service, operation, 0, transportError(req.Context(), err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, apperrors.NewExternalServiceError(c.service, operation, 0, err)
	}

	if !statusAccepted(resp.StatusCode, accepted) {
		c.logger.Error("external service returned an error status",
			slog.String("service", c.service),
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
			slog.String("body", Snippet(body)),
		)
		return body, resp.StatusCode, apperrors.NewExternalServiceError(
			c.service,
			operation,
			resp.StatusCode,
			errors.New(Snippet(body)),
		)
	}

	c.logger.Debug("external service call succeeded",
		slog.String("service", c.service),
		slog.String("operation", operation),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return body, resp.StatusCode, nil
}

// Ping issues a GET against url and expects a 2xx.
func (c *Caller) Ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.NewExternalServiceError(c.service, "health", 0, err)
	}
	_, _, err = c.Do(req, "health")
	return err
}

func statusAccepted(status int, accepted []int) bool {
	if len(accepted) == 0 {
		return status >= 200 && status < 300
	}
	return slices.Contains(accepted, status)
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("request aborted: %w", ctx.Err())
	}
	return err
}

// Snippet shortens a response body for error messages.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// JoinURL appends path to base without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
