// Package parser talks to the certificate parser service, which extracts the public key
// JWK and certificate metadata from a PEM.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
	certService "github.com/allisson/didregistry/internal/certificates/service"
	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/integrations"
)

const serviceName = "parser"

type parseRequest struct {
	PEM string `json:"pem"`
}

type parseResponse struct {
	JWK               json.RawMessage `json:"jwk"`
	SubjectDN         string          `json:"subjectDn"`
	IssuerDN          string          `json:"issuerDn"`
	Serial            string          `json:"serial"`
	NotBefore         time.Time       `json:"notBefore"`
	NotAfter          time.Time       `json:"notAfter"`
	KeyType           string          `json:"keyType"`
	KeyCurve          string          `json:"keyCurve"`
	KeySize           int             `json:"keySize"`
	FingerprintSHA256 string          `json:"fingerprintSha256"`
}

// Client calls POST {baseURL}/parse.
type Client struct {
	baseURL string
	caller  *integrations.Caller
}

// NewClient creates a parser Client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		caller:  integrations.NewCaller(serviceName, timeout, logger),
	}
}

// Parse sends the PEM to the parser. Fingerprint and JWK may come back empty; the caller
// derives them locally in that case.
func (c *Client) Parse(ctx context.Context, pemText string) (*certDomain.ParsedCertificate, error) {
	payload, err := json.Marshal(parseRequest{PEM: pemText})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal parse request")
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		integrations.JoinURL(c.baseURL, "/parse"),
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, "parse", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, status, err := c.caller.Do(req, "parse")
	if err != nil {
		return nil, err
	}

	var resp parseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewExternalServiceError(serviceName, "parse", status, err)
	}

	return &certDomain.ParsedCertificate{
		PublicKeyJWK:   resp.JWK,
		SubjectDN:      resp.SubjectDN,
		IssuerDN:       resp.IssuerDN,
		SerialNumber:   resp.Serial,
		NotValidBefore: resp.NotBefore.UTC(),
		NotValidAfter:  resp.NotAfter.UTC(),
		KeyType:        resp.KeyType,
		KeyCurve:       resp.KeyCurve,
		KeySize:        resp.KeySize,
		Fingerprint:    resp.FingerprintSHA256,
	}, nil
}

// LocalParser reads certificates in-process. It is wired when no parser URL is configured.
type LocalParser struct{}

// NewLocalParser creates a LocalParser and warns that the parser service is not in use.
func NewLocalParser(logger *slog.Logger) *LocalParser {
	logger.Warn("parser service not configured, parsing certificates locally")
	return &LocalParser{}
}

// Parse decodes the PEM with the standard library.
func (LocalParser) Parse(_ context.Context, pemText string) (*certDomain.ParsedCertificate, error) {
	return certService.Inspect(pemText)
}
