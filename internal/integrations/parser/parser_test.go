package parser

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Parse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var got parseRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/parse", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"jwk": {"kty":"EC","crv":"P-256","x":"abc","y":"def"},
				"subjectDn": "CN=corporate",
				"issuerDn": "CN=Acme CA",
				"serial": "1f",
				"notBefore": "2026-01-01T00:00:00Z",
				"notAfter": "2027-01-01T00:00:00Z",
				"keyType": "EC",
				"keyCurve": "P-256",
				"fingerprintSha256": "AB:CD"
			}`))
		}))
		defer server.Close()

		client := NewClient(server.URL+"/", time.Second, testLogger())
		parsed, err := client.Parse(context.Background(), "-----BEGIN CERTIFICATE-----")

		require.NoError(t, err)
		assert.Equal(t, "-----BEGIN CERTIFICATE-----", got.PEM)
		assert.Equal(t, "CN=corporate", parsed.SubjectDN)
		assert.Equal(t, "1f", parsed.SerialNumber)
		assert.Equal(t, "P-256", parsed.KeyCurve)
		assert.Equal(t, "AB:CD", parsed.Fingerprint)
		assert.Equal(t, 2027, parsed.NotValidAfter.Year())
		assert.JSONEq(t, `{"kty":"EC","crv":"P-256","x":"abc","y":"def"}`, string(parsed.PublicKeyJWK))
	})

	t.Run("Error_ServiceRejects", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad certificate", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, time.Second, testLogger()).Parse(context.Background(), "pem")

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
	})

	t.Run("Error_UndecodableResponse", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, time.Second, testLogger()).Parse(context.Background(), "pem")

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
	})
}

func TestLocalParser_Parse(t *testing.T) {
	pemText := testutil.GenerateCertificatePEM(t, "corporate", time.Now().Add(24*time.Hour))

	parsed, err := NewLocalParser(testLogger()).Parse(context.Background(), pemText)

	require.NoError(t, err)
	assert.Equal(t, "EC", parsed.KeyType)
	assert.NotEmpty(t, parsed.Fingerprint)
	assert.NotEmpty(t, parsed.PublicKeyJWK)
}
