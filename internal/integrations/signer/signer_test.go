package signer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/didregistry/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Sign(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/signserver/process", r.URL.Path)
			assert.Equal(t, DefaultWorkerName, r.Header.Get(workerHeader))
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.Equal(t, `{"id":"did:web:x"}`, string(body))
			_, _ = w.Write([]byte("eyJhbGciOiJFUzI1NiJ9..sig\n"))
		}))
		defer server.Close()

		client := NewClient(server.URL+"/signserver/process", "", time.Second, testLogger())
		jws, err := client.Sign(context.Background(), []byte(`{"id":"did:web:x"}`))

		require.NoError(t, err)
		assert.Equal(t, "eyJhbGciOiJFUzI1NiJ9..sig", jws)
	})

	t.Run("Error_EmptyBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "DocSigner", time.Second, testLogger()).Sign(context.Background(), []byte("{}"))

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
		assert.Contains(t, err.Error(), "empty signature")
	})

	t.Run("Error_Non200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("queued"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "", time.Second, testLogger()).Sign(context.Background(), []byte("{}"))

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
	})
}

func TestClient_Health(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte("ALLOK"))
	}))
	defer server.Close()

	err := NewClient(server.URL+"/signserver/process", "", time.Second, testLogger()).Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/signserver/healthcheck/signserverhealth", path)
}

func TestStub(t *testing.T) {
	jws, err := NewStub(testLogger()).Sign(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, StubJWS, jws)
}
