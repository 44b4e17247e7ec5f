package integrations

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/didregistry/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCaller_Do(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		caller := NewCaller("registrar", time.Second, testLogger())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, nil)
		require.NoError(t, err)

		body, status, err := caller.Do(req, "create", http.StatusOK, http.StatusCreated)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, status)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("Error_StatusNotAccepted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "worker not found", http.StatusNotFound)
		}))
		defer server.Close()

		caller := NewCaller("signer", time.Second, testLogger())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, nil)
		require.NoError(t, err)

		_, status, err := caller.Do(req, "sign")

		assert.Equal(t, http.StatusNotFound, status)
		assert.ErrorIs(t, err, apperrors.ErrExternalService)
		assert.False(t, apperrors.IsRetryable(err))
		assert.Contains(t, err.Error(), "worker not found")
	})

	t.Run("Error_Timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		caller := NewCaller("parser", 20*time.Millisecond, testLogger())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, _, err = caller.Do(req, "parse")

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
		assert.True(t, apperrors.IsRetryable(err))
	})
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet([]byte("  short\n")))
	long := Snippet([]byte(strings.Repeat("a", 300)))
	assert.Len(t, long, 203)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://reg:9080/1.0/create", JoinURL("http://reg:9080/", "/1.0/create"))
	assert.Equal(t, "http://reg:9080/1.0/create", JoinURL("http://reg:9080", "1.0/create"))
}
