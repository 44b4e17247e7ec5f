package registrar

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
)

const testDID = "did:web:registry.example:acme:issuer"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capture struct {
	path  string
	query string
	body  map[string]any
}

func newServer(t *testing.T, status int, response string, got *capture) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var got capture
		server := newServer(t, http.StatusCreated, `{"didState":{"state":"finished","did":"`+testDID+`"}}`, &got)
		client := NewClient(server.URL, "testnet", time.Second, testLogger())

		resp, err := client.Create(context.Background(), testDID, json.RawMessage(`{"id":"`+testDID+`"}`))

		require.NoError(t, err)
		assert.Contains(t, string(resp), "finished")
		assert.Equal(t, "/1.0/create", got.path)
		assert.Equal(t, "method=web", got.query)
		assert.Nil(t, got.body["jobId"])
		assert.Equal(t, map[string]any{"network": "testnet"}, got.body["options"])
		assert.Equal(t, map[string]any{"id": testDID}, got.body["didDocument"])
	})

	t.Run("Error_FailedState", func(t *testing.T) {
		var got capture
		server := newServer(t, http.StatusOK, `{"didState":{"state":"failed","reason":"duplicate DID"}}`, &got)

		_, err := NewClient(server.URL, "", time.Second, testLogger()).
			Create(context.Background(), testDID, json.RawMessage(`{}`))

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
		assert.Contains(t, err.Error(), "duplicate DID")
	})

	t.Run("Error_ServerError", func(t *testing.T) {
		var got capture
		server := newServer(t, http.StatusBadGateway, `upstream down`, &got)

		_, err := NewClient(server.URL, "", time.Second, testLogger()).
			Create(context.Background(), testDID, json.RawMessage(`{}`))

		assert.ErrorIs(t, err, apperrors.ErrExternalService)
		assert.True(t, apperrors.IsRetryable(err))
	})
}

func TestClient_Update(t *testing.T) {
	var got capture
	server := newServer(t, http.StatusOK, `{"didState":{"state":"finished"}}`, &got)

	_, err := NewClient(server.URL+"/", "", time.Second, testLogger()).
		Update(context.Background(), testDID, json.RawMessage(`{"id":"`+testDID+`"}`))

	require.NoError(t, err)
	assert.Equal(t, "/1.0/update", got.path)
	assert.Equal(t, testDID, got.body["did"])
	assert.Equal(t, []any{"setDidDocument"}, got.body["didDocumentOperation"])
	assert.Equal(t, []any{map[string]any{"id": testDID}}, got.body["didDocument"])
}

func TestClient_Deactivate(t *testing.T) {
	var got capture
	server := newServer(t, http.StatusOK, `{"didState":{"state":"finished"}}`, &got)

	_, err := NewClient(server.URL, "", time.Second, testLogger()).Deactivate(context.Background(), testDID)

	require.NoError(t, err)
	assert.Equal(t, "/1.0/deactivate", got.path)
	assert.Equal(t, testDID, got.body["did"])
	assert.NotContains(t, got.body, "didDocument")
}

func TestStub(t *testing.T) {
	resp, err := NewStub(testLogger()).Deactivate(context.Background(), testDID)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(resp, &parsed))
	assert.Equal(t, true, parsed["_stub"])
	assert.Equal(t, "finished", parsed["didState"].(map[string]any)["state"])
}
