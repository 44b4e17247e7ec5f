package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/didregistry/internal/platform"
)

func TestRunBootstrapPlatform(t *testing.T) {
	ctx := context.Background()
	result := &platform.Result{
		DID:      "did:web:registry.example",
		Path:     "/data/dids/.well-known/did.json",
		Document: json.RawMessage(`{"id":"did:web:registry.example"}`),
		Written:  true,
	}

	t.Run("Success_Written", func(t *testing.T) {
		bootstrapper := &mockBootstrapper{}
		bootstrapper.On("Bootstrap", ctx, false).Return(result, nil)

		var out bytes.Buffer
		require.NoError(t, RunBootstrapPlatform(ctx, bootstrapper, discardLogger(), &out, false, "text"))
		assert.Contains(t, out.String(), "written to /data/dids/.well-known/did.json")
		bootstrapper.AssertExpectations(t)
	})

	t.Run("Success_AlreadyPresent", func(t *testing.T) {
		existing := *result
		existing.Written = false
		bootstrapper := &mockBootstrapper{}
		bootstrapper.On("Bootstrap", ctx, false).Return(&existing, nil)

		var out bytes.Buffer
		require.NoError(t, RunBootstrapPlatform(ctx, bootstrapper, discardLogger(), &out, false, "text"))
		assert.Contains(t, out.String(), "--force")
	})

	t.Run("Success_ForceJSON", func(t *testing.T) {
		bootstrapper := &mockBootstrapper{}
		bootstrapper.On("Bootstrap", ctx, true).Return(result, nil)

		var out bytes.Buffer
		require.NoError(t, RunBootstrapPlatform(ctx, bootstrapper, discardLogger(), &out, true, "json"))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "did:web:registry.example", decoded["did"])
		assert.Equal(t, true, decoded["written"])
		assert.Equal(t, "did:web:registry.example", decoded["document"].(map[string]any)["id"])
	})

	t.Run("Error_BootstrapFails", func(t *testing.T) {
		bootstrapper := &mockBootstrapper{}
		bootstrapper.On("Bootstrap", ctx, false).Return(nil, errors.New("audit failed"))

		err := RunBootstrapPlatform(ctx, bootstrapper, discardLogger(), &bytes.Buffer{}, false, "text")
		assert.ErrorContains(t, err, "failed to bootstrap platform DID")
	})
}
