package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Run("Success_Defaults", func(t *testing.T) {
		provider, err := NewProvider("didregistry")
		require.NoError(t, err)
		assert.NotNil(t, provider.MeterProvider())
		assert.NotContains(t, scrape(t, provider), "go_goroutines")
	})

	t.Run("Success_RuntimeCollectorsAndVersion", func(t *testing.T) {
		provider, err := NewProvider("didregistry", WithRuntimeCollectors(), WithServiceVersion("1.2.3"))
		require.NoError(t, err)

		counter, err := provider.MeterProvider().Meter("test").Int64Counter("didregistry_sample_total")
		require.NoError(t, err)
		counter.Add(context.Background(), 1)

		out := scrape(t, provider)
		assert.Contains(t, out, "go_goroutines")
		assert.Contains(t, out, `service_version="1.2.3"`)
	})
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "didregistry", serviceName(""))
	assert.Equal(t, "custom", serviceName("custom"))
}

func TestProvider_Shutdown(t *testing.T) {
	t.Run("Success_ShutdownProvider", func(t *testing.T) {
		provider, err := NewProvider("didregistry")
		require.NoError(t, err)
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	t.Run("Success_ShutdownNilProvider", func(t *testing.T) {
		provider := &Provider{}
		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
