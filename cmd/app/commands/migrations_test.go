package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	t.Run("Error_InvalidDriver", func(t *testing.T) {
		err := RunMigrations(discardLogger(), "invalid", "postgres://localhost")
		require.ErrorContains(t, err, "failed to create migrate instance")
	})

	t.Run("Error_InvalidConnectionString", func(t *testing.T) {
		err := RunMigrations(discardLogger(), "postgres", "invalid-connection-string")
		require.ErrorContains(t, err, "failed to create migrate instance")
	})
}
