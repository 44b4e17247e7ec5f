package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/didregistry/internal/platform"
)

type platformBootstrapper interface {
	Bootstrap(ctx context.Context, force bool) (*platform.Result, error)
}

// RunBootstrapPlatform writes the platform DID document. Without force an existing document
// is reported and left alone.
func RunBootstrapPlatform(
	ctx context.Context,
	bootstrapper platformBootstrapper,
	logger *slog.Logger,
	writer io.Writer,
	force bool,
	format string,
) error {
	result, err := bootstrapper.Bootstrap(ctx, force)
	if err != nil {
		return fmt.Errorf("failed to bootstrap platform DID: %w", err)
	}

	logger.Info("platform bootstrap finished",
		slog.String("did", result.DID),
		slog.Bool("written", result.Written),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"did":      result.DID,
			"path":     result.Path,
			"written":  result.Written,
			"document": result.Document,
		})
	}

	if result.Written {
		_, _ = fmt.Fprintf(writer, "Platform DID %s written to %s\n", result.DID, result.Path)
	} else {
		_, _ = fmt.Fprintf(writer, "Platform DID %s already present at %s (use --force to rewrite)\n", result.DID, result.Path)
	}
	return nil
}
