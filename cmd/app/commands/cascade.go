package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	revocationUseCase "github.com/allisson/didregistry/internal/revocation/usecase"
)

type cascadeRunner interface {
	Run(ctx context.Context, certificateID uuid.UUID) (*revocationUseCase.Report, error)
}

// RunRevocationCascade re-applies a certificate revocation to every referencing document.
// It is safe to repeat; documents already repaired report as unchanged.
func RunRevocationCascade(
	ctx context.Context,
	cascade cascadeRunner,
	logger *slog.Logger,
	writer io.Writer,
	certificateID string,
	format string,
) error {
	id, err := uuid.Parse(certificateID)
	if err != nil {
		return fmt.Errorf("invalid certificate id: %w", err)
	}

	report, runErr := cascade.Run(ctx, id)
	if report == nil {
		return fmt.Errorf("failed to run revocation cascade: %w", runErr)
	}

	logger.Info("revocation cascade finished",
		slog.String("certificate_id", id.String()),
		slog.Int("deactivated", len(report.Deactivated)),
		slog.Int("detached", len(report.Detached)),
		slog.Int("failed", len(report.Failed)),
	)

	if format == "json" {
		if err := writeJSON(writer, report); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(writer, "Certificate:  %s\n", id)
		_, _ = fmt.Fprintf(writer, "Deactivated:  %d\n", len(report.Deactivated))
		_, _ = fmt.Fprintf(writer, "Detached:     %d\n", len(report.Detached))
		_, _ = fmt.Fprintf(writer, "Unchanged:    %d\n", report.Unchanged)
		_, _ = fmt.Fprintf(writer, "Failed:       %d\n", len(report.Failed))
		for docID, reason := range report.Failed {
			_, _ = fmt.Fprintf(writer, "  - %s: %s\n", docID, reason)
		}
	}

	if runErr != nil {
		return fmt.Errorf("revocation cascade incomplete: %w", runErr)
	}
	return nil
}
