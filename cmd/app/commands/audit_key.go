package commands

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/didregistry/internal/keeper"
)

type keySealer interface {
	Seal(ctx context.Context, keyURI string, key []byte) (string, error)
}

// RunCreateAuditSigningKey generates a random audit signing key and prints it ready for
// AUDIT_SIGNING_KEY. With keyURI set the key is encrypted by that KMS keeper first.
func RunCreateAuditSigningKey(
	ctx context.Context,
	sealer keySealer,
	logger *slog.Logger,
	writer io.Writer,
	keyURI string,
) error {
	key := make([]byte, keeper.KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate audit signing key: %w", err)
	}
	defer clear(key)

	encoded, err := sealer.Seal(ctx, keyURI, key)
	if err != nil {
		return fmt.Errorf("failed to seal audit signing key: %w", err)
	}

	logger.Info("audit signing key generated", slog.Bool("kms", keyURI != ""))

	_, _ = fmt.Fprintf(writer, "# Add to your environment. Keep it secret.\n")
	if keyURI != "" {
		_, _ = fmt.Fprintf(writer, "AUDIT_SIGNING_KEY_URI=%s\n", keyURI)
	}
	_, _ = fmt.Fprintf(writer, "AUDIT_SIGNING_KEY=%s\n", encoded)
	return nil
}
