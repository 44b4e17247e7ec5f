package domain

import (
	"github.com/allisson/didregistry/internal/errors"
)

// Audit-specific error definitions.
var (
	// ErrSignatureInvalid indicates an audit log was tampered with or signed by another key.
	ErrSignatureInvalid = errors.New("audit log signature invalid")

	// ErrSigningKeyMissing indicates no audit signing key was configured.
	ErrSigningKeyMissing = errors.Wrap(errors.ErrInvalidInput, "audit signing key is required")
)
