package domain

import (
	"github.com/allisson/didregistry/internal/errors"
)

// Certificate errors.
var (
	// ErrCertificateNotFound indicates the certificate does not exist.
	ErrCertificateNotFound = errors.Wrap(errors.ErrNotFound, "certificate not found")

	// ErrCertificateFingerprintConflict indicates the organization already holds a certificate
	// with the same fingerprint.
	ErrCertificateFingerprintConflict = errors.Wrap(errors.ErrConflict, "certificate fingerprint already exists")

	// ErrCertificateLabelConflict indicates the organization already holds a certificate with
	// the same label.
	ErrCertificateLabelConflict = errors.Wrap(errors.ErrConflict, "certificate label already exists")

	// ErrCertificateRevoked indicates the certificate is revoked and can no longer change.
	ErrCertificateRevoked = errors.Wrap(errors.ErrStateTransition, "certificate is revoked")

	// ErrCertificateExpired indicates the certificate validity window has already ended.
	ErrCertificateExpired = errors.Wrap(errors.ErrInvalidInput, "certificate has expired")

	// ErrInvalidPEM indicates the input is not a PEM encoded X.509 certificate.
	ErrInvalidPEM = errors.Wrap(errors.ErrInvalidInput, "invalid certificate PEM")

	// ErrInvalidJWK indicates the public key JWK could not be parsed.
	ErrInvalidJWK = errors.Wrap(errors.ErrInvalidInput, "invalid public key JWK")
)
