// Package service provides the HMAC signer protecting audit log integrity.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/allisson/didregistry/internal/audit/domain"
)

const signingKeyInfo = "audit-log-signing-v1"

// AuditSigner signs and verifies audit logs.
type AuditSigner interface {
	Sign(log *auditDomain.AuditLog) ([]byte, error)
	Verify(log *auditDomain.AuditLog) error
}

type auditSigner struct {
	signingKey []byte
}

// NewAuditSigner derives a 32-byte HMAC key from masterKey with HKDF-SHA256 and returns a
// signer bound to it. masterKey itself is not retained.
func NewAuditSigner(masterKey []byte) (AuditSigner, error) {
	if len(masterKey) == 0 {
		return nil, auditDomain.ErrSigningKeyMissing
	}

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(signingKeyInfo)), signingKey); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return &auditSigner{signingKey: signingKey}, nil
}

// canonicalizeLog encodes every signed field; variable-length fields are length-prefixed.
func canonicalizeLog(log *auditDomain.AuditLog) ([]byte, error) {
	buf := make([]byte, 0, 512)

	buf = append(buf, log.ID[:]...)
	buf = appendOptionalUUID(buf, log.OrganizationID)
	buf = appendOptionalUUID(buf, log.ActorID)
	buf = appendLengthPrefixed(buf, []byte(log.ActorEmail))
	buf = appendLengthPrefixed(buf, []byte(log.Action))
	buf = appendLengthPrefixed(buf, []byte(log.TargetType))
	buf = append(buf, log.TargetID[:]...)

	if log.Metadata != nil {
		metadataBytes, err := json.Marshal(log.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		buf = appendLengthPrefixed(buf, metadataBytes)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	if log.Automatic {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(log.CreatedAt.UnixMicro()))
	return buf, nil
}

func appendOptionalUUID(buf []byte, id *uuid.UUID) []byte {
	if id == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, id[:]...)
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// Sign generates the HMAC-SHA256 signature of log.
func (a *auditSigner) Sign(log *auditDomain.AuditLog) ([]byte, error) {
	canonical, err := canonicalizeLog(log)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize log: %w", err)
	}

	mac := hmac.New(sha256.New, a.signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// Verify returns ErrSignatureInvalid when log.Signature does not match.
func (a *auditSigner) Verify(log *auditDomain.AuditLog) error {
	expected, err := a.Sign(log)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(log.Signature, expected) {
		return auditDomain.ErrSignatureInvalid
	}
	return nil
}
