// Package domain defines organization-owned certificates and their immutable version history.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a certificate. REVOKED is terminal.
type Status string

// Certificate statuses.
const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

// Certificate is the live view of an uploaded certificate. Version counts rotations and
// starts at 1.
type Certificate struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Label            string
	Fingerprint      string
	SubjectDN        string
	IssuerDN         string
	SerialNumber     string
	NotValidBefore   time.Time
	NotValidAfter    time.Time
	PEM              string
	PublicKeyJWK     json.RawMessage
	KeyType          string
	KeyCurve         string
	KeySize          int
	Status           Status
	Version          int
	RevokedAt        *time.Time
	RevokedBy        *uuid.UUID
	RevocationReason string
	CreatedBy        *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CertificateVersion is an immutable snapshot of a certificate's key material.
type CertificateVersion struct {
	ID             uuid.UUID
	CertificateID  uuid.UUID
	Version        int
	Fingerprint    string
	SubjectDN      string
	IssuerDN       string
	SerialNumber   string
	NotValidBefore time.Time
	NotValidAfter  time.Time
	PEM            string
	PublicKeyJWK   json.RawMessage
	KeyType        string
	KeyCurve       string
	KeySize        int
	ChangeSummary  string
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
}

// ParsedCertificate is what the certificate parser extracts from a PEM.
type ParsedCertificate struct {
	PublicKeyJWK   json.RawMessage
	SubjectDN      string
	IssuerDN       string
	SerialNumber   string
	NotValidBefore time.Time
	NotValidAfter  time.Time
	KeyType        string
	KeyCurve       string
	KeySize        int
	Fingerprint    string
}

// IsActive reports whether the certificate can back a verification method.
func (c *Certificate) IsActive() bool {
	return c.Status == StatusActive
}

// Snapshot captures the current key material as version c.Version.
func (c *Certificate) Snapshot(changeSummary string, createdBy *uuid.UUID, now time.Time) *CertificateVersion {
	return &CertificateVersion{
		ID:             uuid.Must(uuid.NewV7()),
		CertificateID:  c.ID,
		Version:        c.Version,
		Fingerprint:    c.Fingerprint,
		SubjectDN:      c.SubjectDN,
		IssuerDN:       c.IssuerDN,
		SerialNumber:   c.SerialNumber,
		NotValidBefore: c.NotValidBefore,
		NotValidAfter:  c.NotValidAfter,
		PEM:            c.PEM,
		PublicKeyJWK:   c.PublicKeyJWK,
		KeyType:        c.KeyType,
		KeyCurve:       c.KeyCurve,
		KeySize:        c.KeySize,
		ChangeSummary:  changeSummary,
		CreatedBy:      createdBy,
		CreatedAt:      now,
	}
}

// ApplyParsed overwrites the key material with a freshly parsed certificate.
func (c *Certificate) ApplyParsed(pem string, parsed *ParsedCertificate) {
	c.PEM = pem
	c.Fingerprint = parsed.Fingerprint
	c.SubjectDN = parsed.SubjectDN
	c.IssuerDN = parsed.IssuerDN
	c.SerialNumber = parsed.SerialNumber
	c.NotValidBefore = parsed.NotValidBefore
	c.NotValidAfter = parsed.NotValidAfter
	c.PublicKeyJWK = parsed.PublicKeyJWK
	c.KeyType = parsed.KeyType
	c.KeyCurve = parsed.KeyCurve
	c.KeySize = parsed.KeySize
}
