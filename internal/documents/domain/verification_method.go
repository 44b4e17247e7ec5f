package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Relationship is a DID verification relationship.
type Relationship string

// Verification relationships in document order.
const (
	RelAuthentication       Relationship = "authentication"
	RelAssertionMethod      Relationship = "assertionMethod"
	RelKeyAgreement         Relationship = "keyAgreement"
	RelCapabilityInvocation Relationship = "capabilityInvocation"
	RelCapabilityDelegation Relationship = "capabilityDelegation"
)

// RelationshipOrder is the order relationship arrays are emitted in.
var RelationshipOrder = []Relationship{
	RelAuthentication,
	RelAssertionMethod,
	RelKeyAgreement,
	RelCapabilityInvocation,
	RelCapabilityDelegation,
}

// DefaultMethodType is the verification method type used when none is given.
const DefaultMethodType = "JsonWebKey2020"

// DefaultRelationships applies to methods submitted without relationships.
var DefaultRelationships = []Relationship{RelAuthentication, RelAssertionMethod}

// Valid reports whether r is a known relationship.
func (r Relationship) Valid() bool {
	for _, known := range RelationshipOrder {
		if r == known {
			return true
		}
	}
	return false
}

// VerificationMethod binds a certificate's key to a document under a fragment.
type VerificationMethod struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	CertificateID uuid.UUID
	Fragment      string
	MethodType    string
	Relationships []Relationship
	Position      int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JoinRelationships encodes relationships for storage.
func JoinRelationships(rels []Relationship) string {
	parts := make([]string, len(rels))
	for i, r := range rels {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// SplitRelationships decodes a stored relationship list.
func SplitRelationships(s string) []Relationship {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	rels := make([]Relationship, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			rels = append(rels, Relationship(p))
		}
	}
	return rels
}

// HasActiveMethod reports whether any method in methods is active.
func HasActiveMethod(methods []*VerificationMethod) bool {
	for _, m := range methods {
		if m.IsActive {
			return true
		}
	}
	return false
}
