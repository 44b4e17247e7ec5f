// Package assembler builds W3C DID Core documents from verification methods and service
// endpoints. Output is deterministic: identical inputs in identical order produce
// byte-identical canonical bodies, which is what the signer signs.
package assembler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	docDomain "github.com/allisson/didregistry/internal/documents/domain"
	apperrors "github.com/allisson/didregistry/internal/errors"
)

// Contexts are the JSON-LD contexts of every assembled document.
var Contexts = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/jws-2020/v1",
}

// algorithms maps kty/crv to the JWS algorithm added to keys that omit alg.
var algorithms = map[string]string{
	"EC/P-256":     "ES256",
	"EC/P-384":     "ES384",
	"EC/P-521":     "ES512",
	"EC/secp256k1": "ES256K",
	"OKP/Ed25519":  "EdDSA",
	"OKP/X25519":   "ECDH-ES",
	"RSA/":         "RS256",
}

// Method is the assembler's view of a verification method joined with its certificate key.
type Method struct {
	Fragment      string
	Type          string
	Relationships []docDomain.Relationship
	PublicKeyJWK  json.RawMessage
	Active        bool
}

// VerificationMethod is a verificationMethod entry.
type VerificationMethod struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Controller   string         `json:"controller"`
	PublicKeyJWK map[string]any `json:"publicKeyJwk"`
}

// ServiceEntry is a service entry.
type ServiceEntry struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Document is an assembled DID document.
type Document struct {
	Context              []string             `json:"@context"`
	ID                   string               `json:"id"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication,omitempty"`
	AssertionMethod      []string             `json:"assertionMethod,omitempty"`
	KeyAgreement         []string             `json:"keyAgreement,omitempty"`
	CapabilityInvocation []string             `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []string             `json:"capabilityDelegation,omitempty"`
	Service              []ServiceEntry       `json:"service,omitempty"`
}

func (d *Document) appendRelationship(rel docDomain.Relationship, ref string) {
	switch rel {
	case docDomain.RelAuthentication:
		d.Authentication = append(d.Authentication, ref)
	case docDomain.RelAssertionMethod:
		d.AssertionMethod = append(d.AssertionMethod, ref)
	case docDomain.RelKeyAgreement:
		d.KeyAgreement = append(d.KeyAgreement, ref)
	case docDomain.RelCapabilityInvocation:
		d.CapabilityInvocation = append(d.CapabilityInvocation, ref)
	case docDomain.RelCapabilityDelegation:
		d.CapabilityDelegation = append(d.CapabilityDelegation, ref)
	}
}

// Assemble builds the document for didURI. Inactive methods are skipped; the remaining
// ones keep their input order.
func Assemble(didURI string, methods []Method, services []docDomain.Service) (*Document, error) {
	doc := &Document{
		Context:            append([]string(nil), Contexts...),
		ID:                 didURI,
		VerificationMethod: []VerificationMethod{},
	}

	for _, m := range methods {
		if !m.Active {
			continue
		}

		jwk, err := enrichJWK(m.PublicKeyJWK, m.Relationships)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("method #%s: %v", m.Fragment, err))
		}

		methodType := m.Type
		if methodType == "" {
			methodType = docDomain.DefaultMethodType
		}

		ref := didURI + "#" + m.Fragment
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:           ref,
			Type:         methodType,
			Controller:   didURI,
			PublicKeyJWK: jwk,
		})

		for _, rel := range docDomain.RelationshipOrder {
			if containsRelationship(m.Relationships, rel) {
				doc.appendRelationship(rel, ref)
			}
		}
	}

	for i, s := range services {
		id := s.ID
		if id == "" {
			id = "service-" + strconv.Itoa(i+1)
		}
		serviceType := s.Type
		if serviceType == "" {
			serviceType = docDomain.DefaultServiceType
		}
		doc.Service = append(doc.Service, ServiceEntry{
			ID:              didURI + "#" + id,
			Type:            serviceType,
			ServiceEndpoint: s.ServiceEndpoint,
		})
	}

	return doc, nil
}

// Build assembles and canonicalizes in one step.
func Build(didURI string, methods []Method, services []docDomain.Service) (json.RawMessage, error) {
	doc, err := Assemble(didURI, methods, services)
	if err != nil {
		return nil, err
	}
	return Canonicalize(doc)
}

func containsRelationship(rels []docDomain.Relationship, rel docDomain.Relationship) bool {
	for _, r := range rels {
		if r == rel {
			return true
		}
	}
	return false
}

// enrichJWK adds alg and use when the key omits them. use is enc only for keys whose sole
// relationship is keyAgreement.
func enrichJWK(raw json.RawMessage, rels []docDomain.Relationship) (map[string]any, error) {
	jwk := map[string]any{}
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&jwk); err != nil {
			return nil, fmt.Errorf("invalid public key JWK: %w", err)
		}
	}

	if _, ok := jwk["alg"]; !ok {
		kty, _ := jwk["kty"].(string)
		crv, _ := jwk["crv"].(string)
		if kty == "RSA" {
			crv = ""
		}
		if alg, ok := algorithms[kty+"/"+crv]; ok {
			jwk["alg"] = alg
		}
	}

	if _, ok := jwk["use"]; !ok {
		jwk["use"] = "sig"
		if keyAgreementOnly(rels) {
			jwk["use"] = "enc"
		}
	}

	return jwk, nil
}

func keyAgreementOnly(rels []docDomain.Relationship) bool {
	if len(rels) == 0 {
		return false
	}
	for _, r := range rels {
		if r != docDomain.RelKeyAgreement {
			return false
		}
	}
	return true
}
