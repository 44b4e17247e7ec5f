package assembler

import (
	"encoding/json"
	"time"
)

// CredentialInput describes a published document for its publication credential.
type CredentialInput struct {
	PlatformDID  string
	PlatformName string
	DIDURI       string
	Organization string
	Label        string
	Version      int
	PublishedAt  time.Time
	Document     json.RawMessage
}

// PublicationCredential builds an unsigned DIDPublicationCredential attesting that the
// platform published the document. The document's proof is referenced when present.
func PublicationCredential(in CredentialInput) (json.RawMessage, error) {
	proof, methodCount, err := extractProof(in.Document)
	if err != nil {
		return nil, err
	}

	issuedAt := in.PublishedAt.UTC().Format(time.RFC3339)
	vc := map[string]any{
		"@context": []string{
			"https://www.w3.org/2018/credentials/v1",
			"https://www.w3.org/ns/did/v1",
		},
		"type": []string{"VerifiableCredential", "DIDPublicationCredential"},
		"issuer": map[string]any{
			"id":   in.PlatformDID,
			"name": in.PlatformName,
		},
		"issuanceDate": issuedAt,
		"credentialSubject": map[string]any{
			"id":                      in.DIDURI,
			"type":                    "DIDDocument",
			"organization":            in.Organization,
			"label":                   in.Label,
			"version":                 in.Version,
			"verificationMethodCount": methodCount,
			"publicationStatus":       "published",
		},
	}

	if proof != nil {
		created := proof.Created
		if created == "" {
			created = issuedAt
		}
		vc["proof"] = map[string]any{
			"type":               proof.Type,
			"created":            created,
			"proofPurpose":       "assertionMethod",
			"verificationMethod": proof.VerificationMethod,
			"jws":                proof.JWS,
		}
	}

	return Canonicalize(vc)
}
