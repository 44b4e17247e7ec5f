package assembler

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProofType is the proof suite embedded in signed documents.
const ProofType = "JsonWebSignature2020"

// Proof is the detached-JWS proof block.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
	ProofPurpose       string `json:"proofPurpose"`
	JWS                string `json:"jws"`
}

// AttachProof embeds a JsonWebSignature2020 proof over body and returns the canonical
// signed body. Any existing proof is replaced.
func AttachProof(
	body json.RawMessage,
	jws string,
	verificationMethodID string,
	created time.Time,
) (json.RawMessage, error) {
	tree, err := decodeTree(body)
	if err != nil {
		return nil, err
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document body must be a JSON object")
	}

	doc["proof"] = Proof{
		Type:               ProofType,
		Created:            created.UTC().Format(time.RFC3339),
		VerificationMethod: verificationMethodID,
		ProofPurpose:       "assertionMethod",
		JWS:                jws,
	}
	return Canonicalize(doc)
}

// StripProof returns body without its proof block, the form that was signed.
func StripProof(body json.RawMessage) (json.RawMessage, error) {
	tree, err := decodeTree(body)
	if err != nil {
		return nil, err
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document body must be a JSON object")
	}
	delete(doc, "proof")
	return Canonicalize(doc)
}

func extractProof(body json.RawMessage) (*Proof, int, error) {
	var parsed struct {
		Proof              *Proof            `json:"proof"`
		VerificationMethod []json.RawMessage `json:"verificationMethod"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode document: %w", err)
	}
	return parsed.Proof, len(parsed.VerificationMethod), nil
}
