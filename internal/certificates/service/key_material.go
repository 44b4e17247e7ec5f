// Package service derives certificate key material locally: SHA-256 fingerprints and public
// key JWKs. It backs the parser fallback when the parser omits a field and the offline
// parser used when no parser service is configured.
package service

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwk"

	certDomain "github.com/allisson/didregistry/internal/certificates/domain"
)

// DecodeCertificate parses the first CERTIFICATE block of pemText.
func DecodeCertificate(pemText string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemText)))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, certDomain.ErrInvalidPEM
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidPEM, err)
	}
	return cert, nil
}

// Fingerprint returns the lowercase hex SHA-256 of the certificate DER.
func Fingerprint(pemText string) (string, error) {
	cert, err := DecodeCertificate(pemText)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:]), nil
}

// PublicKeyJWK returns the certificate's public key as a JWK.
func PublicKeyJWK(pemText string) (json.RawMessage, error) {
	cert, err := DecodeCertificate(pemText)
	if err != nil {
		return nil, err
	}
	return publicKeyJWK(cert)
}

// NormalizeJWK parses raw as a JWK, drops any private members and re-serializes it. The key
// must have the same RFC 7638 thumbprint as the public key of the certificate in pemText.
func NormalizeJWK(raw json.RawMessage, pemText string) (json.RawMessage, error) {
	cert, err := DecodeCertificate(pemText)
	if err != nil {
		return nil, err
	}
	expected, err := certificateKey(cert)
	if err != nil {
		return nil, err
	}

	parsed, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidJWK, err)
	}
	key, err := jwk.PublicKeyOf(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidJWK, err)
	}
	if !jwk.Equal(key, expected) {
		return nil, fmt.Errorf("%w: key does not match the certificate", certDomain.ErrInvalidJWK)
	}

	out, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidJWK, err)
	}
	return out, nil
}

// Inspect extracts everything the parser service would return, from the PEM alone.
func Inspect(pemText string) (*certDomain.ParsedCertificate, error) {
	cert, err := DecodeCertificate(pemText)
	if err != nil {
		return nil, err
	}

	jwkJSON, err := publicKeyJWK(cert)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(cert.Raw)
	parsed := &certDomain.ParsedCertificate{
		PublicKeyJWK:   jwkJSON,
		SubjectDN:      cert.Subject.String(),
		IssuerDN:       cert.Issuer.String(),
		SerialNumber:   strings.ToUpper(cert.SerialNumber.Text(16)),
		NotValidBefore: cert.NotBefore.UTC(),
		NotValidAfter:  cert.NotAfter.UTC(),
		Fingerprint:    hex.EncodeToString(sum[:]),
	}

	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		parsed.KeyType = "EC"
		parsed.KeyCurve = pub.Curve.Params().Name
		parsed.KeySize = pub.Curve.Params().BitSize
	case *rsa.PublicKey:
		parsed.KeyType = "RSA"
		parsed.KeySize = pub.N.BitLen()
	case ed25519.PublicKey:
		parsed.KeyType = "OKP"
		parsed.KeyCurve = "Ed25519"
		parsed.KeySize = 256
	default:
		return nil, fmt.Errorf("%w: unsupported public key type %T", certDomain.ErrInvalidPEM, pub)
	}
	return parsed, nil
}

func certificateKey(cert *x509.Certificate) (jwk.Key, error) {
	der, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidPEM, err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	key, err := jwk.ParseKey(pubPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidJWK, err)
	}
	return key, nil
}

func publicKeyJWK(cert *x509.Certificate) (json.RawMessage, error) {
	key, err := certificateKey(cert)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certDomain.ErrInvalidJWK, err)
	}
	return out, nil
}
