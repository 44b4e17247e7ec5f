package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// GenerateCertificatePEM returns a self-signed P-256 certificate valid until notAfter.
func GenerateCertificatePEM(t *testing.T, commonName string, notAfter time.Time) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return selfSign(t, commonName, notAfter, &key.PublicKey, key)
}

// GenerateCertificateWithKey returns a self-signed P-256 certificate and its private key.
func GenerateCertificateWithKey(t *testing.T, commonName string, notAfter time.Time) (string, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return selfSign(t, commonName, notAfter, &key.PublicKey, key), key
}

// GenerateEd25519CertificatePEM returns a self-signed Ed25519 certificate valid for a year.
func GenerateEd25519CertificatePEM(t *testing.T, commonName string) string {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return selfSign(t, commonName, time.Now().Add(365*24*time.Hour), pub, priv)
}

func selfSign(t *testing.T, commonName string, notAfter time.Time, pub, priv any) string {
	t.Helper()

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName, Organization: []string{"Acme"}},
		NotBefore:    notAfter.Add(-2 * 365 * 24 * time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}
