// Package keeper loads the audit signing key. The key is either supplied in plain base64 or
// as KMS ciphertext decrypted through a gocloud.dev secrets keeper.
package keeper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"gocloud.dev/secrets"

	// Register KMS provider drivers.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KeySize is the length of a generated audit signing key.
const KeySize = 32

// ErrKeyNotConfigured is returned when no signing key material is configured.
var ErrKeyNotConfigured = errors.New("audit signing key is not configured")

// Keeper is the subset of *secrets.Keeper used here.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// Opener opens a Keeper for a key URI (gcpkms://, awskms://, azurekeyvault://, hashivault://,
// base64key://).
type Opener func(ctx context.Context, keyURI string) (Keeper, error)

// OpenKeeper is the default Opener backed by gocloud.dev/secrets.
func OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	k, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return k, nil
}

// Loader resolves the signing key from configuration.
type Loader struct {
	open Opener
}

// NewLoader returns a Loader. A nil opener falls back to OpenKeeper.
func NewLoader(open Opener) *Loader {
	if open == nil {
		open = OpenKeeper
	}
	return &Loader{open: open}
}

// Load decodes encodedKey from base64. When keyURI is set the decoded bytes are KMS
// ciphertext and are decrypted with the keeper at keyURI.
func (l *Loader) Load(ctx context.Context, keyURI, encodedKey string) ([]byte, error) {
	if encodedKey == "" {
		return nil, ErrKeyNotConfigured
	}

	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audit signing key: %w", err)
	}
	if keyURI == "" {
		return raw, nil
	}

	k, err := l.open(ctx, keyURI)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = k.Close()
	}()

	plaintext, err := k.Decrypt(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt audit signing key: %w", err)
	}
	return plaintext, nil
}

// Seal encrypts key with the keeper at keyURI and returns it base64 encoded, ready for
// AUDIT_SIGNING_KEY. An empty keyURI returns the plain base64 encoding.
func (l *Loader) Seal(ctx context.Context, keyURI string, key []byte) (string, error) {
	if keyURI == "" {
		return base64.StdEncoding.EncodeToString(key), nil
	}

	k, err := l.open(ctx, keyURI)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = k.Close()
	}()

	ciphertext, err := k.Encrypt(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt audit signing key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
