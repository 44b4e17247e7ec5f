package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/didregistry/internal/errors"
	"github.com/allisson/didregistry/internal/testutil"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{name: "simple", value: "corporate-auth"},
		{name: "digits", value: "a1"},
		{name: "single character", value: "a", shouldErr: true},
		{name: "upper case", value: "Corporate", shouldErr: true},
		{name: "leading hyphen", value: "-auth", shouldErr: true},
		{name: "trailing hyphen", value: "auth-", shouldErr: true},
		{name: "underscore", value: "corp_auth", shouldErr: true},
		{name: "too long", value: strings.Repeat("a", 121), shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, Label)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFragment(t *testing.T) {
	assert.NoError(t, validation.Validate("key-1", Fragment))
	assert.NoError(t, validation.Validate("Key_1.v2", Fragment))
	assert.Error(t, validation.Validate("#key", Fragment))
	assert.Error(t, validation.Validate("key 1", Fragment))
}

func TestCertificatePEM(t *testing.T) {
	assert.NoError(t, validation.Validate(testutil.GenerateCertificatePEM(t, "a", time.Now().Add(time.Hour)), CertificatePEM))
	assert.Error(t, validation.Validate("not a pem", CertificatePEM))
	assert.Error(t, validation.Validate("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----", CertificatePEM))
}

func TestAbsoluteURL(t *testing.T) {
	assert.NoError(t, validation.Validate("https://acme.example/login", AbsoluteURL))
	assert.Error(t, validation.Validate("ftp://acme.example", AbsoluteURL))
	assert.Error(t, validation.Validate("/relative", AbsoluteURL))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, validation.Validate("alice@acme.test", Email))
	assert.Error(t, validation.Validate("alice", Email))
}

func TestNotBlankAndNoWhitespace(t *testing.T) {
	assert.Error(t, validation.Validate("   ", NotBlank))
	assert.NoError(t, validation.Validate("x", NotBlank))
	assert.Error(t, validation.Validate(" x", NoWhitespace))
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(validation.Validate("", validation.Required))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRequiredUUID(t *testing.T) {
	assert.NoError(t, validation.Validate(uuid.New(), RequiredUUID))
	assert.Error(t, validation.Validate(uuid.Nil, RequiredUUID))
}

func TestBase64(t *testing.T) {
	assert.NoError(t, validation.Validate("", Base64))
	assert.NoError(t, validation.Validate("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=", Base64))
	assert.Error(t, validation.Validate("not base64!", Base64))
}
