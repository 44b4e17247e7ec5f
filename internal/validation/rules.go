// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"encoding/pem"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/didregistry/internal/errors"
)

var (
	// emailRegex is a basic email validation pattern
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// labelRegex matches document labels and organization slugs.
	labelRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{0,118}[a-z0-9]$`)

	// fragmentRegex matches DID URL fragments for verification methods and services.
	fragmentRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,119}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Email validates email format using regex
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(s)
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Label validates a lower-case, URL-safe label of 2 to 120 characters.
var Label = validation.NewStringRuleWithError(
	func(s string) bool {
		return labelRegex.MatchString(s)
	},
	validation.NewError(
		"validation_label",
		"must be 2-120 lower-case letters, digits or hyphens, starting and ending with a letter or digit",
	),
)

// Fragment validates a DID URL fragment.
var Fragment = validation.NewStringRuleWithError(
	func(s string) bool {
		return fragmentRegex.MatchString(s)
	},
	validation.NewError("validation_fragment", "must be 1-120 letters, digits, dots, underscores or hyphens"),
)

// CertificatePEM validates that a string holds a PEM CERTIFICATE block.
var CertificatePEM = validation.NewStringRuleWithError(
	func(s string) bool {
		block, _ := pem.Decode([]byte(strings.TrimSpace(s)))
		return block != nil && block.Type == "CERTIFICATE"
	},
	validation.NewError("validation_certificate_pem", "must be a PEM encoded certificate"),
)

// AbsoluteURL validates an absolute http(s) URL.
var AbsoluteURL = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
	},
	validation.NewError("validation_absolute_url", "must be an absolute http or https URL"),
)

// RequiredUUID rejects the nil UUID, which validation.Required accepts because uuid.UUID is
// a fixed-size array.
var RequiredUUID = validation.By(func(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
})

// Base64 validates standard base64 encoding. Empty strings pass; combine with Required.
var Base64 = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := base64.StdEncoding.DecodeString(s)
		return err == nil
	},
	validation.NewError("validation_base64", "must be valid base64-encoded data"),
)
