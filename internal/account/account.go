// Package account models the accounts a credential-management host hands to an
// action and the parameter checks every action runs before touching the network.
package account

import (
	"net/url"
	"strings"
	"unicode/utf8"

	dserrors "github.com/systmms/snowcred/internal/errors"
	"github.com/systmms/snowcred/internal/secure"
)

// Property names read from account properties.
const (
	PropUsername = "Username"
	PropAddress  = "Address"
)

// MaxUsernameLength is the longest user name ServiceNow accepts.
const MaxUsernameLength = 64

// Account is one account supplied by the host: its properties and the secrets
// attached to it. Either secret may be nil.
type Account struct {
	Properties      map[string]string
	CurrentPassword *secure.Secret
	NewPassword     *secure.Secret
}

// Property returns a property value, or "" when the account or property is absent.
func (a *Account) Property(name string) string {
	if a == nil {
		return ""
	}
	return a.Properties[name]
}

// Destroy releases both secrets. Safe on a nil account.
func (a *Account) Destroy() {
	if a == nil {
		return
	}
	a.CurrentPassword.Destroy()
	a.NewPassword.Destroy()
}

// GetMandatoryParameter returns props[name], failing with
// CodeMandatoryParameterMissing when it is absent or blank.
func GetMandatoryParameter(name string, props map[string]string) (string, error) {
	value, ok := props[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", dserrors.New(dserrors.CodeMandatoryParameterMissing, "Mandatory parameter '%s' is missing", name)
	}
	return value, nil
}

// ValidateParameterLength fails with CodeParameterInvalidLength when value is
// longer than maxLen characters.
func ValidateParameterLength(value, name string, maxLen int) error {
	if n := utf8.RuneCountInString(value); n > maxLen {
		return dserrors.New(dserrors.CodeParameterInvalidLength,
			"Parameter '%s' is %d characters long, the maximum is %d", name, n, maxLen)
	}
	return nil
}

// ValidateURI fails with CodeParameterInvalidURI when value is not a relative or
// absolute URI.
func ValidateURI(value, name string) error {
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " \t") {
		return dserrors.New(dserrors.CodeParameterInvalidURI, "Parameter '%s' is not a valid URI", name)
	}
	if _, err := url.Parse(value); err != nil {
		return dserrors.Wrap(dserrors.CodeParameterInvalidURI, err, "Parameter '%s' is not a valid URI", name)
	}
	return nil
}

// ValidatePasswordIsNotEmpty fails with CodeParameterPasswordEmpty when s is nil,
// empty or already destroyed.
func ValidatePasswordIsNotEmpty(s *secure.Secret, name string) error {
	if s.IsEmpty() {
		return dserrors.New(dserrors.CodeParameterPasswordEmpty, "Parameter '%s' is empty", name)
	}
	return nil
}
