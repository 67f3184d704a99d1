package account

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// ValidationKind identifies which rule a credential pair failed.
type ValidationKind int

const (
	// EmptyField: identifier or secret is empty.
	EmptyField ValidationKind = iota
	// SecretFormat: secret contains whitespace.
	SecretFormat
	// IdentifierFormat: identifier is neither a phone number nor an email.
	IdentifierFormat
)

// ValidationError is a terminal, per-account credential failure.
type ValidationError struct {
	Kind   ValidationKind
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	// CN mobile numbers: leading 1, second digit 3-9, 11 digits total.
	phonePattern = regexp2.MustCompile(`^1[3-9]\d{9}$`, 0)
	// Simplified email check, TLD of at least two letters.
	emailPattern = regexp2.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`, 0)
)

// Validate checks credential shape before any network traffic. Rules are
// applied in order and the first failure wins. Pure; no I/O.
func Validate(identifier, secret string) error {
	if identifier == "" || secret == "" {
		return &ValidationError{Kind: EmptyField, Reason: "identifier and secret must not be empty"}
	}
	if strings.ContainsFunc(secret, unicode.IsSpace) {
		return &ValidationError{Kind: SecretFormat, Reason: "secret must not contain whitespace"}
	}
	if !matches(phonePattern, identifier) && !matches(emailPattern, identifier) {
		return &ValidationError{
			Kind:   IdentifierFormat,
			Reason: fmt.Sprintf("identifier %s is neither a phone number nor an email address", Redacted(identifier)),
		}
	}
	return nil
}

func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}
