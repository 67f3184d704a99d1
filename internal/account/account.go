// Package account holds the account model, credential validation and the
// redacted display form used in logs and notifications.
package account

import "strings"

// Account is one identifier/secret pair loaded from configuration.
// Immutable; it only lives for the duration of a single run.
type Account struct {
	Identifier string
	Secret     string
}

// Redacted returns a display form of the identifier that keeps only a few
// leading and trailing characters, so full identifiers never reach logs or
// notification bodies.
func Redacted(identifier string) string {
	s := strings.TrimSpace(identifier)
	if s == "" {
		return "***"
	}
	if len(s) <= 8 {
		n := len(s) / 3
		if n < 1 {
			n = 1
		}
		return s[:n] + "***" + s[len(s)-n:]
	}
	return s[:3] + "****" + s[len(s)-4:]
}

// Redacted is the method form for convenience at call sites.
func (a Account) Redacted() string {
	return Redacted(a.Identifier)
}
