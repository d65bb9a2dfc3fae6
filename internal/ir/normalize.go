package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier NFC-normalizes and trims user-entered identifiers
// (table numbers, menu ids, OTP codes) so that visually identical input
// compares equal.
func NormalizeIdentifier(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// NormalizeEmail normalizes and lowercases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(NormalizeIdentifier(s))
}

// NormalizePhone keeps digits and a leading '+', dropping spaces and separators.
// NFKC folds full-width digits from mobile keyboards to ASCII.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
