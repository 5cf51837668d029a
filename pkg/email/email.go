// Package email holds helpers for working with email addresses.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail guesses a given and family name from the local part of
// an address: "ada.lovelace@x.io" yields ("Ada", "Lovelace"). Missing parts
// fall back to "User".
func DeriveNameFromEmail(address string) (given, family string) {
	local, _, _ := strings.Cut(address, "@")
	if local == "" {
		return "User", "User"
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User", "User"
	}

	given = capitalize(parts[0])
	family = "User"
	if len(parts) > 1 {
		family = capitalize(parts[len(parts)-1])
	}
	return given, family
}

func capitalize(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
