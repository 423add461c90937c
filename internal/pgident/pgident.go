// Package pgident quotes PostgreSQL identifiers for safe use in command
// arguments and ::regclass casts.
package pgident

import "strings"

// NeedsQuoting reports whether name must be quoted before being passed to
// pg_dump or embedded in a regclass cast: anything outside [A-Za-z0-9_],
// or a name containing a dot (which would otherwise be read as a
// schema separator).
func NeedsQuoting(name string) bool {
	if name == "" {
		return true
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return true
		}
	}
	return false
}

// Quote wraps name in double quotes, doubling any embedded double quotes.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIfNeeded returns name unchanged when it is a plain identifier and a
// quoted form otherwise.
func QuoteIfNeeded(name string) string {
	if NeedsQuoting(name) {
		return Quote(name)
	}
	return name
}
