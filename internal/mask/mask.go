// Package mask implements the display masking applied to every sensitive
// string before it reaches a log, audit entry, or API response. Masking is
// irreversible: only a fixed-length prefix survives.
package mask

import "strings"

// DefaultVisible is the number of leading characters left readable.
const DefaultVisible = 4

// Sensitive masks s, keeping the first visible characters. Empty input maps
// to "****" so downstream consumers always see a non-empty placeholder; for
// everything else the output length equals the input length.
func Sensitive(s string, visible int) string {
	if s == "" {
		return "****"
	}
	if visible < 0 {
		visible = 0
	}
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return s[:visible] + strings.Repeat("*", len(s)-visible)
}

// Default masks s with the standard four visible characters.
func Default(s string) string {
	return Sensitive(s, DefaultVisible)
}
