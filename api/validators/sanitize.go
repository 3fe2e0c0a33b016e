package validators

import "strings"

// SanitizeString trims surrounding whitespace and truncates to maxLen
// characters. Truncation counts runes, so multi-byte input is never cut
// mid-character.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return string(runes[:maxLen])
}
