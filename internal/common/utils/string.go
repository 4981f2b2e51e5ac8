package utils

import "unicode/utf8"

// Truncate shortens s to at most limit runes, appending "..." when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	if limit <= 3 {
		return string(runes[:limit])
	}

	return string(runes[:limit-3]) + "..."
}

// Fallback returns s unless it is empty.
func Fallback(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
