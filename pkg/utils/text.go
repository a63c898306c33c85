// Package utils provides shared utilities for text, vectors, and logging.
package utils

import "unicode/utf8"

// Truncate returns s cut to at most maxLen characters (code points), with "..." appended if it was cut.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return PrefixRunes(s, maxLen) + "..."
}

// PrefixRunes returns the first n code points of s.
func PrefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
