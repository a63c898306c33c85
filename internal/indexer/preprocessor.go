package indexer

import (
	"strings"
	"unicode"
)

// Normalize prepares extracted text for chunking while keeping paragraph structure:
// line endings become "\n", runs of horizontal whitespace collapse to one space, trailing
// spaces are dropped, more than one blank line collapses to a single paragraph break,
// and the result is trimmed.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	b.Grow(len(text))
	newlines := 0
	pendingSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			pendingSpace = false
		case unicode.IsSpace(r):
			pendingSpace = true
		default:
			if newlines > 0 {
				if b.Len() > 0 {
					if newlines > 1 {
						b.WriteString("\n\n")
					} else {
						b.WriteByte('\n')
					}
				}
				newlines = 0
			} else if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
