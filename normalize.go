package edgar

import (
	"strings"
	"unicode"
)

// NormalizeSubmission prepares raw submission text for decoding:
// CRLF and CR line endings become LF and zero-width characters (including
// a leading byte order mark) are dropped. Entities are left alone.
func NormalizeSubmission(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return removeInvisibleChars(text)
}

// removeInvisibleChars removes zero-width and other format characters
func removeInvisibleChars(text string) string {
	if strings.IndexFunc(text, isInvisible) < 0 {
		return text
	}

	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		if !isInvisible(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF', '\u180E':
		return true
	}
	return unicode.Is(unicode.Cf, r)
}

// cleanCellText collapses the whitespace of rendered table text, including
// non-breaking and other Unicode spaces, to single spaces and trims it
func cleanCellText(text string) string {
	return strings.Join(strings.FieldsFunc(text, isSpace), " ")
}

func isSpace(r rune) bool {
	switch r {
	case '\u00A0', '\u202F', '\u205F', '\u3000':
		return true
	}
	return unicode.IsSpace(r) || (r >= '\u2000' && r <= '\u200A')
}
