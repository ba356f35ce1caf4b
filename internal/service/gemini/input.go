package gemini

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxInputLength = 50000

var inputEscaper = strings.NewReplacer(
	"`", "\\`",
	"{", "\\{",
	"}", "\\}",
)

// sanitizeInput prepares user-supplied text for a prompt: it keeps the first
// maxInputLength runes, drops control characters other than newline and tab,
// and escapes braces and backticks so the text cannot open a placeholder or a
// code fence.
func sanitizeInput(s string) string {
	if utf8.RuneCountInString(s) > maxInputLength {
		s = string([]rune(s)[:maxInputLength])
	}

	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return inputEscaper.Replace(s)
}
