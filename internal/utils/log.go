package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// PreviewPayload renders a response body for debug logs. Binary documents are
// summarised by size instead of being dumped.
func PreviewPayload(data []byte, limit int) string {
	if !utf8.Valid(data) {
		return fmt.Sprintf("<%d binary bytes>", len(data))
	}
	return TruncateForLog(string(data), limit)
}
