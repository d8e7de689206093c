package session

import (
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the maximum length for a session title
const MaxTitleLength = 60

// GenerateTitle derives a session title from the first user message
func GenerateTitle(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return "New conversation"
	}
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}

	truncated := string([]rune(s)[:MaxTitleLength])
	// break at the last word boundary when it is not too early
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > MaxTitleLength/2 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(truncated) + "..."
}
