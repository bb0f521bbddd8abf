package textutil

import (
	"regexp"
	"strings"
)

var (
	htmlTagRE    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
	unsafeNameRE = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// CleanHTML strips HTML tags and trims whitespace.
func CleanHTML(s string) string {
	return strings.TrimSpace(htmlTagRE.ReplaceAllString(s, ""))
}

// NormalizeWhitespace collapses all whitespace runs to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// TruncateAtWord caps s at maxLen runes, cutting back to the last word
// boundary so the result never ends mid-word.
func TruncateAtWord(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := string(runes[:maxLen])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ")
}

// SanitizeFilename converts a title into a safe attachment filename.
func SanitizeFilename(title string) string {
	name := unsafeNameRE.ReplaceAllString(title, "")
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
