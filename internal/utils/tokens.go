package utils

import "strings"

// CountTokens estimates tokens at roughly four characters each.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly limit tokens.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	return string(runes[:charLimit])
}

// TruncateLines keeps whole leading lines of text while the running token
// estimate stays within limit. It reports whether anything was dropped.
func TruncateLines(text string, limit int) (string, bool) {
	if CountTokens(text) <= limit {
		return text, false
	}
	var b strings.Builder
	used := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		n := CountTokens(line)
		if used+n > limit {
			break
		}
		b.WriteString(line)
		used += n
	}
	return b.String(), true
}
