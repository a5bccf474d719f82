package warehouse

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotReadOnly is returned for statements that could modify data.
var ErrNotReadOnly = errors.New("warehouse: only SELECT and WITH queries may run")

var (
	lineComment   = regexp.MustCompile(`--[^\n]*`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	quotedText    = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"|\[[^\]]*\]`)
	writeKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|merge|grant|revoke|attach|detach|pragma|exec|execute|into|vacuum|reindex)\b`)
)

// CheckReadOnly rejects anything but a single SELECT or WITH statement that
// names no data-modifying keyword outside quoted text.
func CheckReadOnly(query string) error {
	s := blockComment.ReplaceAllString(query, " ")
	s = lineComment.ReplaceAllString(s, " ")
	s = quotedText.ReplaceAllString(s, "''")
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimRight(s, "; \t\n"))
	if s == "" {
		return ErrNotReadOnly
	}
	first := strings.ToLower(strings.Fields(s)[0])
	if first != "select" && first != "with" && !strings.HasPrefix(first, "(") {
		return ErrNotReadOnly
	}
	if strings.Contains(s, ";") {
		return ErrNotReadOnly
	}
	if writeKeywords.MatchString(s) {
		return ErrNotReadOnly
	}
	return nil
}
