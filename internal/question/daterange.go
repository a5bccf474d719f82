// Package question holds helpers that look at the user's question text
// before it is sent for SQL generation.
package question

import (
	"regexp"
	"strings"
)

const month = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var datePatterns = []string{
	`\d{1,2}[/\-\s]\d{1,2}[/\-\s]\d{2,4}`,                       // 06/07/2024, 06-12-2024
	`\d{1,2}(?:st|nd|rd|th)?\s*` + month + `(?:\s*,?\s*\d{4})?`, // 3rd March 2024
	month + `\s*\d{1,2}(?:st|nd|rd|th)?(?:\s*,?\s*\d{4})?`,      // March 3, 2024
	`\d{4}[/\-]\d{1,2}[/\-]\d{1,2}`,                             // 2024-08-15
	`\d{8}`,                                                     // 20231205, 05122023
}

var dateRange = func() *regexp.Regexp {
	date := `\b(?:` + strings.Join(datePatterns, "|") + `)\b`
	return regexp.MustCompile(`(?i)\b(?:from|between)\s+` + date + `\s*(?:to|and|-|until|through)\s*` + date)
}()

// ContainsDateRange reports whether q asks about an explicit span of dates,
// as in "from 3 March to 4 March 2024" or "between 2024-08-15 and 2024-08-18".
func ContainsDateRange(q string) bool {
	return dateRange.MatchString(q)
}
