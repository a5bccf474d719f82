// Package sqlgen turns a natural-language question into one SQL statement
// and a chart hint by prompting an LLM runtime with the warehouse schema.
package sqlgen

import (
	"errors"
	"strings"

	"github.com/KaramelBytes/querylens/internal/chart"
	"github.com/KaramelBytes/querylens/internal/question"
	"github.com/KaramelBytes/querylens/internal/utils"
)

// SystemPrompt is sent as the system message for every generation.
const SystemPrompt = "You are an SQL expert. Given an input question and a schema, answer with one correct SQL query."

// PromptOptions shape the user prompt.
type PromptOptions struct {
	// Dialect names the SQL flavour, e.g. "SQLite" or "T-SQL".
	Dialect string
	// TokenLimit caps the schema section; 0 disables truncation.
	TokenLimit int
	// Examples are earlier question/SQL pairs the model may imitate.
	Examples []Example
}

// Example is a previously answered question.
type Example struct {
	Question string
	SQL      string
}

// Prompt is the assembled user message and its token estimate.
type Prompt struct {
	Text      string
	Tokens    int
	Truncated bool
}

// BuildPrompt assembles the prompt for one question.
func BuildPrompt(schema, q string, opts PromptOptions) (Prompt, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Prompt{}, errors.New("question is empty")
	}
	if strings.TrimSpace(schema) == "" {
		return Prompt{}, errors.New("schema is empty")
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = "SQLite"
	}
	truncated := false
	if opts.TokenLimit > 0 {
		schema, truncated = utils.TruncateLines(schema, opts.TokenLimit)
	}

	var sb strings.Builder
	sb.WriteString("[SCHEMA]\n")
	sb.WriteString(strings.TrimRight(schema, "\n"))
	sb.WriteString("\n\n")
	if len(opts.Examples) > 0 {
		sb.WriteString("[EXAMPLES]\n")
		for _, ex := range opts.Examples {
			sb.WriteString("-- ")
			sb.WriteString(ex.Question)
			sb.WriteString("\n")
			sb.WriteString(strings.TrimSpace(ex.SQL))
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString("[TASK]\n")
	sb.WriteString("-- Using valid ")
	sb.WriteString(dialect)
	sb.WriteString(", answer the following question for the tables provided above.\n")
	sb.WriteString("-- ")
	sb.WriteString(q)
	sb.WriteString(" (Generate 1 SQL query. No explanation needed.)\n")
	if question.ContainsDateRange(q) {
		sb.WriteString("-- The question names a date range; filter on it inclusively at both ends.\n")
	}
	sb.WriteString("-- Return the query in a ```sql block, then one line of the form\n")
	sb.WriteString("-- Chart: <type> (<annotation>)\n")
	sb.WriteString("-- where <type> is one of: ")
	names := make([]string, len(chart.Types))
	for i, t := range chart.Types {
		names[i] = strings.ReplaceAll(string(t), "_", " ")
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(".\n")

	text := sb.String()
	return Prompt{Text: text, Tokens: utils.CountTokens(text), Truncated: truncated}, nil
}
