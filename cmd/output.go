package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/querylens/internal/assistant"
	"github.com/KaramelBytes/querylens/internal/table"
	"github.com/KaramelBytes/querylens/internal/utils"
)

// emit prints v as JSON or YAML when one of the global format flags is set,
// and otherwise hands off to the text renderer.
func emit(w io.Writer, v any, text func(io.Writer) error) error {
	switch {
	case outJSON:
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case outYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	return text(w)
}

// renderTable prints up to limit rows of t; limit <= 0 prints everything.
func renderTable(w io.Writer, t *table.Table, limit int) {
	if t == nil || t.Width() == 0 {
		return
	}
	header, records := t.Records()
	more := 0
	if limit > 0 && len(records) > limit {
		more = len(records) - limit
		records = records[:limit]
	}
	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	tw.SetAutoFormatHeaders(false)
	tw.SetBorder(true)
	tw.SetHeader(header)
	for _, rec := range records {
		tw.Append(rec)
	}
	tw.Render()
	if more > 0 {
		fmt.Fprintf(w, "… %d more rows\n", more)
	}
}

// answerView is the serialised form of an answer, with the result rows.
type answerView struct {
	assistant.Answer `json:",inline" yaml:",inline"`
	Message          string  `json:"message,omitempty" yaml:"message,omitempty"`
	Data             [][]any `json:"data" yaml:"data"`
}

func viewOf(a *assistant.Answer) answerView {
	v := answerView{Answer: *a, Data: [][]any{}}
	if a.Fallback != nil {
		v.Message = a.Fallback.Message()
	}
	if a.Table != nil {
		for i := 0; i < a.Table.Len(); i++ {
			v.Data = append(v.Data, a.Table.Row(i))
		}
	}
	return v
}

// printAnswer renders an answer as text: SQL, chart choice, data and
// insights.
func printAnswer(w io.Writer, a *assistant.Answer, limit int, showSQL bool) error {
	return emit(w, viewOf(a), func(w io.Writer) error {
		if showSQL && a.SQL != "" {
			fmt.Fprintf(w, "SQL:\n  %s\n\n", strings.ReplaceAll(strings.TrimSpace(a.SQL), "\n", "\n  "))
		}
		data := a.Table
		switch {
		case a.Chart != nil:
			s := a.Chart
			fmt.Fprintf(w, "✓ Chart: %s [%s]\n", s.Title, s.Type)
			printSlots(w, s.Columns(), s.X, s.Y, s.Color, s.Facet)
			if s.Aggregation != nil {
				fmt.Fprintf(w, "  aggregated: %s by %s\n", s.Aggregation.Reducer, strings.Join(s.Aggregation.GroupBy, ", "))
			}
			if s.Frame != nil {
				data = s.Frame
			}
		case a.Fallback != nil:
			fmt.Fprintf(w, "⚠ %s (%s)\n", a.Fallback.Message(), a.Fallback.Kind)
		}
		fmt.Fprintln(w)
		renderTable(w, data, limit)
		if len(a.Insights) > 0 {
			fmt.Fprintln(w, "\nInsights:")
			for _, s := range a.Insights {
				fmt.Fprintf(w, "  • %s\n", s)
			}
		}
		if a.TurnID != "" {
			fmt.Fprintf(w, "\nTurn %s (vote with: querylens history vote %s up|down)\n", a.TurnID, shortID(a.TurnID))
		}
		return nil
	})
}

func printSlots(w io.Writer, all []string, x string, y []string, color, facet string) {
	var parts []string
	if x != "" {
		parts = append(parts, "x="+x)
	}
	if len(y) > 0 {
		parts = append(parts, "y="+strings.Join(y, ","))
	}
	if color != "" {
		parts = append(parts, "color="+color)
	}
	if facet != "" {
		parts = append(parts, "facet="+facet)
	}
	if len(parts) == 0 {
		parts = append(parts, "columns="+strings.Join(all, ","))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
