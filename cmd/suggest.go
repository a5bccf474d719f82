package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/querylens/internal/question"
	"github.com/KaramelBytes/querylens/internal/retrieval"
	"github.com/KaramelBytes/querylens/internal/table"
)

var (
	sgFiles     fileFlags
	sgFile      string
	sgDriver    string
	sgDSN       string
	sgMaxValues int
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <question-so-far>",
	Short: "Complete the last word of a question from column names and values",
	Long: `Completes the last word of a partly typed question. Candidates come from
the columns of --file (plus the values of its categorical columns), or from
the warehouse schema when no file is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typed := args[0]
		for _, a := range args[1:] {
			typed += " " + a
		}
		var columns []string
		var values map[string][]string
		if sgFile != "" {
			t, err := sgFiles.load(sgFile)
			if err != nil {
				return err
			}
			columns, values = vocabulary(t, sgMaxValues)
		} else {
			c, err := requireConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			db, err := openWarehouse(ctx, c, sgDriver, sgDSN, 0)
			if err != nil {
				return err
			}
			defer db.Close()
			schema, err := db.Schema(ctx)
			if err != nil {
				return err
			}
			columns = retrieval.ColumnNames(schema)
		}

		word := question.LastWord(typed)
		suggestions := question.Suggest(word, columns, values)
		completions := make([]string, len(suggestions))
		for i, s := range suggestions {
			completions[i] = question.Complete(typed, s)
		}
		out := struct {
			Word        string   `json:"word" yaml:"word"`
			Suggestions []string `json:"suggestions" yaml:"suggestions"`
			Completions []string `json:"completions" yaml:"completions"`
		}{word, suggestions, completions}
		return emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
			if len(suggestions) == 0 {
				fmt.Fprintf(w, "No suggestions for %q.\n", word)
				return nil
			}
			for _, s := range suggestions {
				fmt.Fprintln(w, s)
			}
			return nil
		})
	},
}

// vocabulary returns the column names of t and, per categorical column, up
// to limit distinct values in sorted order.
func vocabulary(t *table.Table, limit int) ([]string, map[string][]string) {
	values := map[string][]string{}
	for j, c := range t.Columns() {
		if c.Kind != table.KindCategorical {
			continue
		}
		seen := map[string]bool{}
		var vs []string
		for i := 0; i < t.Len(); i++ {
			if t.Value(i, j) == nil {
				continue
			}
			v := t.Label(i, j)
			if !seen[v] {
				seen[v] = true
				vs = append(vs, v)
			}
		}
		sort.Strings(vs)
		if limit > 0 && len(vs) > limit {
			vs = vs[:limit]
		}
		values[c.Name] = vs
	}
	return t.Names(), values
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	sgFiles.register(suggestCmd)
	suggestCmd.Flags().StringVarP(&sgFile, "file", "f", "", "CSV/TSV/XLSX file to draw columns and values from")
	suggestCmd.Flags().StringVar(&sgDriver, "driver", "", "warehouse driver (default from config)")
	suggestCmd.Flags().StringVar(&sgDSN, "dsn", "", "warehouse connection string (default from config)")
	suggestCmd.Flags().IntVar(&sgMaxValues, "max-values", 50, "distinct values offered per column (0 = all)")
}
