package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/querylens/internal/assistant"
	"github.com/KaramelBytes/querylens/internal/table"
)

// fileFlags are the parsing knobs shared by commands that read local files.
type fileFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (from extension if omitted)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 100000, "maximum rows to load (0 = unlimited)")
}

func (f *fileFlags) options() (table.ReadOptions, error) {
	opt := table.ReadOptions{MaxRows: f.maxRows, Sheet: f.sheetName, SheetIndex: f.sheetIndex}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	if opt.DecimalSeparator != 0 && opt.DecimalSeparator == opt.ThousandsSeparator {
		return opt, fmt.Errorf("--decimal and --thousands must differ")
	}
	return opt, nil
}

func (f *fileFlags) load(path string) (*table.Table, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	t, err := table.ReadFile(path, opt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	logger.Debug("loaded table", "file", path, "rows", t.Len(), "columns", t.Width())
	return t, nil
}

var (
	chFiles    fileFlags
	chHint     string
	chSQL      string
	chQuestion string
	chRows     int

	inFiles    fileFlags
	inHint     string
	inSQL      string
	inQuestion string

	dsFiles fileFlags
)

var chartCmd = &cobra.Command{
	Use:   "chart <file>",
	Short: "Pick a chart for a CSV/TSV/XLSX result table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := chFiles.load(args[0])
		if err != nil {
			return err
		}
		ans := assistant.Analyze(t, chQuestion, chSQL, chHint, logger)
		ans.Insights = nil
		return printAnswer(cmd.OutOrStdout(), ans, chRows, false)
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Narrate what a CSV/TSV/XLSX result table shows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := inFiles.load(args[0])
		if err != nil {
			return err
		}
		ans := assistant.Analyze(t, inQuestion, inSQL, inHint, logger)
		out := struct {
			Chart    string   `json:"chart" yaml:"chart"`
			Insights []string `json:"insights" yaml:"insights"`
		}{Chart: ans.Outcome(), Insights: ans.Insights}
		if out.Insights == nil {
			out.Insights = []string{}
		}
		return emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
			if len(ans.Insights) == 0 {
				fmt.Fprintln(w, "No insights for this result.")
				return nil
			}
			for _, s := range ans.Insights {
				fmt.Fprintf(w, "• %s\n", s)
			}
			return nil
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Profile the columns of a CSV/TSV/XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := dsFiles.load(args[0])
		if err != nil {
			return err
		}
		p := table.Describe(filepath.Base(args[0]), t)
		return emit(cmd.OutOrStdout(), p, func(w io.Writer) error {
			printProfile(w, p)
			return nil
		})
	},
}

func printProfile(w io.Writer, p *table.Profile) {
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", p.Name, p.Rows, len(p.Columns))
	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	tw.SetAutoFormatHeaders(false)
	tw.SetBorder(true)
	tw.SetHeader([]string{"Column", "Kind", "Role", "Non-null", "Missing", "Unique", "Min", "Max", "Mean"})
	for _, c := range p.Columns {
		mean := ""
		if c.Mean != nil {
			mean = strconv.FormatFloat(*c.Mean, 'f', 2, 64)
		}
		tw.Append([]string{
			c.Name, string(c.Kind), string(c.Role),
			strconv.Itoa(c.NonNull), strconv.Itoa(c.Missing), strconv.Itoa(c.Unique),
			c.Min, c.Max, mean,
		})
	}
	tw.Render()
	for _, n := range p.Notes {
		fmt.Fprintf(w, "⚠ %s\n", n)
	}
}

func init() {
	rootCmd.AddCommand(chartCmd, insightsCmd, describeCmd)

	chFiles.register(chartCmd)
	chartCmd.Flags().StringVar(&chHint, "hint", "", "requested chart, e.g. \"bar\" or \"line (monthly trend)\"")
	chartCmd.Flags().StringVar(&chSQL, "sql", "", "SQL that produced the file; aggregate queries are not re-aggregated")
	chartCmd.Flags().StringVarP(&chQuestion, "question", "q", "", "question the table answers")
	chartCmd.Flags().IntVar(&chRows, "rows", 20, "rows of chart data to print (0 = all)")

	inFiles.register(insightsCmd)
	insightsCmd.Flags().StringVar(&inHint, "hint", "", "requested chart type")
	insightsCmd.Flags().StringVar(&inSQL, "sql", "", "SQL that produced the file")
	insightsCmd.Flags().StringVarP(&inQuestion, "question", "q", "", "question the table answers")

	dsFiles.register(describeCmd)
}

// exists reports whether path names a readable file.
func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
