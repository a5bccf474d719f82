package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/querylens/internal/assistant"
	"github.com/KaramelBytes/querylens/internal/metrics"
	"github.com/KaramelBytes/querylens/internal/table"
	"github.com/KaramelBytes/querylens/internal/utils"
)

var (
	bFiles      fileFlags
	bWorkers    int
	bOutDir     string
	bHint       string
	bQuestion   string
	bMetricsOut string
	bQuiet      bool
)

// fileReport is what batch produces for one input file.
type fileReport struct {
	File    string         `json:"file" yaml:"file"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
	Profile *table.Profile `json:"profile,omitempty" yaml:"profile,omitempty"`
	Answer  *answerView    `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Markdown renders the report for humans.
func (r *fileReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", filepath.Base(r.File))
	if r.Error != "" {
		fmt.Fprintf(&b, "✗ Error: %s\n", r.Error)
		return b.String()
	}
	b.WriteString(r.Profile.Markdown())
	b.WriteString("\n[CHART]\n")
	switch a := r.Answer; {
	case a.Chart != nil:
		fmt.Fprintf(&b, "%s (%s)\n", a.Chart.Title, a.Chart.Type)
	case a.Fallback != nil:
		fmt.Fprintf(&b, "%s (%s)\n", a.Fallback.Message(), a.Fallback.Kind)
	}
	if len(r.Answer.Insights) > 0 {
		b.WriteString("\n[INSIGHTS]\n")
		for _, s := range r.Answer.Insights {
			b.WriteString("- " + s + "\n")
		}
	}
	return b.String()
}

// expandInputs resolves globs, drops duplicates and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 && exists(arg) {
			// treat as literal path if exists
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func analyzeFile(path string) *fileReport {
	rep := &fileReport{File: path}
	t, err := bFiles.load(path)
	metrics.BatchFiles.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Profile = table.Describe(filepath.Base(path), t)
	view := viewOf(assistant.Analyze(t, bQuestion, "", bHint, logger.With("file", path)))
	rep.Answer = &view
	return rep
}

// reportPath picks a free name in dir for the report of path, suffixing
// __2, __3... when two inputs share a base name.
func reportPath(dir, path, ext string, taken map[string]bool) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(dir, base+".report"+ext)
	for i := 2; taken[out]; i++ {
		out = filepath.Join(dir, fmt.Sprintf("%s__%d.report%s", base, i, ext))
	}
	taken[out] = true
	return out
}

func encodeReport(r *fileReport) ([]byte, string, error) {
	switch {
	case outJSON:
		b, err := utils.PrettyJSON(r)
		return b, ".json", err
	case outYAML:
		b, err := yaml.Marshal(r)
		return b, ".yaml", err
	}
	return []byte(r.Markdown()), ".md", nil
}

var batchCmd = &cobra.Command{
	Use:   "batch <files...>",
	Short: "Profile, chart and narrate many CSV/TSV/XLSX files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if _, err := bFiles.options(); err != nil {
			return err
		}
		workers := bWorkers
		if workers <= 0 {
			workers = 1
		}

		pool := pond.NewResultPool[*fileReport](workers)
		defer pool.StopAndWait()
		group := pool.NewGroupContext(cmd.Context())
		total := len(files)
		for i, path := range files {
			i, path := i, path
			group.SubmitErr(func() (*fileReport, error) {
				if !bQuiet {
					fmt.Fprintf(os.Stderr, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
				}
				return analyzeFile(path), nil
			})
		}
		reports, err := group.Wait()
		if err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		out := cmd.OutOrStdout()
		taken := map[string]bool{}
		failed := 0
		for _, r := range reports {
			if r.Error != "" {
				failed++
				fmt.Fprintf(os.Stderr, "⚠ Warning: %s: %s\n", r.File, r.Error)
			}
			body, ext, err := encodeReport(r)
			if err != nil {
				return err
			}
			if bOutDir == "" {
				fmt.Fprintln(out, string(body))
				continue
			}
			dest := reportPath(bOutDir, r.File, ext, taken)
			if err := utils.SafeWriteFile(dest, body); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !bQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", dest)
			}
		}

		if bMetricsOut != "" {
			if err := metrics.WriteTextfile(bMetricsOut); err != nil {
				return err
			}
		}
		if failed == total {
			return fmt.Errorf("all %d files failed", total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	bFiles.register(batchCmd)
	batchCmd.Flags().IntVarP(&bWorkers, "workers", "w", 4, "files processed in parallel")
	batchCmd.Flags().StringVarP(&bOutDir, "out", "o", "", "directory for one report per file (default: print to stdout)")
	batchCmd.Flags().StringVar(&bHint, "hint", "", "requested chart type applied to every file")
	batchCmd.Flags().StringVarP(&bQuestion, "question", "q", "", "question applied to every file")
	batchCmd.Flags().StringVar(&bMetricsOut, "metrics-out", "", "write Prometheus metrics to this textfile when done")
	batchCmd.Flags().BoolVar(&bQuiet, "quiet", false, "suppress progress and non-essential output")
}
