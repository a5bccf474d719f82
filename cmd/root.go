package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/querylens/internal/config"
	"github.com/KaramelBytes/querylens/internal/metrics"
)

// Set by the linker.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	outJSON bool
	outYAML bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "querylens",
	Short: "QueryLens CLI: ask a SQL warehouse questions and get charts and insights",
	Long: `QueryLens turns a natural-language question into SQL, runs it read-only
against a warehouse, picks a chart for the result and narrates what the
numbers show. The chart and insight commands also work on local CSV/XLSX files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outJSON && outYAML {
			return errors.New("--json and --yaml cannot be combined")
		}
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.querylens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&outJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&outYAML, "yaml", false, "print results as YAML")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()
	logger = newLogger(debug)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// requireConfig returns the loaded config or loads it now.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}
