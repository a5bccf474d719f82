package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/querylens/internal/assistant"
	"github.com/KaramelBytes/querylens/internal/history"
)

var (
	askProvider   string
	askModel      string
	askDriver     string
	askDSN        string
	askOllamaHost string
	askShowSQL    bool
	askNoHistory  bool
	askRows       int
	askMaxRows    int

	askRetrieval     bool
	askReindex       bool
	askEmbedProvider string
	askEmbedModel    string
	askTopK          int
	askMinScore      float64
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with SQL, a chart and insights",
	Example: `  querylens ask "total sales by region" --dsn ./shop.db
  querylens ask "monthly revenue from 01/01/2024 to 30/06/2024" --show-sql --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.TrimSpace(strings.Join(args, " "))
		if q == "" {
			return fmt.Errorf("question is empty")
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		provider := selectProvider(c, askProvider)
		rt, err := buildRuntime(c, provider, askOllamaHost)
		if err != nil {
			return err
		}
		db, err := openWarehouse(ctx, c, askDriver, askDSN, askMaxRows)
		if err != nil {
			return err
		}
		defer db.Close()

		var hist *history.Log
		if !askNoHistory {
			hist, err = history.Open(c.HistoryPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "⚠ Warning: history disabled: %v\n", err)
				hist = nil
			}
		}

		model := selectModel(c, askModel, provider)
		logger.Debug("asking", "provider", provider, "model", model, "driver", db.Driver())
		a := &assistant.Assistant{
			Warehouse: db,
			Generator: newGenerator(c, rt, model, db, hist),
			Provider:  provider,
			History:   hist,
			Logger:    logger,
		}
		if askRetrieval {
			dsn := askDSN
			if dsn == "" {
				dsn = c.DBDSN
			}
			narrow, err := schemaNarrower(c, retrievalOptions{
				Reindex:       askReindex,
				EmbedModel:    askEmbedModel,
				EmbedProvider: askEmbedProvider,
				TopK:          askTopK,
				MinScore:      askMinScore,
				OllamaHost:    askOllamaHost,
				IndexDir:      indexDir(db.Driver(), dsn),
			}, defaultRetrievalDeps)
			if err != nil {
				return err
			}
			a.Narrow = narrow
		}

		ans, err := a.Ask(ctx, q)
		if err != nil {
			return err
		}
		return printAnswer(cmd.OutOrStdout(), ans, askRows, askShowSQL)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askProvider, "provider", "", "LLM provider: openrouter | anthropic | ollama (default from config)")
	askCmd.Flags().StringVar(&askModel, "model", "", "model name (default from config)")
	askCmd.Flags().StringVar(&askDriver, "driver", "", "warehouse driver: sqlite3 | sqlserver | pgx (default from config)")
	askCmd.Flags().StringVar(&askDSN, "dsn", "", "warehouse connection string (default from config)")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "Ollama base URL (overrides config)")
	askCmd.Flags().BoolVar(&askShowSQL, "show-sql", false, "print the generated SQL")
	askCmd.Flags().BoolVar(&askNoHistory, "no-history", false, "do not record this question in history")
	askCmd.Flags().IntVar(&askRows, "rows", 20, "rows of result data to print (0 = all)")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 10000, "stop reading query results after this many rows (0 = unlimited)")

	askCmd.Flags().BoolVar(&askRetrieval, "retrieval", false, "send only schema tables relevant to the question (embeddings)")
	askCmd.Flags().BoolVar(&askReindex, "reindex", false, "rebuild the schema embedding index")
	askCmd.Flags().StringVar(&askEmbedProvider, "embed-provider", "", "embedding provider: openrouter | ollama (default from config)")
	askCmd.Flags().StringVar(&askEmbedModel, "embed-model", "", "embedding model (default from config)")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "schema columns to retrieve (default from config)")
	askCmd.Flags().Float64Var(&askMinScore, "min-score", 0, "minimum cosine similarity for retrieved columns")
}
