package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "querylens_build_info",
		Help: "Build information of querylens",
	}, []string{"version", "commit", "date"})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querylens_llm_requests_total", Help: "SQL generation requests by provider and outcome.",
	}, []string{"provider", "result"})

	WarehouseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querylens_warehouse_queries_total", Help: "Warehouse queries by driver and outcome.",
	}, []string{"driver", "result"})
	WarehouseRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "querylens_warehouse_rows_total", Help: "Rows returned by warehouse queries.",
	})

	ChartOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querylens_chart_outcomes_total", Help: "Chart selections by chart type, or fallback:<kind> when no chart fit.",
	}, []string{"outcome"})

	InsightPhaseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querylens_insight_phase_failures_total", Help: "Insight phases that failed and were skipped.",
	}, []string{"phase"})

	BatchFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "querylens_batch_files_total", Help: "Files processed by the batch command.",
	}, []string{"result"})
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Outcome returns the result label for err.
func Outcome(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// WriteTextfile dumps every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
