// Package insight narrates statistical properties of a query result as short
// English sentences. Generation runs a fixed sequence of phases; each phase
// is isolated so a failure in one never suppresses the others.
package insight

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/querylens/internal/chart"
	"github.com/KaramelBytes/querylens/internal/table"
)

// Heuristic thresholds.
const (
	SignificantChangePct = 10.0
	StrongCorrelation    = 0.7
	OutlierIQR           = 1.5
	SeasonalityRatio     = 1.5
	MinSeasonalRows      = 12
	MinDistinctForShape  = 5
	SkewThreshold        = 1.0
	ParetoShare          = 0.8
	TopShareRows         = 5
	LongTailHead         = 3
	CVLow                = 0.5
	CVHigh               = 1.0
	HerfindahlDiverse    = 0.15
	HerfindahlModerate   = 0.25
	MaxVolatilityWindow  = 30
)

// Phase names, in execution order.
const (
	PhaseSQL          = "sql"
	PhaseGrouping     = "grouping"
	PhaseTemporal     = "temporal"
	PhaseDistribution = "distribution"
	PhaseCorrelation  = "correlation"
	PhaseChart        = "chart"
	PhaseQuestion     = "question"
	PhaseOverall      = "overall"
)

// List is the ordered set of generated sentences.
type List []string

// String joins the sentences with single spaces.
func (l List) String() string { return strings.Join(l, " ") }

// Option configures Generate.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	onError func(phase string, err error)
}

// WithLogger receives a debug record for every phase that failed.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// OnPhaseError registers a callback invoked with each failed phase.
func OnPhaseError(fn func(phase string, err error)) Option {
	return func(o *options) { o.onError = fn }
}

// input is what every phase reads.
type input struct {
	t         *table.Table
	roles     table.Roles
	question  string
	sql       string
	chartType chart.Type
}

type phase struct {
	name string
	run  func(in *input) ([]string, error)
}

var phases = []phase{
	{PhaseSQL, sqlPhase},
	{PhaseGrouping, groupingPhase},
	{PhaseTemporal, temporalPhase},
	{PhaseDistribution, distributionPhase},
	{PhaseCorrelation, correlationPhase},
	{PhaseChart, chartPhase},
	{PhaseQuestion, questionPhase},
	{PhaseOverall, overallPhase},
}

// Generate runs every phase over t and returns the sentences in phase
// order. chartType is the chart that was selected, or empty when the result
// fell back to a table. It never fails; a phase that errors or panics
// contributes nothing.
func Generate(t *table.Table, question, sqlText string, chartType chart.Type, opts ...Option) List {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, fn := range opts {
		fn(&o)
	}
	if t == nil {
		t = table.MustNew(nil, nil)
	}
	roles, _ := table.Classify(t)
	in := &input{t: t, roles: roles, question: question, sql: sqlText, chartType: chartType}

	var out List
	for _, p := range phases {
		sentences, err := runPhase(p, in)
		if err != nil {
			o.logger.Debug("insight phase failed", "phase", p.name, "error", err)
			if o.onError != nil {
				o.onError(p.name, err)
			}
			continue
		}
		out = append(out, sentences...)
	}
	return out
}

func runPhase(p phase, in *input) (sentences []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			sentences, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.run(in)
}
