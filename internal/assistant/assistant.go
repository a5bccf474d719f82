// Package assistant runs the per-question pipeline: schema lookup, SQL
// generation, execution, chart selection and narration.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/querylens/internal/chart"
	"github.com/KaramelBytes/querylens/internal/history"
	"github.com/KaramelBytes/querylens/internal/insight"
	"github.com/KaramelBytes/querylens/internal/metrics"
	"github.com/KaramelBytes/querylens/internal/sqlgen"
	"github.com/KaramelBytes/querylens/internal/table"
)

// Warehouse executes read-only SQL.
type Warehouse interface {
	Query(ctx context.Context, sql string) (*table.Table, error)
	Schema(ctx context.Context) (string, error)
	Driver() string
}

// Generator turns a question into SQL.
type Generator interface {
	Generate(ctx context.Context, schema, question string) (sqlgen.Generation, error)
}

// NarrowFunc trims schema text to the parts relevant to a question.
type NarrowFunc func(ctx context.Context, schema, question string) (string, error)

// Answer is everything produced for one question.
type Answer struct {
	Question  string          `json:"question" yaml:"question"`
	SQL       string          `json:"sql,omitempty" yaml:"sql,omitempty"`
	ChartHint string          `json:"chart_hint,omitempty" yaml:"chart_hint,omitempty"`
	Columns   []table.Column  `json:"columns" yaml:"columns"`
	Rows      int             `json:"rows" yaml:"rows"`
	Roles     table.Roles     `json:"roles" yaml:"roles"`
	Chart     *chart.Spec     `json:"chart,omitempty" yaml:"chart,omitempty"`
	Fallback  *chart.Fallback `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Insights  insight.List    `json:"insights" yaml:"insights"`
	TurnID    string          `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`

	Table *table.Table `json:"-" yaml:"-"`
}

// ChartType returns the selected chart type, or "" for a fallback.
func (a *Answer) ChartType() chart.Type {
	if a.Chart != nil {
		return a.Chart.Type
	}
	return ""
}

// Outcome is the chart type or fallback:<kind>, as used in metrics.
func (a *Answer) Outcome() string {
	if a.Chart != nil {
		return string(a.Chart.Type)
	}
	if a.Fallback != nil {
		return "fallback:" + string(a.Fallback.Kind)
	}
	return ""
}

// Analyze classifies t, selects a chart and generates insights. It never
// fails; a nil table is treated as empty.
func Analyze(t *table.Table, question, sqlText, hint string, log *slog.Logger) *Answer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t == nil {
		t = table.MustNew(nil, nil)
	}
	roles, err := table.Classify(t)
	if err != nil {
		log.Debug("classification incomplete", "error", err)
	}
	ans := &Answer{
		Question:  question,
		SQL:       sqlText,
		ChartHint: hint,
		Columns:   t.Columns(),
		Rows:      t.Len(),
		Roles:     roles,
		Table:     t,
	}
	switch r := chart.Select(t, roles, hint, chart.WithSQL(sqlText), chart.WithLogger(log)).(type) {
	case *chart.Spec:
		ans.Chart = r
	case *chart.Fallback:
		ans.Fallback = r
	}
	metrics.ChartOutcomes.WithLabelValues(ans.Outcome()).Inc()

	ans.Insights = insight.Generate(t, question, sqlText, ans.ChartType(),
		insight.WithLogger(log),
		insight.OnPhaseError(func(phase string, _ error) {
			metrics.InsightPhaseFailures.WithLabelValues(phase).Inc()
		}))
	return ans
}

// Assistant answers questions against a warehouse.
type Assistant struct {
	Warehouse Warehouse
	Generator Generator
	// Provider labels LLM metrics.
	Provider string
	// History, when set, records every turn.
	History *history.Log
	// Narrow, when set, trims the schema before generation.
	Narrow NarrowFunc
	Logger *slog.Logger
}

func (a *Assistant) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}

// Ask runs the full pipeline for q.
func (a *Assistant) Ask(ctx context.Context, q string) (*Answer, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errors.New("question is empty")
	}
	if a.Warehouse == nil || a.Generator == nil {
		return nil, errors.New("assistant needs a warehouse and a generator")
	}
	log := a.logger()

	schema, err := a.Warehouse.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if a.Narrow != nil {
		narrowed, err := a.Narrow(ctx, schema, q)
		if err != nil {
			log.Warn("schema retrieval failed; using full schema", "error", err)
		} else {
			schema = narrowed
		}
	}

	gen, err := a.Generator.Generate(ctx, schema, q)
	metrics.LLMRequests.WithLabelValues(a.Provider, metrics.Outcome(err)).Inc()
	if err != nil {
		a.record(history.Turn{Question: q, Error: err.Error()})
		return nil, err
	}
	log.Debug("generated sql", "sql", gen.SQL, "chart_hint", gen.ChartHint)

	t, err := a.Warehouse.Query(ctx, gen.SQL)
	metrics.WarehouseQueries.WithLabelValues(a.Warehouse.Driver(), metrics.Outcome(err)).Inc()
	if err != nil {
		a.record(history.Turn{Question: q, SQL: gen.SQL, Error: err.Error()})
		return nil, fmt.Errorf("run query: %w", err)
	}
	metrics.WarehouseRows.Add(float64(t.Len()))

	ans := Analyze(t, q, gen.SQL, gen.ChartHint, log)
	turn := a.record(history.Turn{
		Question:  q,
		SQL:       gen.SQL,
		ChartType: string(ans.ChartType()),
		Fallback:  fallbackKind(ans),
		Insights:  ans.Insights.String(),
		Rows:      ans.Rows,
	})
	ans.TurnID = turn.ID
	return ans, nil
}

func fallbackKind(a *Answer) string {
	if a.Fallback == nil {
		return ""
	}
	return string(a.Fallback.Kind)
}

func (a *Assistant) record(t history.Turn) history.Turn {
	if a.History == nil {
		return t
	}
	saved, err := a.History.Append(t)
	if err != nil {
		a.logger().Warn("could not save history", "error", err)
	}
	return saved
}
