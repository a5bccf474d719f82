package history

import "time"

// Turn is one answered question.
type Turn struct {
	ID        string    `json:"id" yaml:"id"`
	Question  string    `json:"question" yaml:"question"`
	SQL       string    `json:"sql,omitempty" yaml:"sql,omitempty"`
	ChartType string    `json:"chart_type,omitempty" yaml:"chart_type,omitempty"`
	Fallback  string    `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Insights  string    `json:"insights,omitempty" yaml:"insights,omitempty"`
	Rows      int       `json:"rows" yaml:"rows"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Upvotes   int       `json:"upvotes" yaml:"upvotes"`
	Downvotes int       `json:"downvotes" yaml:"downvotes"`
	AskedAt   time.Time `json:"asked_at" yaml:"asked_at"`
}

// Score is upvotes minus downvotes.
func (t Turn) Score() int { return t.Upvotes - t.Downvotes }
