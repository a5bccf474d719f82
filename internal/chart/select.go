package chart

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/KaramelBytes/querylens/internal/table"
)

// Option configures Select.
type Option func(*options)

type options struct {
	sql    string
	logger *slog.Logger
}

// WithSQL passes the executed SQL text. When it already calls an aggregate
// function, duplicate axis keys are plotted as they are instead of summed.
func WithSQL(sql string) Option { return func(o *options) { o.sql = sql } }

// WithLogger receives debug records for every degradation step.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

var aggregateCall = regexp.MustCompile(`(?i)\b(sum|count|avg|min|max)\s*\(`)

// UsesAggregate reports whether sql calls SUM, COUNT, AVG, MIN or MAX.
func UsesAggregate(sql string) bool { return aggregateCall.MatchString(sql) }

// errRoles marks a chart type the role set cannot support.
var errRoles = errors.New("columns do not fit chart")

// Select chooses and builds a chart. A parseable hint is tried first, then
// the role-based default, then the fallback cascade. It never fails: any
// construction error degrades to the next step.
func Select(t *table.Table, roles table.Roles, hint string, opts ...Option) Result {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, fn := range opts {
		fn(&o)
	}
	if t.Len() == 0 {
		return &Fallback{Kind: NoData, Reason: "the query returned no rows"}
	}
	b := &builder{t: t, roles: roles, preAggregated: UsesAggregate(o.sql)}

	var reasons []string
	requested, annotation, ok := ParseHint(hint)
	if ok {
		b.annotation = annotation
		spec, err := b.try(requested)
		if err == nil {
			return spec
		}
		o.logger.Debug("requested chart unavailable", "type", requested, "error", err)
		reasons = append(reasons, fmt.Sprintf("%s: %v", requested, err))
	} else if strings.TrimSpace(hint) != "" {
		o.logger.Debug("unrecognised chart hint", "hint", hint)
	}

	if def, found := Default(roles); found && def != requested {
		b.annotation = ""
		spec, err := b.try(def)
		if err == nil {
			return spec
		}
		o.logger.Debug("default chart unavailable", "type", def, "error", err)
		reasons = append(reasons, fmt.Sprintf("%s: %v", def, err))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no chart type fits the result columns")
	}
	fb := newFallback(t, roles, strings.Join(reasons, "; "))
	o.logger.Debug("falling back", "kind", fb.Kind, "reason", fb.Reason)
	return fb
}

type builder struct {
	t             *table.Table
	roles         table.Roles
	annotation    string
	preAggregated bool
}

// try builds and validates one chart type. Panics from data preparation
// are reported as errors.
func (b *builder) try(typ Type) (spec *Spec, err error) {
	defer func() {
		if r := recover(); r != nil {
			spec, err = nil, fmt.Errorf("building %s: %v", typ, r)
		}
	}()
	switch typ {
	case Bar:
		spec, err = b.bar()
	case GroupedBar:
		spec, err = b.groupedBar()
	case Line:
		spec, err = b.line()
	case Pie:
		spec, err = b.pie()
	case Scatter:
		spec, err = b.scatter()
	case Histogram:
		spec, err = b.histogram()
	case Heatmap:
		spec, err = b.heatmap()
	default:
		return nil, fmt.Errorf("unsupported chart type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(spec, b.t, b.roles); err != nil {
		return nil, err
	}
	return spec, nil
}

func (b *builder) bar() (*Spec, error) {
	cats, nums := b.roles.Categorical, b.roles.Numeric
	if len(cats) == 0 || len(nums) == 0 {
		return nil, fmt.Errorf("%w: bar needs a categorical and a numeric column", errRoles)
	}
	s := &Spec{Type: Bar, X: cats[0], Y: nums}
	if named := b.namedNumeric(); named != "" {
		s.Y = []string{named}
	}
	if len(cats) > 1 {
		s.Color = cats[1]
	}
	if len(s.Y) > 1 || s.Color != "" {
		s.Barmode = "group"
	}
	s.Horizontal = strings.Contains(strings.ToLower(b.annotation), "horizontal")
	return b.prepare(s, []string{s.X, s.Color}, false)
}

func (b *builder) groupedBar() (*Spec, error) {
	cats, nums := b.roles.Categorical, b.roles.Numeric
	if len(cats) < 2 || len(nums) == 0 {
		return nil, fmt.Errorf("%w: grouped bar needs two categorical columns and a numeric column", errRoles)
	}
	s := &Spec{Type: GroupedBar, X: cats[0], Y: nums[:1], Color: cats[1], Barmode: "group"}
	if len(cats) > 2 {
		s.Facet = cats[2]
		s.FacetWrap = FacetWrap
	}
	return b.prepare(s, []string{s.X, s.Color, s.Facet}, false)
}

func (b *builder) line() (*Spec, error) {
	nums := b.roles.Numeric
	s := &Spec{Type: Line, Markers: true}
	switch {
	case len(b.roles.Temporal) > 0 && len(nums) > 0:
		s.X, s.Y = b.roles.Temporal[0], nums
	case len(nums) > 1:
		s.X, s.Y = nums[0], nums[1:]
	default:
		return nil, fmt.Errorf("%w: line needs an x axis and a numeric series", errRoles)
	}
	if len(b.roles.Categorical) > 0 {
		s.Color = b.roles.Categorical[0]
	}
	return b.prepare(s, []string{s.X, s.Color}, true)
}

func (b *builder) pie() (*Spec, error) {
	cats, nums := b.roles.Categorical, b.roles.Numeric
	if len(cats) == 0 || len(nums) == 0 {
		return nil, fmt.Errorf("%w: pie needs a categorical and a numeric column", errRoles)
	}
	s := &Spec{Type: Pie, Y: nums[:1]}
	keys := []string{cats[0]}
	if len(cats) > 1 {
		s.Path = append([]string(nil), cats...)
		keys = s.Path
	} else {
		s.Names = cats[0]
	}
	return b.prepare(s, keys, false)
}

func (b *builder) scatter() (*Spec, error) {
	nums := b.roles.Numeric
	if len(nums) < 2 {
		return nil, fmt.Errorf("%w: scatter needs two numeric columns", errRoles)
	}
	s := &Spec{Type: Scatter, X: nums[0], Y: nums[1:2]}
	if len(b.roles.Categorical) > 0 {
		s.Color = b.roles.Categorical[0]
	}
	if len(nums) > 2 {
		s.Size = nums[2]
	}
	return b.prepare(s, nil, false)
}

func (b *builder) histogram() (*Spec, error) {
	nums := b.roles.Numeric
	if len(nums) == 0 {
		return nil, fmt.Errorf("%w: histogram needs a numeric column", errRoles)
	}
	s := &Spec{Type: Histogram, X: nums[0]}
	if len(b.roles.Categorical) > 0 {
		s.Color = b.roles.Categorical[0]
	}
	return b.prepare(s, nil, false)
}

func (b *builder) heatmap() (*Spec, error) {
	cats, nums := b.roles.Categorical, b.roles.Numeric
	switch {
	case len(cats) >= 2 && len(nums) >= 1:
		s := &Spec{Type: Heatmap, Index: cats[0], X: cats[1], Y: nums[:1]}
		frame, dup, err := b.t.GroupSum([]string{s.Index, s.X}, s.Y)
		if err != nil {
			return nil, err
		}
		if dup {
			s.Aggregation = &Aggregation{GroupBy: []string{s.Index, s.X}, Reducer: ReducerSum}
		}
		s.Matrix = pivot(frame)
		s.Frame = frame
		s.Title = title(Heatmap, s.X, s.Y) + " and " + s.Index
		return s, nil
	case len(nums) >= 3:
		s := &Spec{Type: Heatmap, Y: nums}
		frame, err := b.t.Select(nums...)
		if err != nil {
			return nil, err
		}
		s.Matrix = correlationMatrix(frame)
		s.Frame = frame
		s.Title = "Correlation of " + strings.Join(nums, ", ")
		return s, nil
	}
	return nil, fmt.Errorf("%w: heatmap needs two categorical columns and a numeric column, or three numeric columns", errRoles)
}

// prepare fills Frame with the referenced columns, summing y values over
// repeated keys unless the SQL already aggregated, and sorts by x for lines.
func (b *builder) prepare(s *Spec, keys []string, sortByX bool) (*Spec, error) {
	frame, err := b.t.Select(s.Columns()...)
	if err != nil {
		return nil, err
	}
	var groupBy []string
	for _, k := range keys {
		if k != "" {
			groupBy = append(groupBy, k)
		}
	}
	if len(groupBy) > 0 && len(s.Y) > 0 && !b.preAggregated {
		agg, dup, err := b.t.GroupSum(groupBy, s.Y)
		if err != nil {
			return nil, err
		}
		if dup {
			frame = agg
			s.Aggregation = &Aggregation{GroupBy: groupBy, Reducer: ReducerSum}
		}
	}
	if sortByX {
		if frame, err = frame.SortedBy(s.X); err != nil {
			return nil, err
		}
	}
	s.Frame = frame
	x := s.X
	if x == "" {
		x = s.Names
	}
	if x == "" && len(s.Path) > 0 {
		x = strings.Join(s.Path, " / ")
	}
	s.Title = title(s.Type, x, s.Y)
	return s, nil
}

// namedNumeric returns the numeric column the hint annotation mentions, if
// any. The longest matching name wins.
func (b *builder) namedNumeric() string {
	ann := strings.ToLower(b.annotation)
	if ann == "" {
		return ""
	}
	best := ""
	for _, n := range b.roles.Numeric {
		if strings.Contains(ann, strings.ToLower(n)) && len(n) > len(best) {
			best = n
		}
	}
	return best
}
