package insight

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/querylens/internal/stats"
	"github.com/KaramelBytes/querylens/internal/table"
)

var (
	groupByClause = regexp.MustCompile(`(?is)\bgroup\s+by\s+(.+?)\s*(?:\b(?:having|order\s+by|limit|offset|fetch|union|window)\b|;|$)`)
	orderByClause = regexp.MustCompile(`(?is)\border\s+by\s+(.+?)\s*(?:\b(?:limit|offset|fetch|union)\b|;|$)`)
	limitClause   = regexp.MustCompile(`(?i)\blimit\s+(\d+)`)
	topClause     = regexp.MustCompile(`(?i)\bselect\s+(?:distinct\s+)?top\s*\(?\s*(\d+)`)

	byWord      = regexp.MustCompile(`\bby\s+(\w+)`)
	topWord     = regexp.MustCompile(`(?i)\btop(?:\d+|most)?\b`)
	averageWord = regexp.MustCompile(`(?i)\b(?:averages?|means?)\b`)
)

var timeUnits = map[string]string{
	"day": "day", "days": "day",
	"week": "week", "weeks": "week",
	"month": "month", "months": "month",
	"year": "year", "years": "year",
}

var errNoRows = errors.New("no rows")

// sqlPhase names the GROUP BY, ORDER BY and LIMIT (or TOP) clauses of the
// executed statement.
func sqlPhase(in *input) ([]string, error) {
	if strings.TrimSpace(in.sql) == "" {
		return nil, nil
	}
	outer := outermost(in.sql)
	clause := func(re *regexp.Regexp) (string, bool) {
		loc := re.FindStringSubmatchIndex(outer)
		if loc == nil {
			return "", false
		}
		return in.sql[loc[2]:loc[3]], true
	}
	var out []string
	if m, ok := clause(groupByClause); ok {
		if cols := splitList(m); len(cols) > 0 {
			out = append(out, fmt.Sprintf("The data is grouped by %s.", strings.Join(cols, ", ")))
		}
	}
	if m, ok := clause(orderByClause); ok {
		items := splitList(m)
		for i, item := range items {
			items[i] = orderItem(item)
		}
		if len(items) > 0 {
			out = append(out, fmt.Sprintf("The results are sorted by %s.", strings.Join(items, ", ")))
		}
	}
	n, ok := clause(limitClause)
	if !ok {
		n, ok = clause(topClause)
	}
	if ok {
		out = append(out, fmt.Sprintf("The query returns up to %s rows.", n))
	}
	return out, nil
}

// outermost blanks everything but digits inside parentheses so clause
// patterns only see the top-level query. Byte offsets are preserved.
func outermost(sql string) string {
	b := []byte(sql)
	depth := 0
	for i, c := range b {
		switch {
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case depth > 0 && (c < '0' || c > '9'):
			b[i] = '_'
		}
	}
	return string(b)
}

// splitList splits a clause on commas outside parentheses.
func splitList(s string) []string {
	var out []string
	depth, start := 0, 0
	flush := func(end int) {
		if part := strings.Join(strings.Fields(s[start:end]), " "); part != "" {
			out = append(out, part)
		}
	}
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return out
}

func orderItem(item string) string {
	fields := strings.Fields(item)
	if len(fields) < 2 {
		return item
	}
	head := strings.Join(fields[:len(fields)-1], " ")
	switch strings.ToUpper(fields[len(fields)-1]) {
	case "DESC":
		return head + " (descending)"
	case "ASC":
		return head + " (ascending)"
	}
	return item
}

// groupingPhase reacts to "by <word>" in the question: a time unit regroups
// the rows into periods, anything else is taken as a column to group on.
func groupingPhase(in *input) ([]string, error) {
	m := byWord.FindStringSubmatch(strings.ToLower(in.question))
	if m == nil {
		return nil, nil
	}
	if unit, ok := timeUnits[m[1]]; ok {
		return periodChanges(in, unit)
	}
	return groupSpread(in, m[1])
}

type period struct {
	start time.Time
	label string
	sums  []float64
}

func periodOf(ts time.Time, unit string) (time.Time, string) {
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	switch unit {
	case "week":
		monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		return monday, monday.Format("2006-01-02") + "/" + monday.AddDate(0, 0, 6).Format("2006-01-02")
	case "month":
		first := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location())
		return first, first.Format("2006-01")
	case "year":
		first := time.Date(ts.Year(), 1, 1, 0, 0, 0, 0, ts.Location())
		return first, first.Format("2006")
	}
	return day, day.Format("2006-01-02")
}

// periodChanges sums numeric columns per period of the first column and
// reports the mean and the largest period-over-period change.
func periodChanges(in *input, unit string) ([]string, error) {
	t := in.t
	if t.Len() == 0 || t.Width() == 0 {
		return nil, errNoRows
	}
	first := t.Names()[0]
	var values []int
	for _, name := range in.roles.Numeric {
		if name != first {
			values = append(values, t.Index(name))
		}
	}

	byLabel := map[string]*period{}
	var periods []*period
	for i := 0; i < t.Len(); i++ {
		ts, ok := t.Time(i, 0)
		if !ok {
			if t.Value(i, 0) == nil {
				continue
			}
			label := t.Label(i, 0)
			if ts, ok = table.ParseTime(label, time.UTC); !ok {
				return nil, fmt.Errorf("column %q: %q is not a date", first, label)
			}
		}
		start, label := periodOf(ts, unit)
		p, ok := byLabel[label]
		if !ok {
			p = &period{start: start, label: label, sums: make([]float64, len(values))}
			byLabel[label] = p
			periods = append(periods, p)
		}
		for n, c := range values {
			if f, ok := t.Float(i, c); ok {
				p.sums[n] += f
			}
		}
	}
	sort.SliceStable(periods, func(a, b int) bool { return periods[a].start.Before(periods[b].start) })

	var out []string
	for n, c := range values {
		name := t.Names()[c]
		series := make([]float64, len(periods))
		for i, p := range periods {
			series[i] = p.sums[n]
		}
		changes := stats.PctChange(series)
		avg, ok := stats.FiniteMean(changes)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("On average, %s changes by %.2f%% per %s.", name, avg*100, unit))

		best := -1
		for i, ch := range changes {
			if math.IsNaN(ch) || math.IsInf(ch, 0) || math.Abs(ch)*100 <= SignificantChangePct {
				continue
			}
			if best < 0 || math.Abs(ch) > math.Abs(changes[best]) {
				best = i
			}
		}
		if best > 0 {
			direction := "increase"
			if changes[best] < 0 {
				direction = "decrease"
			}
			out = append(out, fmt.Sprintf("The most significant %s in %s was %.2f%% between %s and %s.",
				direction, name, math.Abs(changes[best])*100, periods[best-1].label, periods[best].label))
		}
	}
	return out, nil
}

// groupSpread sums numeric columns per value of the named column and reports
// the spread between the highest and lowest group.
func groupSpread(in *input, word string) ([]string, error) {
	t := in.t
	col, ok := t.Lookup(word)
	if !ok {
		col, ok = t.Lookup(strings.TrimSuffix(word, "s"))
	}
	if !ok {
		return nil, fmt.Errorf("no column named %q", word)
	}
	var values []string
	for _, name := range in.roles.Numeric {
		if name != col.Name {
			values = append(values, name)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	grouped, _, err := t.GroupSum([]string{col.Name}, values)
	if err != nil {
		return nil, err
	}
	if grouped, err = grouped.SortedBy(col.Name); err != nil {
		return nil, err
	}
	if grouped.Len() == 0 {
		return nil, errNoRows
	}

	var out []string
	for n, name := range values {
		sums := make([]float64, grouped.Len())
		for i := range sums {
			sums[i], _ = grouped.Float(i, n+1)
		}
		hi, lo := stats.MaxIndex(sums), stats.MinIndex(sums)
		if sums[lo] != 0 {
			out = append(out, fmt.Sprintf("The difference between the highest and lowest %s across %s is %.2f%%.",
				name, plural(col.Name), (sums[hi]-sums[lo])/sums[lo]*100))
		}
		out = append(out, fmt.Sprintf("'%s' leads in %s, while '%s' has the lowest value.",
			grouped.Label(hi, 0), name, grouped.Label(lo, 0)))
	}
	return out, nil
}

// temporalPhase reports the covered span, strong trends against time and
// month-of-year seasonality.
func temporalPhase(in *input) ([]string, error) {
	if len(in.roles.Temporal) == 0 {
		return nil, nil
	}
	t := in.t
	tc := t.Index(in.roles.Temporal[0])
	var lo, hi time.Time
	seen := false
	for i := 0; i < t.Len(); i++ {
		ts, ok := t.Time(i, tc)
		if !ok {
			continue
		}
		if !seen || ts.Before(lo) {
			lo = ts
		}
		if !seen || ts.After(hi) {
			hi = ts
		}
		seen = true
	}
	if !seen {
		return nil, nil
	}
	out := []string{fmt.Sprintf("The data covers a period of %d days.", int(hi.Sub(lo).Hours()/24))}

	nums := numericIndexes(in)
	for _, c := range nums {
		var xs, ys []float64
		for i := 0; i < t.Len(); i++ {
			ts, okT := t.Time(i, tc)
			v, okV := t.Float(i, c)
			if okT && okV {
				xs = append(xs, float64(ts.Unix()))
				ys = append(ys, v)
			}
		}
		r, ok := stats.Correlation(xs, ys)
		if !ok || math.Abs(r) <= StrongCorrelation {
			continue
		}
		trend := "upward"
		if r < 0 {
			trend = "downward"
		}
		out = append(out, fmt.Sprintf("There's a strong %s trend for %s over time.", trend, t.Names()[c]))
	}

	if t.Len() < MinSeasonalRows {
		return out, nil
	}
	for _, c := range nums {
		var sum [13]float64
		var count [13]int
		for i := 0; i < t.Len(); i++ {
			ts, okT := t.Time(i, tc)
			v, okV := t.Float(i, c)
			if okT && okV {
				sum[ts.Month()] += v
				count[ts.Month()]++
			}
		}
		peak, minMean, maxMean := 0, math.Inf(1), math.Inf(-1)
		for m := 1; m <= 12; m++ {
			if count[m] == 0 {
				continue
			}
			mean := sum[m] / float64(count[m])
			if mean > maxMean {
				maxMean, peak = mean, m
			}
			minMean = math.Min(minMean, mean)
		}
		if peak == 0 || minMean <= 0 || maxMean/minMean <= SeasonalityRatio {
			continue
		}
		out = append(out, fmt.Sprintf("%s shows seasonal patterns with peaks typically in %s.", t.Names()[c], time.Month(peak)))
	}
	return out, nil
}

// distributionPhase flags skew and IQR outliers in numeric columns with
// enough distinct values.
func distributionPhase(in *input) ([]string, error) {
	var out []string
	for _, c := range numericIndexes(in) {
		if in.t.Distinct(c) <= MinDistinctForShape {
			continue
		}
		name := in.t.Names()[c]
		xs := in.t.Floats(c)
		if skew, ok := stats.Skew(xs); ok && math.Abs(skew) > SkewThreshold {
			direction := "higher"
			if skew < 0 {
				direction = "lower"
			}
			out = append(out, fmt.Sprintf("The distribution of %s is skewed, with more %s values than expected.", name, direction))
		}
		if n := stats.IQROutliers(xs, OutlierIQR); n > 0 {
			out = append(out, fmt.Sprintf("There are %d potential outliers in %s, which may warrant further investigation.", n, name))
		}
	}
	return out, nil
}

func correlationPhase(in *input) ([]string, error) {
	nums := numericIndexes(in)
	var out []string
	for i := range nums {
		for j := i + 1; j < len(nums); j++ {
			x, y := pairedFloats(in.t, nums[i], nums[j])
			r, ok := stats.Correlation(x, y)
			if !ok || math.Abs(r) <= StrongCorrelation {
				continue
			}
			relationship := "strong positive"
			if r < 0 {
				relationship = "strong negative"
			}
			out = append(out, fmt.Sprintf("There's a %s relationship between %s and %s.",
				relationship, in.t.Names()[nums[i]], in.t.Names()[nums[j]]))
		}
	}
	return out, nil
}

// questionPhase answers "top" and "average"/"mean" questions directly.
func questionPhase(in *input) ([]string, error) {
	t := in.t
	nums := numericIndexes(in)
	var out []string
	if topWord.MatchString(in.question) && t.Len() > 1 && len(nums) > 0 {
		label, val := labelIndex(in), nums[0]
		if label < 0 {
			label = 0
		}
		if v, ok := t.Float(0, val); ok {
			out = append(out, fmt.Sprintf("'%s' stands out as the leader, with a %s of %.2f.", t.Label(0, label), t.Names()[val], v))
		}
		if t.Len() >= 3 {
			total := stats.Sum(t.Floats(val))
			var head float64
			for i := 0; i < 3; i++ {
				if v, ok := t.Float(i, val); ok {
					head += v
				}
			}
			if total != 0 {
				out = append(out, fmt.Sprintf("The top three contenders command %.2f%% of the total, highlighting a concentration at the top.", head/total*100))
			}
		}
	}
	if averageWord.MatchString(in.question) {
		for _, c := range nums {
			xs := t.Floats(c)
			if len(xs) == 0 {
				continue
			}
			name := t.Names()[c]
			mean := stats.Mean(xs)
			out = append(out, fmt.Sprintf("On average, %s stands at %.2f.", name, mean))
			if t.Len() > 1 {
				above := 0
				for _, v := range xs {
					if v > mean {
						above++
					}
				}
				out = append(out, fmt.Sprintf("%d items outperform the average %s, suggesting room for improvement in others.", above, name))
			}
		}
	}
	return out, nil
}

// overallPhase compares the first and last value of the first numeric
// column when the result is a time series.
func overallPhase(in *input) ([]string, error) {
	if len(in.roles.Temporal) == 0 || len(in.roles.Numeric) == 0 {
		return nil, nil
	}
	name := in.roles.Numeric[0]
	xs := in.t.Floats(in.t.Index(name))
	if len(xs) < 2 {
		return nil, nil
	}
	first, last := xs[0], xs[len(xs)-1]
	if first == 0 {
		return nil, fmt.Errorf("%s starts at zero", name)
	}
	change := (last - first) / first * 100
	if change == 0 {
		return []string{fmt.Sprintf("%s shows no net change from start to finish (0.00%%).", name)}, nil
	}
	trend := "growth"
	if change < 0 {
		trend = "decline"
	}
	return []string{fmt.Sprintf("We're seeing a %s trend in %s, with a %.2f%% change from start to finish.", trend, name, math.Abs(change))}, nil
}

func numericIndexes(in *input) []int {
	out := make([]int, 0, len(in.roles.Numeric))
	for _, name := range in.roles.Numeric {
		out = append(out, in.t.Index(name))
	}
	return out
}

// labelIndex is the first categorical column, else the first temporal one,
// or -1.
func labelIndex(in *input) int {
	if len(in.roles.Categorical) > 0 {
		return in.t.Index(in.roles.Categorical[0])
	}
	if len(in.roles.Temporal) > 0 {
		return in.t.Index(in.roles.Temporal[0])
	}
	return -1
}

func pairedFloats(t *table.Table, a, b int) ([]float64, []float64) {
	var x, y []float64
	for i := 0; i < t.Len(); i++ {
		fa, okA := t.Float(i, a)
		fb, okB := t.Float(i, b)
		if okA && okB {
			x = append(x, fa)
			y = append(y, fb)
		}
	}
	return x, y
}

func plural(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + "es"
	case len(lower) > 1 && strings.HasSuffix(lower, "y") && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return word[:len(word)-1] + "ies"
	}
	return word + "s"
}
