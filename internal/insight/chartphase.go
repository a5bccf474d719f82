package insight

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/querylens/internal/chart"
	"github.com/KaramelBytes/querylens/internal/stats"
)

var errNoAxis = errors.New("result has no label column and numeric column")

func chartPhase(in *input) ([]string, error) {
	switch in.chartType {
	case chart.Bar, chart.GroupedBar:
		return barInsights(in)
	case chart.Line:
		return lineInsights(in)
	case chart.Pie:
		return pieInsights(in)
	}
	return nil, nil
}

// descending returns row positions ordered by value, largest first. Ties
// keep row order.
func descending(vals []float64) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] > vals[idx[b]] })
	return idx
}

// labelled collects the rows where the value column is present.
func labelled(in *input, label, val int) ([]string, []float64) {
	var labels []string
	var vals []float64
	for i := 0; i < in.t.Len(); i++ {
		if v, ok := in.t.Float(i, val); ok {
			labels = append(labels, in.t.Label(i, label))
			vals = append(vals, v)
		}
	}
	return labels, vals
}

func variability(cv float64) string {
	switch {
	case cv < CVLow:
		return "low"
	case cv <= CVHigh:
		return "moderate"
	}
	return "high"
}

func barInsights(in *input) ([]string, error) {
	x, nums := labelIndex(in), numericIndexes(in)
	if x < 0 || len(nums) == 0 {
		return nil, errNoAxis
	}
	xName := in.t.Names()[x]
	var out []string
	for _, y := range nums {
		labels, vals := labelled(in, x, y)
		if len(vals) == 0 {
			continue
		}
		hi, lo := stats.MaxIndex(vals), stats.MinIndex(vals)
		out = append(out, fmt.Sprintf("%s leads in %s with %.2f, while %s lags at %.2f.",
			labels[hi], in.t.Names()[y], vals[hi], labels[lo], vals[lo]))
	}

	yName := in.t.Names()[nums[0]]
	_, vals := labelled(in, x, nums[0])
	total := stats.Sum(vals)
	order := descending(vals)

	if len(vals) > TopShareRows && total != 0 {
		var head float64
		for _, i := range order[:TopShareRows] {
			head += vals[i]
		}
		out = append(out, fmt.Sprintf("The top %d %s drive %.2f%% of total %s.", TopShareRows, plural(xName), head/total*100, yName))
	}

	if len(vals) > 1 && total > 0 {
		var cum float64
		for k, i := range order {
			cum += vals[i]
			if cum/total >= ParetoShare {
				out = append(out, fmt.Sprintf("The top %d %s account for 80%% of the total %s, suggesting a Pareto distribution.", k+1, plural(xName), yName))
				break
			}
		}
	}

	if len(vals) > 2 {
		variance, mean := stats.Variance(vals), stats.Mean(vals)
		if mean != 0 && !math.IsNaN(variance) {
			cv := stats.StdDev(vals) / mean
			out = append(out, fmt.Sprintf("There's a variance of %.2f in %s across %s, with a coefficient of variation of %.2f, indicating %s relative variability.",
				variance, yName, plural(xName), cv, variability(cv)))
		}
	}

	if in.chartType == chart.GroupedBar {
		out = append(out, groupLeaders(in, nums[0])...)
	}
	return out, nil
}

// groupLeaders names the best group within each category and the group
// whose rank across categories is steadiest.
func groupLeaders(in *input, val int) []string {
	if len(in.roles.Categorical) < 2 {
		return nil
	}
	t := in.t
	catCol, groupCol := t.Index(in.roles.Categorical[0]), t.Index(in.roles.Categorical[1])
	catName := t.Names()[catCol]

	type cell struct {
		sum   float64
		count int
	}
	means := map[string]map[string]*cell{}
	best := map[string]int{}
	var cats []string
	groupSet := map[string]bool{}
	for i := 0; i < t.Len(); i++ {
		v, ok := t.Float(i, val)
		if !ok {
			continue
		}
		c, g := t.Label(i, catCol), t.Label(i, groupCol)
		if _, seen := means[c]; !seen {
			means[c] = map[string]*cell{}
			cats = append(cats, c)
			best[c] = i
		}
		if cur, _ := t.Float(best[c], val); v > cur {
			best[c] = i
		}
		if means[c][g] == nil {
			means[c][g] = &cell{}
		}
		means[c][g].sum += v
		means[c][g].count++
		groupSet[g] = true
	}
	if len(cats) == 0 {
		return nil
	}
	sort.Strings(cats)

	leaders := make([]string, len(cats))
	for i, c := range cats {
		leaders[i] = c + ": " + t.Label(best[c], groupCol)
	}
	out := []string{fmt.Sprintf("Top performers in each %s: %s.", catName, strings.Join(leaders, ", "))}

	groups := make([]string, 0, len(groupSet))
	for g := range groupSet {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	rankSum := map[string]float64{}
	rankN := map[string]int{}
	for _, c := range cats {
		for g, r := range averageRanks(means[c], func(x *cell) float64 { return x.sum / float64(x.count) }) {
			rankSum[g] += r
			rankN[g]++
		}
	}
	steadiest, bestRank := "", math.Inf(1)
	for _, g := range groups {
		if rankN[g] == 0 {
			continue
		}
		if r := rankSum[g] / float64(rankN[g]); r < bestRank {
			steadiest, bestRank = g, r
		}
	}
	if steadiest != "" {
		out = append(out, fmt.Sprintf("%s shows the most consistent performance across all %s.", steadiest, plural(catName)))
	}
	return out
}

// averageRanks ranks values descending from 1; tied values share the mean
// of the ranks they span.
func averageRanks[T any](m map[string]T, value func(T) float64) map[string]float64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		va, vb := value(m[keys[a]]), value(m[keys[b]])
		if va != vb {
			return va > vb
		}
		return keys[a] < keys[b]
	})
	ranks := make(map[string]float64, len(keys))
	for i := 0; i < len(keys); {
		j := i
		for j+1 < len(keys) && value(m[keys[j+1]]) == value(m[keys[i]]) {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[keys[k]] = r
		}
		i = j + 1
	}
	return ranks
}

func lineInsights(in *input) ([]string, error) {
	t := in.t
	var x string
	switch {
	case len(in.roles.Temporal) > 0:
		x = in.roles.Temporal[0]
	case len(in.roles.Numeric) > 0:
		x = in.roles.Numeric[0]
	}
	var series []int
	for _, name := range in.roles.Numeric {
		if name != x {
			series = append(series, t.Index(name))
		}
	}
	if x == "" || len(series) == 0 {
		return nil, errors.New("line needs an x column and a numeric series")
	}

	window := t.Len() / 4
	if window > MaxVolatilityWindow {
		window = MaxVolatilityWindow
	}
	var out []string
	for _, c := range series {
		name := t.Names()[c]
		ys := t.Floats(c)
		if len(ys) == 0 {
			continue
		}
		start, end := ys[0], ys[len(ys)-1]
		if start != 0 {
			change := (end - start) / start * 100
			switch {
			case change > 0:
				out = append(out, fmt.Sprintf("%s grew by %.2f%% from %.2f to %.2f.", name, change, start, end))
			case change < 0:
				out = append(out, fmt.Sprintf("%s declined by %.2f%% from %.2f to %.2f.", name, -change, start, end))
			default:
				out = append(out, fmt.Sprintf("%s held steady at %.2f.", name, start))
			}
		}
		out = append(out, fmt.Sprintf("%s peaked at %.2f and bottomed at %.2f.", name, ys[stats.MaxIndex(ys)], ys[stats.MinIndex(ys)]))

		if vol, ok := stats.RollingStdMean(ys, window); ok {
			out = append(out, fmt.Sprintf("The average volatility (standard deviation) of %s over time is %.2f.", name, vol))
		}
		if slope, r2, ok := stats.Trend(ys); ok {
			direction := "upward"
			if slope <= 0 {
				direction = "downward"
			}
			out = append(out, fmt.Sprintf("%s shows a %s trend with a strength of %.2f (R-squared).", name, direction, r2))
		}
		if accel, ok := stats.FiniteMean(stats.Diff(stats.PctChange(ys))); ok {
			switch {
			case accel > 0:
				out = append(out, fmt.Sprintf("%s is showing signs of acceleration in its growth rate.", name))
			case accel < 0:
				out = append(out, fmt.Sprintf("%s is showing signs of deceleration in its growth rate.", name))
			}
		}
	}
	return out, nil
}

func pieInsights(in *input) ([]string, error) {
	label, nums := labelIndex(in), numericIndexes(in)
	if label < 0 || len(nums) == 0 {
		return nil, errNoAxis
	}
	valName := in.t.Names()[nums[0]]
	labels, vals := labelled(in, label, nums[0])
	total := stats.Sum(vals)
	if len(vals) == 0 || total == 0 {
		return nil, errors.New("pie values sum to zero")
	}
	order := descending(vals)
	top := order[0]
	out := []string{fmt.Sprintf("'%s' dominates with %.2f%% of the total %s.", labels[top], vals[top]/total*100, valName)}

	if len(vals) > LongTailHead {
		var tail float64
		for _, i := range order[LongTailHead:] {
			tail += vals[i]
		}
		out = append(out, fmt.Sprintf("The smaller categories collectively represent %.2f%% of the total, indicating a long tail distribution.", tail/total*100))
	}

	var hhi float64
	for _, v := range vals {
		share := v / total
		hhi += share * share
	}
	concentration := "highly concentrated"
	switch {
	case hhi < HerfindahlDiverse:
		concentration = "highly diverse"
	case hhi < HerfindahlModerate:
		concentration = "moderately concentrated"
	}
	out = append(out, fmt.Sprintf("The market is %s with a Herfindahl index of %.2f.", concentration, hhi))

	if len(vals) > 1 {
		second := order[1]
		if vals[second] != 0 {
			out = append(out, fmt.Sprintf("The leading category '%s' is %.2f times larger than the second-largest category '%s'.",
				labels[top], vals[top]/vals[second], labels[second]))
		}
	}

	avg := total / float64(len(vals))
	below := 0
	for _, v := range vals {
		if v < avg {
			below++
		}
	}
	if below > 0 {
		out = append(out, fmt.Sprintf("%d categories are performing below the average of %.2f, potentially indicating areas for improvement.", below, avg))
	}
	return out, nil
}
