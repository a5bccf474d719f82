package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseOptions controls how raw text cells are typed.
type ParseOptions struct {
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Location used for timestamps without zone information. Defaults to UTC.
	Location *time.Location
}

var missingTokens = map[string]struct{}{
	"": {}, "null": {}, "NULL": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "None": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// Infer types a header plus string records. A column is integer when every
// present cell is an integer, float when every cell is numeric, temporal
// when every cell is a date or timestamp, categorical otherwise. A column
// with no present cells stays unknown.
func Infer(header []string, records [][]string, opt ParseOptions) (*Table, error) {
	ncol := len(header)
	cols := make([]Column, ncol)
	rows := make([][]any, len(records))
	for i := range rows {
		rows[i] = make([]any, ncol)
	}
	cell := func(r, j int) string {
		if j < len(records[r]) {
			return strings.TrimSpace(records[r][j])
		}
		return ""
	}
	for j := 0; j < ncol; j++ {
		cols[j] = Column{Name: strings.TrimSpace(header[j])}
		present, ints, nums, times := 0, 0, 0, 0
		for r := range records {
			v := cell(r, j)
			if IsMissing(v) {
				continue
			}
			present++
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				ints++
				nums++
				continue
			}
			if _, ok := ParseNumber(v, opt); ok {
				nums++
				continue
			}
			if _, ok := ParseTime(v, opt.Location); ok {
				times++
			}
		}
		switch {
		case present == 0:
			cols[j].Kind = KindUnknown
		case ints == present:
			cols[j].Kind = KindInteger
		case nums == present:
			cols[j].Kind = KindFloat
		case times == present:
			cols[j].Kind = KindTemporal
		default:
			cols[j].Kind = KindCategorical
		}
		for r := range records {
			v := cell(r, j)
			if IsMissing(v) {
				continue
			}
			switch cols[j].Kind {
			case KindInteger, KindFloat:
				f, _ := ParseNumber(v, opt)
				rows[r][j] = f
			case KindTemporal:
				tm, _ := ParseTime(v, opt.Location)
				rows[r][j] = tm
			default:
				rows[r][j] = v
			}
		}
	}
	return New(cols, rows)
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "2006-01", "Jan 2006", "January 2006", "02 Jan 2006", "2 January 2006",
}

// ParseTime parses the date and timestamp layouts commonly found in
// warehouse exports. loc defaults to UTC.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell, tolerating percent signs and locale
// thousands/decimal separators.
func ParseNumber(s string, opt ParseOptions) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
