package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadOptions controls loading a result table from a local file.
type ReadOptions struct {
	ParseOptions
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, chosen from the file extension.
	Delimiter rune
	// Sheet selects an XLSX worksheet by name; SheetIndex (1-based) is used otherwise.
	Sheet      string
	SheetIndex int
}

// ReadFile loads a .csv, .tsv or .xlsx file and infers column types.
func ReadFile(path string, opt ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		header, recs, err := readXLSX(path, opt.Sheet, opt.SheetIndex, opt.MaxRows)
		if err != nil {
			return nil, err
		}
		return Infer(dedupeHeader(header), recs, opt.ParseOptions)
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		if opt.Delimiter == 0 {
			opt.Delimiter = sniffDelimiter(path)
		}
		return ReadCSV(f, opt)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV loads CSV records with a header row.
func ReadCSV(r io.Reader, opt ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil, nil)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = dedupeHeader(header)
	var recs [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(recs)+1, err)
		}
		if opt.MaxRows > 0 && len(recs) >= opt.MaxRows {
			break
		}
		recs = append(recs, rec)
	}
	return Infer(header, recs, opt.ParseOptions)
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// dedupeHeader names blank headers and suffixes repeated ones so the
// resulting table has unique, non-empty column names.
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}
