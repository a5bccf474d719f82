package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readXLSX returns the header and data rows of one worksheet. When sheet is
// empty the 1-based index is used, defaulting to the first sheet.
func readXLSX(path, sheet string, index, maxRows int) ([]string, [][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := workbook{
		sheets: parseWorkbookSheets(zipEntry(zr, "xl/workbook.xml")),
		rels:   parseRelationships(zipEntry(zr, "xl/_rels/workbook.xml.rels")),
	}
	target, err := wb.resolve(sheet, index)
	if err != nil {
		return nil, nil, fmt.Errorf("%w in workbook '%s'", err, filepath.Base(path))
	}
	rows := newRowScanner(zipEntry(zr, target), parseSharedStrings(zipEntry(zr, "xl/sharedStrings.xml")))
	header, ok := rows.Next()
	if !ok {
		return nil, nil, nil
	}
	var recs [][]string
	for {
		if maxRows > 0 && len(recs) >= maxRows {
			break
		}
		row, ok := rows.Next()
		if !ok {
			break
		}
		recs = append(recs, row)
	}
	return header, recs, nil
}

type sheetEntry struct {
	Name    string
	SheetID int
	RID     string
}

type workbook struct {
	sheets []sheetEntry
	rels   map[string]string
}

// resolve maps a sheet name or 1-based index to its part path inside the zip.
func (wb workbook) resolve(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		names := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("sheet '%s' not found (available: %s)", name, strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == index {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
}

func parseWorkbookSheets(data []byte) []sheetEntry {
	var out []sheetEntry
	walkXML(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		var s sheetEntry
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiPrefix(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

// parseRelationships returns relationship id -> target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	walkXML(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func walkXML(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func zipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inText {
				buf.Write(se)
			}
		}
	}
}

// rowScanner streams rows of a worksheet part as strings.
type rowScanner struct {
	dec    *xml.Decoder
	shared []string
}

func newRowScanner(data []byte, shared []string) *rowScanner {
	return &rowScanner{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *rowScanner) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			col := len(row)
			if c := columnFromRef(ref); c >= 0 {
				col = c
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = r.cellValue(typ)
		case xml.EndElement:
			if inRow && se.Name.Local == "row" {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to the end of the current <c> element.
func (r *rowScanner) cellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, err := r.dec.Token()
					if err != nil {
						break
					}
					if end, ok := tk.(xml.EndElement); ok && (end.Name.Local == "v" || end.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val = sb.String()
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			if typ == "s" {
				i := atoiPrefix(val)
				if i >= 0 && i < len(r.shared) {
					return r.shared[i]
				}
				return ""
			}
			return val
		}
	}
}

// columnFromRef turns a cell reference like "C12" into a 0-based column.
func columnFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiPrefix(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets such as
// "/xl/worksheets/sheet1.xml" or "worksheets/sheet1.xml" into zip entry names.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return "xl/" + rel
}
