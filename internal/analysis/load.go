package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyFile is returned when a source has no header row.
	ErrEmptyFile = errors.New("dataset has no header row")
	// ErrUnsupportedFormat is returned for extensions the loader cannot read.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// LoadOptions controls how a dataset file is read and cleaned.
type LoadOptions struct {
	// MaxRows limits rows kept; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, picks '\t' for .tsv and ',' otherwise.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Sheet selects the XLSX worksheet; empty means the first sheet.
	Sheet string
	// DropConstant removes columns holding a single distinct value.
	DropConstant bool
}

// DefaultLoadOptions returns reasonable defaults for dataset loading.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{MaxRows: 100000}
}

// Load reads a CSV/TSV or XLSX file into a cleaned, typed Table.
func Load(path string, opt LoadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		if opt.Delimiter == 0 {
			opt.Delimiter = sniffDelimiter(path)
		}
		return ReadCSV(f, filepath.Base(path), opt)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, opt)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses delimited text from r.
func ReadCSV(r io.Reader, name string, opt LoadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return FromRecords(name, header, rows, opt)
}

// FromRecords builds a Table from a header and raw rows, applying the
// cleaning rules shared by every format: trimmed header names, dropped
// "Unnamed" and fully-empty columns, all-or-nothing numeric coercion.
func FromRecords(name string, header []string, rows [][]string, opt LoadOptions) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyFile
	}
	t := &Table{Name: name, Total: len(rows)}
	keep := len(rows)
	if opt.MaxRows > 0 && keep > opt.MaxRows {
		keep = opt.MaxRows
	}
	t.Rows = keep

	seen := make(map[string]int)
	for j, h := range header {
		colName := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if colName == "" || strings.HasPrefix(strings.ToLower(colName), "unnamed") {
			if colName == "" {
				colName = fmt.Sprintf("column %d", j+1)
			}
			t.Dropped = append(t.Dropped, colName+": unnamed")
			continue
		}
		if n := seen[colName]; n > 0 {
			seen[colName] = n + 1
			colName = fmt.Sprintf("%s.%d", colName, n)
		} else {
			seen[colName] = 1
		}
		col := &Column{Name: colName, Unit: unitOf(colName), Raw: make([]string, keep)}
		for i := 0; i < keep; i++ {
			if j < len(rows[i]) {
				col.Raw[i] = cleanCell(rows[i][j])
			}
		}
		if col.NonNull() == 0 {
			t.Dropped = append(t.Dropped, colName+": empty")
			continue
		}
		classify(col, opt)
		if opt.DropConstant && len(col.Levels()) <= 1 {
			t.Dropped = append(t.Dropped, colName+": constant")
			continue
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

// classify assigns numeric kind only when every present cell parses.
func classify(col *Column, opt LoadOptions) {
	nums := make([]float64, len(col.Raw))
	for i, v := range col.Raw {
		if v == "" {
			nums[i] = math.NaN()
			continue
		}
		x, ok := parseNumeric(v, opt)
		if !ok {
			col.Kind = KindCategorical
			return
		}
		if strings.HasSuffix(v, "%") && col.Unit == "" {
			col.Unit = "%"
		}
		nums[i] = x
	}
	col.Kind = KindNumeric
	col.Nums = nums
}

var missingTokens = map[string]bool{
	"na": true, "n/a": true, "nan": true, "-nan": true, "null": true,
	"none": true, "#n/a": true, "<na>": true,
}

func cleanCell(s string) string {
	v := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if missingTokens[strings.ToLower(v)] {
		return ""
	}
	return v
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func parseNumeric(s string, opt LoadOptions) (float64, bool) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			dec = ','
		default:
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

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^.+?\s*\(([^)]+)\)\s*$`),  // e.g., Alpha (%)
	regexp.MustCompile(`^.+?\s*\[([^\]]+)\]\s*$`), // e.g., Mass [mg/L]
}

// unitOf extracts a unit annotation from a header without renaming the column.
func unitOf(name string) string {
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(name); len(m) == 2 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
