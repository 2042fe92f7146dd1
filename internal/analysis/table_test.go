package analysis

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

var csvRows = []string{
	"Group;Concentration (g/L);Temp (°F);Score;LocaleNumber;Category;Note",
	"A;0,5;70;10,0;1.000,0;alpha;first",
	"A;0,6;71;11,0;1.100,0;alpha;second",
	"A;0,55;69;9,5;0.900,0;beta;third",
	"B;0,7;75;10,5;1.050,0;alpha;fourth",
	"B;0,65;74;9,8;0.980,0;beta;fifth",
	"B;0,68;73;10,2;1.020,0;alpha;sixth",
	"A;0,52;68;8,8;0.880,0;gamma;seventh",
	"B;0,75;76;9,7;0.970,0;beta;eighth",
	"A;3,0;95;50,0;5.000,0;alpha;ninth",
	"B;0,66;72;10,1;1.010,0;gamma;tenth",
}

var (
	processedScore  = []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50}
	processedLocale = []float64{1000, 1100, 900, 1050, 980, 1020, 880, 970, 5000}
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func loadMetrics(t *testing.T) *Table {
	t.Helper()
	path := writeFixture(t, "metrics.csv", strings.Join(csvRows, "\n"))
	opt := DefaultLoadOptions()
	opt.Delimiter = ';'
	opt.MaxRows = 9
	opt.DecimalSeparator = ','
	opt.ThousandsSeparator = '.'
	tbl, err := Load(path, opt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tbl
}

func TestLoadCSVKindsAndLocale(t *testing.T) {
	tbl := loadMetrics(t)
	if tbl.Name != "metrics.csv" {
		t.Fatalf("name = %q", tbl.Name)
	}
	if tbl.Rows != 9 || tbl.Total != 10 {
		t.Fatalf("rows = %d/%d, want 9/10", tbl.Rows, tbl.Total)
	}
	wantNum := []string{"Concentration (g/L)", "Temp (°F)", "Score", "LocaleNumber"}
	if !equalStrings(tbl.NumericColumns(), wantNum) {
		t.Fatalf("numeric = %#v, want %#v", tbl.NumericColumns(), wantNum)
	}
	wantCat := []string{"Group", "Category", "Note"}
	if !equalStrings(tbl.CategoricalColumns(), wantCat) {
		t.Fatalf("categorical = %#v, want %#v", tbl.CategoricalColumns(), wantCat)
	}
	locale, ok := tbl.Lookup("LocaleNumber")
	if !ok {
		t.Fatalf("LocaleNumber missing")
	}
	for i, want := range processedLocale {
		if !almostEqual(locale.Nums[i], want, 1e-9) {
			t.Fatalf("locale[%d] = %f, want %f", i, locale.Nums[i], want)
		}
	}
	conc, _ := tbl.Lookup("concentration (g/l)")
	if conc == nil || conc.Unit != "g/L" {
		t.Fatalf("case-insensitive lookup/unit failed: %#v", conc)
	}
}

func TestLoadCleaning(t *testing.T) {
	body := strings.Join([]string{
		"Unnamed: 0, name ,score,empty,score,const,mixed",
		"0,a,1,,2,k,1",
		"1,b,NaN,,3,k,x",
		"2,c,3,,4,k,2",
	}, "\n")
	path := writeFixture(t, "clean.csv", body)
	opt := DefaultLoadOptions()
	opt.DropConstant = true
	tbl, err := Load(path, opt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"name", "score", "score.1", "mixed"}
	if !equalStrings(tbl.Header(), want) {
		t.Fatalf("header = %#v, want %#v", tbl.Header(), want)
	}
	score, _ := tbl.Lookup("score")
	if !score.IsNumeric() || !math.IsNaN(score.Nums[1]) || len(score.Values()) != 2 {
		t.Fatalf("score column = %#v", score)
	}
	mixed, _ := tbl.Lookup("mixed")
	if mixed.Kind != KindCategorical {
		t.Fatalf("mixed kind = %q, want categorical", mixed.Kind)
	}
	if len(tbl.Dropped) != 3 {
		t.Fatalf("dropped = %#v", tbl.Dropped)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(writeFixture(t, "data.json", "{}"), DefaultLoadOptions()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(writeFixture(t, "empty.csv", ""), DefaultLoadOptions()); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), DefaultLoadOptions()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDescribeAndMarkdown(t *testing.T) {
	tbl := loadMetrics(t)
	opt := DefaultDescribeOptions()
	opt.SampleRows = 3
	rep := Describe(tbl, opt)

	if len(rep.Samples) != 3 {
		t.Fatalf("samples = %d, want 3", len(rep.Samples))
	}
	expectFirst := []string{"A", "0,5", "70", "10,0", "1.000,0", "alpha", "first"}
	if !equalStrings(rep.Samples[0], expectFirst) {
		t.Fatalf("first sample = %#v, want %#v", rep.Samples[0], expectFirst)
	}
	score := columnByName(t, rep, "Score")
	checkStats(t, score, processedScore)
	if score.OutliersCount != 1 {
		t.Fatalf("score outliers = %d, want 1", score.OutliersCount)
	}
	cat := columnByName(t, rep, "Category")
	if cat.Kind != KindCategorical || cat.Unique != 3 {
		t.Fatalf("category = %#v", cat)
	}
	if len(cat.TopValues) == 0 || cat.TopValues[0].Value != "alpha" || cat.TopValues[0].Count != 5 {
		t.Fatalf("category top = %#v", cat.TopValues)
	}
	if rep.Corr == nil || len(rep.Corr.Columns) != 4 {
		t.Fatalf("corr = %#v", rep.Corr)
	}

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: metrics.csv",
		"Rows: ~10 (processed 9)",
		"Columns: 7",
		"- Concentration (g/L): numeric",
		"- Category: categorical (non-null 9, missing 0.0%) - distinct 3",
		"outliers: 1 above |z|>3.5",
		"[CORRELATIONS]",
		"Score ~ LocaleNumber",
		"[HEAD AND SAMPLE ROWS]",
		"processed only 9/10 rows due to MaxRows",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if md != Describe(tbl, opt).Markdown() {
		t.Fatalf("descriptor is not deterministic")
	}
}

func TestMarkdownKeepsExactColumnNames(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("region,growth\nnorth,5%\nsouth,7.5%\n"), "growth.csv", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	md := Describe(tbl, DefaultDescribeOptions()).Markdown()
	if !strings.Contains(md, "- growth: numeric, unit %") {
		t.Fatalf("schema should carry the unit as an attribute:\n%s", md)
	}
	if strings.Contains(md, "growth [%]") {
		t.Fatalf("schema must not rename columns:\n%s", md)
	}
}

func TestMarkdownCutsLongValuesOnRunes(t *testing.T) {
	long := strings.Repeat("ü", 120)
	tbl, err := ReadCSV(strings.NewReader("note,n\n"+long+",1\n"), "notes.csv", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	md := Describe(tbl, DefaultDescribeOptions()).Markdown()
	if !utf8.ValidString(md) {
		t.Fatalf("descriptor holds invalid UTF-8")
	}
	if !strings.Contains(md, strings.Repeat("ü", 77)+"...") {
		t.Fatalf("long sample value not shortened:\n%s", md)
	}
}

func TestDescribeEmptyTable(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b\n"), "empty.csv", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !tbl.Empty() {
		t.Fatalf("expected empty table")
	}
	md := Describe(tbl, DefaultDescribeOptions()).Markdown()
	if !strings.Contains(md, "Rows: 0") {
		t.Fatalf("markdown = %s", md)
	}
	if !strings.Contains(Describe(nil, DefaultDescribeOptions()).Markdown(), "Rows: 0") {
		t.Fatalf("nil table should describe as zero rows")
	}
}

func TestCorrelation(t *testing.T) {
	body := "a,b,c,label\n1,2,5,x\n2,4,3,y\n3,6,4,z\n4,8,1,x\n"
	tbl, err := ReadCSV(strings.NewReader(body), "corr.csv", DefaultLoadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	m := Correlation(tbl, []string{"a", "b", "label", "nope"})
	if !equalStrings(m.Columns, []string{"a", "b"}) {
		t.Fatalf("columns = %#v", m.Columns)
	}
	if !almostEqual(m.Values[0][1], 1, 1e-9) || m.Values[0][1] != m.Values[1][0] {
		t.Fatalf("r(a,b) = %#v", m.Values)
	}
	full := Correlation(tbl, tbl.NumericColumns())
	if full.Values[0][2] >= 0 {
		t.Fatalf("expected negative r(a,c), got %f", full.Values[0][2])
	}
	if top := full.TopPairs(1); len(top) != 1 || top[0].A != "a" || top[0].B != "b" {
		t.Fatalf("top pairs = %#v", top)
	}
}

func TestQuantileAndMAD(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if q := Quantile(vals, 0.5); !almostEqual(q, 2.5, 1e-9) {
		t.Fatalf("median = %f", q)
	}
	med, mad := MedianMAD([]float64{1, 1, 2, 2, 4, 6, 9})
	if med != 2 || mad != 1 {
		t.Fatalf("median/mad = %f/%f", med, mad)
	}
}

func columnByName(t *testing.T, rep *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range rep.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found", name)
	return ColumnSummary{}
}

func checkStats(t *testing.T, c ColumnSummary, vals []float64) {
	t.Helper()
	var w Welford
	for _, v := range vals {
		w.Add(v)
	}
	if c.Kind != KindNumeric {
		t.Fatalf("%s kind = %q", c.Name, c.Kind)
	}
	if !almostEqual(c.Min, w.Min, 1e-9) || !almostEqual(c.Max, w.Max, 1e-9) {
		t.Fatalf("%s range = [%f,%f], want [%f,%f]", c.Name, c.Min, c.Max, w.Min, w.Max)
	}
	if !almostEqual(c.Mean, w.Mean, 1e-9) || !almostEqual(c.Std, w.Std(), 1e-9) {
		t.Fatalf("%s mean/std = %f/%f, want %f/%f", c.Name, c.Mean, c.Std, w.Mean, w.Std())
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
