package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 900}, // heuristic ~ 1 tok ≈ 4 chars
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got < c.min {
			t.Errorf("%s: got %d < min %d", c.name, got, c.min)
		}
	}
}

func TestPromptTokens(t *testing.T) {
	if got := utils.PromptTokens("", "abcdefgh"); got != 6 {
		t.Fatalf("user only: got %d", got)
	}
	if got := utils.PromptTokens("abcdefgh", "abcdefgh"); got != 12 {
		t.Fatalf("system and user: got %d", got)
	}
}

func TestEllipsizeKeepsRunes(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := utils.Ellipsize(long, 80)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 80 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected cut (%d runes): %q", n, got)
	}
	if got := utils.Ellipsize("short", 80); got != "short" {
		t.Fatalf("short text changed: %q", got)
	}
	if got := utils.Ellipsize("€€€€", 2); got != "€€" {
		t.Fatalf("tiny limit: %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Bar - Region vs Sales": "bar_region_vs_sales",
		"  price (EUR) ":        "price_eur",
		"***":                   "chart",
	}
	for in, want := range cases {
		if got := utils.Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeWriteFileCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.svg")
	if err := utils.SafeWriteFile(path, []byte("<svg/>")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "<svg/>" {
		t.Fatalf("unexpected content %q, err %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
