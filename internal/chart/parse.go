package chart

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

// ParseResponse extracts candidate specs from model text. Text holding a
// JSON array of objects is decoded as JSON; anything else is read line by
// line, so brackets inside a title do not count. Only an array that fails
// to decode is an error.
func ParseResponse(text string) ([]Candidate, error) {
	body := stripCodeFences(text)
	start := arrayStart(body)
	end := strings.LastIndex(body, "]")
	if start >= 0 && end > start {
		return ParseBracketed(body[start : end+1])
	}
	return ParseLines(body), nil
}

// arrayStart returns the index of the first "[" whose next non-space
// character is "{" or "]", or -1.
func arrayStart(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' {
			continue
		}
		rest := strings.TrimLeft(s[i+1:], " \t\r\n")
		if strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "]") {
			return i
		}
	}
	return -1
}

// ParseBracketed decodes a JSON array of objects.
func ParseBracketed(raw string) ([]Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, &MalformedOutputError{Snippet: snippet(raw), Err: err}
	}
	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c := Candidate{}
		for k, v := range obj {
			c[strings.ToLower(strings.TrimSpace(k))] = cleanValue(v)
		}
		out = append(out, c)
	}
	return out, nil
}

var specKeys = `type|x|y|hue|title|justification|bins|orientation|palette`

var (
	keyRe    = regexp.MustCompile(`(?i)(?:^|,)\s*["']?(` + specKeys + `)["']?\s*[:=]`)
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)
)

// ParseLines reads "key: value, key: value" lines. A comma only separates
// fields when it precedes a recognized key, so values may contain commas.
// Lines without a type are ignored.
func ParseLines(text string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, "{}")
		if line == "" {
			continue
		}
		locs := keyRe.FindAllStringSubmatchIndex(line, -1)
		if len(locs) == 0 {
			continue
		}
		c := Candidate{}
		for i, loc := range locs {
			key := strings.ToLower(line[loc[2]:loc[3]])
			end := len(line)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			val := strings.TrimSpace(line[loc[1]:end])
			val = strings.TrimSpace(strings.TrimSuffix(val, ","))
			val = strings.Trim(val, `"'`)
			c[key] = cleanValue(val)
		}
		if t, ok := c["type"]; !ok || t == nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsNullToken reports whether s spells an absent value.
func IsNullToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "n/a", "nil", `""`, "''":
		return true
	}
	return false
}

func cleanValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if IsNullToken(s) {
		return nil
	}
	return strings.TrimSpace(s)
}

func stripCodeFences(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

func snippet(s string) string {
	return utils.Ellipsize(strings.Join(strings.Fields(s), " "), 60)
}
