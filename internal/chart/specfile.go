package chart

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoSpecs is returned when a spec file holds no chart objects.
var ErrNoSpecs = errors.New("no chart specifications found")

// ReadSpecs decodes a JSON or YAML spec file. The document is either a list
// of spec objects or a mapping with a "specs" list, as written by generate.
func ReadSpecs(data []byte) ([]Candidate, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode spec file: %w", err)
	}
	if m, ok := doc.(map[string]any); ok {
		doc = m["specs"]
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, ErrNoSpecs
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
	if len(out) == 0 {
		return nil, ErrNoSpecs
	}
	return out, nil
}
