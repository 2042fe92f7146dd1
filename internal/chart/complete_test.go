package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeKeepsFirstSeen(t *testing.T) {
	specs := []Spec{
		{Type: Bar, X: "region", Y: "sales", Title: "first"},
		{Type: Bar, X: "region", Y: "price"},
		{Type: Bar, X: "region", Y: "sales", Title: "second", Hue: "product"},
	}
	out := Dedupe(specs)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "price", out[1].Y)
}

func TestCompleteBackfillsAndTruncates(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	n := Normalizer{Table: tbl, Palette: "muted"}
	opt := CompleteOptions{Table: tbl, Normalizer: n}
	model := []Spec{
		{Type: Scatter, X: "sales", Y: "units", Title: "model"},
		{Type: Scatter, X: "sales", Y: "units", Title: "dup"},
	}

	out := Complete(model, 3, opt)
	require.Len(t, out, 3)
	assert.Equal(t, "model", out[0].Title)
	assert.Equal(t, Signature{Scatter, "sales", "price"}, out[1].Signature())
	assert.Equal(t, Signature{Bar, "region", "sales"}, out[2].Signature())
	assert.Equal(t, "muted", out[1].Palette)

	many := append(Fallback(InventoryOf(tbl), DefaultPool, 6, nil), model...)
	assert.Len(t, Complete(many, 4, opt), 4)
}

func TestCompleteAllowDuplicates(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	model := []Spec{
		{Type: Scatter, X: "sales", Y: "units"},
		{Type: Scatter, X: "sales", Y: "units"},
		{Type: Scatter, X: "sales", Y: "units"},
	}
	out := Complete(model, 3, CompleteOptions{Table: tbl, AllowDuplicates: true, Normalizer: Normalizer{Table: tbl}})
	assert.Len(t, out, 3)

	out = Complete(model, 3, CompleteOptions{Table: tbl, Normalizer: Normalizer{Table: tbl}})
	require.Len(t, out, 3)
	assert.NotEqual(t, out[0].Signature(), out[1].Signature())
}

func TestCompleteRestrictsToAllowed(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	allowed := []ChartType{Histogram, Count}
	out := Complete(nil, 5, CompleteOptions{Table: tbl, Allowed: allowed, Normalizer: Normalizer{Table: tbl, Allowed: allowed}})
	require.Len(t, out, 5)
	seen := map[Signature]bool{}
	for _, s := range out {
		assert.Contains(t, allowed, s.Type)
		assert.False(t, seen[s.Signature()])
		seen[s.Signature()] = true
	}
}

func TestCompleteWithoutTable(t *testing.T) {
	out := Complete([]Spec{{Type: Bar, X: "a", Y: "b"}}, 3, CompleteOptions{})
	assert.Len(t, out, 1)
}
