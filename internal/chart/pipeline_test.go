package chart

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
)

type fakeRuntime struct {
	reply string
	err   error
	block bool
	calls int
	last  ai.GenerateRequest
}

func (f *fakeRuntime) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}},
		Usage:   ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

const pricesCSV = "price,city\n10,Paris\n12,Rome\n9,Paris\n15,Oslo\n"

func TestGenerateModelSuccess(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	rt := &fakeRuntime{reply: "```json\n[" +
		`{"type":"bar","x":"region","y":"sales","hue":null,"title":"Sales by region","justification":"Compare regions."},` +
		`{"type":"scatter","x":"price","y":"units","hue":"region","title":"Price vs units","justification":"Check elasticity."},` +
		`{"type":"histogram","x":"price","y":null,"bins":12,"title":"Price distribution","justification":"Spread."}` +
		"]\n```"}
	cfg := DefaultConfig()
	cfg.Model = "test-model"

	res, err := NewGenerator(rt).Generate(context.Background(), Request{Problem: "what drives sales?", Table: tbl, Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, 1, rt.calls)
	assert.Equal(t, "test-model", rt.last.Model)
	require.NotNil(t, rt.last.Temperature)
	assert.Equal(t, 0.2, *rt.last.Temperature)
	require.Len(t, rt.last.Messages, 2)
	assert.Equal(t, res.Prompt, rt.last.Messages[1].Content)

	assert.Equal(t, SourceModel, res.Source)
	assert.Empty(t, res.FallbackReason)
	assert.NoError(t, res.ModelErr)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 15, res.Usage.TotalTokens)
	require.Len(t, res.Specs, 3)
	assert.Equal(t, "Sales by region", res.Specs[0].Title)
	assert.Equal(t, 12, res.Specs[2].Bins)
	assert.Contains(t, res.Descriptor, "[DATASET SUMMARY]")
	assert.False(t, res.Short())
}

func TestGenerateModelUnavailable(t *testing.T) {
	tbl := loadTable(t, pricesCSV)
	for name, rt := range map[string]ai.Runtime{
		"nil runtime":   nil,
		"runtime error": &fakeRuntime{err: &ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := NewGenerator(rt).Generate(context.Background(), Request{Problem: "compare prices by city", Table: tbl})
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, res.Source)
			assert.NotEmpty(t, res.FallbackReason)
			assert.ErrorIs(t, res.ModelErr, ErrModelUnavailable)
			require.Len(t, res.Specs, 3)
			assert.Equal(t, Signature{Bar, "city", "price"}, res.Specs[0].Signature())
			assert.Len(t, Dedupe(res.Specs), len(res.Specs))
		})
	}
}

func TestGenerateUnknownColumnFallsBack(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	rt := &fakeRuntime{reply: "```json\n[" +
		`{"type":"scatter","x":"price","y":"bogus"},` +
		`{"type":"bar","x":"region","y":"sales"}` +
		"]\n```"}
	res, err := NewGenerator(rt).Generate(context.Background(), Request{Problem: "p", Table: tbl})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "bogus")
	for _, s := range res.Specs {
		assert.NotEqual(t, "bogus", s.X)
		assert.NotEqual(t, "bogus", s.Y)
	}
}

func TestGenerateAcceptsSchemaColumnNames(t *testing.T) {
	tbl := loadTable(t, "region,growth\nnorth,5%\nsouth,7.5%\neast,6%\nwest,4%\n")
	md := analysis.Describe(tbl, analysis.DefaultDescribeOptions()).Markdown()
	var name string
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "- growth") {
			name, _, _ = strings.Cut(strings.TrimPrefix(line, "- "), ":")
		}
	}
	require.Equal(t, "growth", name, md)

	rt := &fakeRuntime{reply: `[` +
		`{"type":"bar","x":"region","y":"` + name + `"},` +
		`{"type":"histogram","x":"` + name + `"},` +
		`{"type":"count","x":"region"}]`}
	res, err := NewGenerator(rt).Generate(context.Background(), Request{Problem: "where is growth highest?", Table: tbl})
	require.NoError(t, err)
	assert.Equal(t, SourceModel, res.Source, res.FallbackReason)
	assert.Equal(t, "growth", res.Specs[0].Y)
}

func TestGenerateMalformedFallsBack(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	rt := &fakeRuntime{reply: `[{"type": "bar", oops}]`}
	core, logs := observer.New(zap.WarnLevel)
	res, err := NewGenerator(rt, WithLogger(zap.New(core))).Generate(context.Background(), Request{Problem: "p", Table: tbl})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.Specs, 3)
	assert.Equal(t, 1, logs.FilterMessage("model path failed; using fallback").Len())
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	cfg := DefaultConfig()
	cfg.ModelTimeout = 20 * time.Millisecond
	res, err := NewGenerator(&fakeRuntime{block: true}).Generate(context.Background(), Request{Problem: "p", Table: tbl, Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "exceeded")
	assert.Len(t, res.Specs, 3)
}

func TestGenerateMixedAfterDropAndDedupe(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	rt := &fakeRuntime{reply: `[
		{"type":"bar","x":"region","y":"sales"},
		{"type":"bar","x":"region","y":"sales","title":"again"},
		{"type":"scatter","x":"region","y":"sales"}
	]`}
	res, err := NewGenerator(rt).Generate(context.Background(), Request{Problem: "p", Table: tbl})
	require.NoError(t, err)
	assert.Equal(t, SourceMixed, res.Source)
	require.Len(t, res.Specs, 3)
	assert.Equal(t, Signature{Bar, "region", "sales"}, res.Specs[0].Signature())
	assert.Len(t, Dedupe(res.Specs), 3)
	for _, s := range res.Specs {
		assert.True(t, s.Valid())
	}
}

func TestGenerateShortResult(t *testing.T) {
	tbl := loadTable(t, "a,b\n1,2\n2,4\n3,7\n")
	cfg := DefaultConfig()
	cfg.Count = 5
	res, err := NewGenerator(nil).Generate(context.Background(), Request{Problem: "p", Table: tbl, Config: cfg})
	require.NoError(t, err)
	assert.True(t, res.Short())
	assert.Less(t, len(res.Specs), 5)
	for _, s := range res.Specs {
		assert.NotContains(t, []ChartType{Bar, Boxplot, Heatmap}, s.Type)
	}
}

func TestGenerateExplicitTypes(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	cfg := DefaultConfig()
	cfg.AllowedTypes = []ChartType{Histogram}
	rt := &fakeRuntime{reply: `[{"type":"histogram","x":"sales"},{"type":"bar","x":"region","y":"sales"}]`}
	res, err := NewGenerator(rt).Generate(context.Background(), Request{Problem: "p", Table: tbl, Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "unsupported chart type")
	require.Len(t, res.Specs, 3)
	for _, s := range res.Specs {
		assert.Equal(t, Histogram, s.Type)
	}
	assert.Contains(t, res.Prompt, "Any other type is forbidden")
}

func TestGeneratePreconditions(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	g := NewGenerator(nil)
	ctx := context.Background()

	_, err := g.Generate(ctx, Request{Problem: "  ", Table: tbl})
	assert.ErrorIs(t, err, ErrEmptyProblem)

	_, err = g.Generate(ctx, Request{Problem: "p", Table: loadTable(t, "a,b\n")})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = g.Generate(ctx, Request{Problem: "p"})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = g.Generate(ctx, Request{Problem: "p", Table: tbl, Config: Config{Count: 2}})
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = g.Generate(ctx, Request{Problem: "p", Table: tbl, Config: Config{AllowedTypes: []ChartType{"pie"}}})
	assert.ErrorIs(t, err, ErrUnsupportedChartType)

	res, err := g.Generate(ctx, Request{Problem: "p", Table: tbl, Config: Config{}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Len(t, res.Specs, 3)
}

func TestGenerateCardinality(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	for _, n := range []int{3, 4, 7, 10} {
		cfg := DefaultConfig()
		cfg.Count = n
		res, err := NewGenerator(nil).Generate(context.Background(), Request{Problem: "p", Table: tbl, Config: cfg})
		require.NoError(t, err)
		assert.Len(t, res.Specs, n)
	}
}

func TestPromptMatchesGenerate(t *testing.T) {
	tbl := loadTable(t, salesCSV)
	req := Request{Problem: "p", Table: tbl}
	p, err := NewGenerator(nil).Prompt(req)
	require.NoError(t, err)
	res, err := NewGenerator(nil).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, p, res.Prompt)
}
