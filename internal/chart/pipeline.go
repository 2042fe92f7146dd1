package chart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
)

const tracerName = "github.com/KaramelBytes/chartloom-cli/internal/chart"

// Source records where the specs of a Result came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceMixed    Source = "mixed"
)

// Request is one generation request.
type Request struct {
	Problem string
	Table   *analysis.Table
	Config  Config
}

// Result is the outcome of a generation request.
type Result struct {
	RunID     string
	Specs     []Spec
	Source    Source
	Requested int
	// FallbackReason is set when the model path failed.
	FallbackReason string
	// ModelErr is the error that diverted the model path, if any.
	ModelErr       error
	Prompt         string
	Descriptor     string
	// Raw is the model's unparsed reply, when there was one.
	Raw   string
	Model string
	Usage ai.Usage
}

// Short reports whether the data could not support the requested count.
func (r *Result) Short() bool { return len(r.Specs) < r.Requested }

// Generator runs the spec pipeline: describe, prompt, model call, parse,
// strict normalization, completion and fallback.
type Generator struct {
	runtime ai.Runtime
	logger  *zap.Logger
	tracer  trace.Tracer
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTracer sets the tracer used for pipeline spans.
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) {
		if t != nil {
			g.tracer = t
		}
	}
}

// NewGenerator creates a Generator. A nil runtime means every request is
// served by the fallback generator.
func NewGenerator(rt ai.Runtime, opts ...Option) *Generator {
	g := &Generator{runtime: rt, logger: zap.NewNop(), tracer: otel.Tracer(tracerName)}
	for _, o := range opts {
		o(g)
	}
	return g
}

type prepared struct {
	cfg        Config
	count      int
	allowed    []ChartType
	norm       Normalizer
	descriptor string
	prompt     string
}

func (g *Generator) prepare(req Request) (*prepared, error) {
	if strings.TrimSpace(req.Problem) == "" {
		return nil, ErrEmptyProblem
	}
	if req.Table.Empty() {
		return nil, ErrEmptyDataset
	}
	cfg := req.Config
	n := cfg.Count
	if n == 0 {
		n = DefaultCount
	}
	if n < DefaultCount {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	cfg.Count = n
	for _, t := range cfg.AllowedTypes {
		if !contains(AllTypes, t) {
			return nil, &UnsupportedChartTypeError{Type: string(t), Allowed: AllTypes}
		}
	}
	allowed, explicit := cfg.Allowed()
	descriptor := analysis.Describe(req.Table, analysis.DefaultDescribeOptions()).Markdown()
	return &prepared{
		cfg:        cfg,
		count:      n,
		allowed:    allowed,
		norm:       NewNormalizer(req.Table, cfg),
		descriptor: descriptor,
		prompt: BuildPrompt(PromptInput{
			Problem:         req.Problem,
			Descriptor:      descriptor,
			Allowed:         allowed,
			Explicit:        explicit,
			Count:           n,
			AllowDuplicates: cfg.AllowDuplicates,
		}),
	}, nil
}

// Prompt validates req and returns the prompt that Generate would send.
func (g *Generator) Prompt(req Request) (string, error) {
	p, err := g.prepare(req)
	if err != nil {
		return "", err
	}
	return p.prompt, nil
}

// Generate produces up to Config.Count validated specs. Model failures
// never fail the call; they divert to the fallback generator. Only an
// empty problem, an empty dataset or a bad configuration return an error.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := g.tracer.Start(ctx, "chart.Generate")
	defer span.End()

	p, err := g.prepare(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res := &Result{
		RunID:      uuid.NewString(),
		Requested:  p.count,
		Prompt:     p.prompt,
		Descriptor: p.descriptor,
		Model:      p.cfg.Model,
	}
	log := g.logger.With(zap.String("run_id", res.RunID))
	span.SetAttributes(
		attribute.String("chart.run_id", res.RunID),
		attribute.Int("chart.requested", p.count),
		attribute.Int("dataset.rows", req.Table.Rows),
		attribute.Int("dataset.columns", len(req.Table.Columns)),
	)

	modelSpecs, err := g.fromModel(ctx, p, res)
	if err != nil {
		res.FallbackReason = err.Error()
		res.ModelErr = err
		modelSpecs = nil
		if g.runtime == nil {
			log.Debug("no model runtime; using fallback")
		} else {
			log.Warn("model path failed; using fallback", zap.Error(err))
		}
	}

	_, fspan := g.tracer.Start(ctx, "chart.complete")
	res.Specs = Complete(modelSpecs, p.count, CompleteOptions{
		Table:           req.Table,
		Allowed:         p.allowed,
		AllowDuplicates: p.cfg.AllowDuplicates,
		Normalizer:      p.norm,
	})
	fspan.SetAttributes(attribute.Int("chart.specs", len(res.Specs)))
	fspan.End()

	kept := len(modelSpecs)
	if !p.cfg.AllowDuplicates {
		kept = len(Dedupe(modelSpecs))
	}
	if kept > len(res.Specs) {
		kept = len(res.Specs)
	}
	switch {
	case kept == 0:
		res.Source = SourceFallback
	case kept == len(res.Specs):
		res.Source = SourceModel
	default:
		res.Source = SourceMixed
	}
	if res.FallbackReason == "" && res.Source != SourceModel {
		res.FallbackReason = fmt.Sprintf("model supplied %d of %d charts", kept, p.count)
	}
	span.SetAttributes(attribute.String("chart.source", string(res.Source)), attribute.Int("chart.specs", len(res.Specs)))
	log.Info("generated chart specs",
		zap.String("source", string(res.Source)),
		zap.Int("specs", len(res.Specs)),
		zap.Int("requested", p.count),
	)
	if res.Short() {
		log.Warn("dataset supports fewer charts than requested", zap.Int("specs", len(res.Specs)), zap.Int("requested", p.count))
	}
	return res, nil
}

// fromModel runs the model path. Any error means the whole model output is discarded.
func (g *Generator) fromModel(ctx context.Context, p *prepared, res *Result) ([]Spec, error) {
	if g.runtime == nil {
		return nil, &ModelError{Err: errors.New("no model runtime configured")}
	}
	ctx, span := g.tracer.Start(ctx, "chart.model", trace.WithAttributes(attribute.String("ai.model", p.cfg.Model)))
	defer span.End()
	fail := func(err error) ([]Spec, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	timeout := p.cfg.ModelTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	resp, err := g.runtime.Generate(mctx, ai.GenerateRequest{
		Model: p.cfg.Model,
		Messages: []ai.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: p.prompt},
		},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: ai.Float(p.cfg.Temperature),
	})
	g.logger.Debug("model call finished", zap.Duration("latency", time.Since(start)), zap.Error(err))
	if err != nil {
		if mctx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("model call exceeded %s: %w", timeout, err)
		}
		return fail(&ModelError{Err: err})
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return fail(&ModelError{Err: errors.New("empty response")})
	}
	res.Raw = resp.Choices[0].Message.Content
	res.Usage = resp.Usage

	cands, err := ParseResponse(res.Raw)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.Int("chart.candidates", len(cands)))
	specs := make([]Spec, 0, len(cands))
	for _, c := range cands {
		s, err := p.norm.Normalize(c, Strict)
		if err != nil {
			return fail(err)
		}
		if !s.Valid() {
			g.logger.Debug("dropping invalid spec", zap.String("title", s.Title), zap.String("reason", s.Reason))
			continue
		}
		specs = append(specs, s)
	}
	return specs, nil
}
