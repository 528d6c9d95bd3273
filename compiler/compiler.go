// Package compiler lowers a finished scheme onto a hardware profile.
//
// Compilation pipeline:
//  1. Resolve the logical address of every point through the scheme layout
//  2. Analyze structure: dependency levels, cycles, execution order
//  3. Place points on hardware units round robin in identity order
//  4. Emit observation code (currently an empty program)
//
// The pipeline never modifies the scheme. Each stage runs in its own span
// and reports its duration; a failing stage stops the pipeline and is named
// in the returned error.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
	"github.com/sbl8/ssccs/scheme"
)

var (
	// ErrUnaddressable is returned in strict mode when the layout cannot
	// address some point.
	ErrUnaddressable = errors.New("layout cannot address every point")
	// ErrNoUnits is returned when a CPU, FPGA or PIM profile has no units.
	ErrNoUnits = errors.New("hardware profile has no units")
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order
const (
	StageLayout    Stage = "layout"
	StageAnalysis  Stage = "analysis"
	StagePlacement Stage = "placement"
	StageCodegen   Stage = "codegen"
)

// StageError reports which stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("compile %s: %v", e.Stage, e.Err) }

// Unwrap returns the stage failure
func (e *StageError) Unwrap() error { return e.Err }

// Options configures the compilation process
type Options struct {
	// StrictAddressing fails the layout stage instead of listing unaddressable points.
	StrictAddressing bool
	// AllowCycles records dependency cycles in the analysis instead of failing.
	AllowCycles bool
	Logger      *slog.Logger
}

// DefaultOptions provides lenient defaults: gaps are listed, cycles fail.
func DefaultOptions() Options {
	return Options{Logger: slog.Default()}
}

// CompiledScheme is the output of a pipeline run.
type CompiledScheme struct {
	Scheme            scheme.Scheme
	Profile           HardwareProfile
	LogicalAddresses  map[core.Identity]layout.LogicalAddress
	HardwarePlacement map[core.Identity]HardwareResource
	ObservationCode   []byte
	Analysis          Analysis
	// Unaddressed lists, in identity order, the points the layout could not map.
	Unaddressed []core.Identity
	// Durations holds the wall time of every stage that ran.
	Durations map[Stage]time.Duration
}

// Pipeline compiles one scheme for one profile.
type Pipeline struct {
	scheme  scheme.Scheme
	profile HardwareProfile
	opts    Options
}

// New returns a pipeline. A nil logger falls back to slog.Default.
func New(s scheme.Scheme, profile HardwareProfile, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{scheme: s, profile: profile, opts: opts}
}

// Compile runs New(s, profile, opts).Compile(ctx).
func Compile(ctx context.Context, s scheme.Scheme, profile HardwareProfile, opts Options) (*CompiledScheme, error) {
	return New(s, profile, opts).Compile(ctx)
}

type stageFunc func(ctx context.Context, out *CompiledScheme) error

// Compile runs every stage in order. The context is checked between stages.
func (p *Pipeline) Compile(ctx context.Context) (*CompiledScheme, error) {
	ctx, span := startCompileSpan(ctx, p.scheme, p.profile)
	defer span.End()

	log := p.opts.Logger.With(
		slog.String("scheme", p.scheme.ID().Short()),
		slog.String("profile", p.profile.String()),
	)
	began := time.Now()

	out := &CompiledScheme{
		Scheme:            p.scheme,
		Profile:           p.profile,
		LogicalAddresses:  make(map[core.Identity]layout.LogicalAddress, p.scheme.Len()),
		HardwarePlacement: make(map[core.Identity]HardwareResource, p.scheme.Len()),
		Durations:         make(map[Stage]time.Duration, 4),
	}

	stages := []struct {
		stage Stage
		run   stageFunc
	}{
		{StageLayout, p.resolveLayout},
		{StageAnalysis, p.analyze},
		{StagePlacement, p.place},
		{StageCodegen, p.generate},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			recordCompileMetrics(ctx, time.Since(began), false)
			return nil, &StageError{Stage: st.stage, Err: err}
		}
		stageCtx, stageSpan := startStageSpan(ctx, st.stage)
		start := time.Now()
		err := st.run(stageCtx, out)
		elapsed := time.Since(start)
		out.Durations[st.stage] = elapsed
		recordStageMetrics(ctx, st.stage, elapsed, err == nil)
		endSpan(stageSpan, err)

		if err != nil {
			log.Error("compile stage failed", slog.String("stage", string(st.stage)), slog.Any("error", err))
			recordCompileMetrics(ctx, time.Since(began), false)
			return nil, &StageError{Stage: st.stage, Err: err}
		}
		log.Debug("compile stage done", slog.String("stage", string(st.stage)), slog.Duration("elapsed", elapsed))
	}

	setCompileSpanResult(span, out)
	recordCompileMetrics(ctx, time.Since(began), true)
	log.Info("compiled scheme",
		slog.Int("points", p.scheme.Len()),
		slog.Int("addressed", len(out.LogicalAddresses)),
		slog.Int("unaddressed", len(out.Unaddressed)),
		slog.Int("levels", len(out.Analysis.DependencyLevels)),
	)
	return out, nil
}

// resolveLayout maps every point through the scheme layout.
func (p *Pipeline) resolveLayout(_ context.Context, out *CompiledScheme) error {
	for _, pt := range p.scheme.Points() {
		addr, ok := p.scheme.MapToLogicalAddress(pt.Coordinate())
		if !ok {
			out.Unaddressed = append(out.Unaddressed, pt.ID())
			continue
		}
		out.LogicalAddresses[pt.ID()] = addr
	}
	if len(out.Unaddressed) > 0 {
		if p.opts.StrictAddressing {
			return fmt.Errorf("%w: %d of %d points", ErrUnaddressable, len(out.Unaddressed), p.scheme.Len())
		}
		p.opts.Logger.Warn("points left unaddressed",
			slog.String("scheme", p.scheme.ID().Short()),
			slog.Int("count", len(out.Unaddressed)),
		)
	}
	return nil
}

func (p *Pipeline) analyze(_ context.Context, out *CompiledScheme) error {
	a, err := Analyze(p.scheme)
	if err != nil && !(p.opts.AllowCycles && errors.Is(err, scheme.ErrDependencyCycle)) {
		return err
	}
	out.Analysis = a
	return nil
}

// place assigns addressed points round robin, in identity order, to the
// profile units. Unaddressed points get no placement.
func (p *Pipeline) place(_ context.Context, out *CompiledScheme) error {
	slot, ok := p.profile.resource()
	if !ok {
		if p.profile.Kind == HardwareCustom {
			return nil
		}
		return fmt.Errorf("unknown hardware kind %d", p.profile.Kind)
	}
	if p.profile.Units <= 0 {
		return fmt.Errorf("%w: %s", ErrNoUnits, p.profile)
	}
	i := 0
	for _, pt := range p.scheme.Points() {
		if _, ok := out.LogicalAddresses[pt.ID()]; !ok {
			continue
		}
		out.HardwarePlacement[pt.ID()] = slot(i % p.profile.Units)
		i++
	}
	return nil
}

// generate emits the observation program. No opcodes are defined yet.
func (p *Pipeline) generate(_ context.Context, out *CompiledScheme) error {
	out.ObservationCode = []byte{}
	return nil
}

// Summary is a flat, serializable digest of a compilation.
type Summary struct {
	Scheme       string         `yaml:"scheme"`
	Profile      string         `yaml:"profile"`
	Points       int            `yaml:"points"`
	Relations    int            `yaml:"relations"`
	Addressed    int            `yaml:"addressed"`
	Unaddressed  int            `yaml:"unaddressed"`
	Levels       int            `yaml:"levels"`
	Cyclic       bool           `yaml:"cyclic"`
	Placement    map[string]int `yaml:"placement,omitempty"`
	RelationUses map[string]int `yaml:"relation_kinds,omitempty"`
}

// Summary digests the compilation: point counts per placed unit and relation counts per kind.
func (c *CompiledScheme) Summary() Summary {
	s := Summary{
		Scheme:       c.Scheme.ID().String(),
		Profile:      c.Profile.String(),
		Points:       c.Analysis.Points,
		Relations:    c.Analysis.Relations,
		Addressed:    len(c.LogicalAddresses),
		Unaddressed:  len(c.Unaddressed),
		Levels:       len(c.Analysis.DependencyLevels),
		Cyclic:       c.Analysis.Cyclic,
		RelationUses: c.Analysis.RelationKinds,
	}
	if len(c.HardwarePlacement) > 0 {
		s.Placement = make(map[string]int)
		for _, r := range c.HardwarePlacement {
			s.Placement[r.String()]++
		}
	}
	return s
}
