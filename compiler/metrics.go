package compiler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sbl8/ssccs/scheme"
)

// Package-level tracer and meter for compilation.
var (
	tracer = otel.Tracer("ssccs.compiler")
	meter  = otel.Meter("ssccs.compiler")
)

var (
	compileLatency metric.Float64Histogram
	compileTotal   metric.Int64Counter
	stageLatency   metric.Float64Histogram
	stageTotal     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		compileLatency, err = meter.Float64Histogram(
			"compiler_compile_duration_seconds",
			metric.WithDescription("Duration of whole pipeline runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compileTotal, err = meter.Int64Counter(
			"compiler_compile_total",
			metric.WithDescription("Total number of pipeline runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stageLatency, err = meter.Float64Histogram(
			"compiler_stage_duration_seconds",
			metric.WithDescription("Duration of individual pipeline stages"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stageTotal, err = meter.Int64Counter(
			"compiler_stage_total",
			metric.WithDescription("Total number of stage executions"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCompileMetrics(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	compileLatency.Record(ctx, duration.Seconds(), attrs)
	compileTotal.Add(ctx, 1, attrs)
}

func recordStageMetrics(ctx context.Context, stage Stage, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.Bool("success", success),
	)
	stageLatency.Record(ctx, duration.Seconds(), attrs)
	stageTotal.Add(ctx, 1, attrs)
}

func startCompileSpan(ctx context.Context, s scheme.Scheme, profile HardwareProfile) (context.Context, trace.Span) {
	return tracer.Start(ctx, "compiler.Compile",
		trace.WithAttributes(
			attribute.String("compiler.scheme", s.ID().String()),
			attribute.String("compiler.profile", profile.String()),
			attribute.Int("compiler.points", s.Len()),
		),
	)
}

func startStageSpan(ctx context.Context, stage Stage) (context.Context, trace.Span) {
	return tracer.Start(ctx, "compiler.stage."+string(stage),
		trace.WithAttributes(attribute.String("compiler.stage", string(stage))),
	)
}

func setCompileSpanResult(span trace.Span, out *CompiledScheme) {
	span.SetAttributes(
		attribute.Int("compiler.addressed", len(out.LogicalAddresses)),
		attribute.Int("compiler.unaddressed", len(out.Unaddressed)),
		attribute.Int("compiler.placed", len(out.HardwarePlacement)),
		attribute.Int("compiler.levels", len(out.Analysis.DependencyLevels)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
