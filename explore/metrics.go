package explore

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("ssccs.explore")
	meter  = otel.Meter("ssccs.explore")
)

var (
	walkLatency  metric.Float64Histogram
	walkTotal    metric.Int64Counter
	statesVisit  metric.Int64Histogram
	walkTruncate metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		walkLatency, err = meter.Float64Histogram(
			"explore_walk_duration_seconds",
			metric.WithDescription("Duration of bounded walks"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		walkTotal, err = meter.Int64Counter(
			"explore_walk_total",
			metric.WithDescription("Total number of bounded walks"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		statesVisit, err = meter.Int64Histogram(
			"explore_states_visited",
			metric.WithDescription("Number of states in the result of a walk"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		walkTruncate, err = meter.Int64Counter(
			"explore_walk_truncated_total",
			metric.WithDescription("Walks cut short by MaxStates"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordWalkMetrics(ctx context.Context, s Stats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	walkLatency.Record(ctx, s.Duration.Seconds(), attrs)
	walkTotal.Add(ctx, 1, attrs)
	if success {
		statesVisit.Record(ctx, int64(s.States))
	}
	if s.Truncated {
		walkTruncate.Add(ctx, 1)
	}
}

func startWalkSpan(ctx context.Context, b Bound) (context.Context, trace.Span) {
	return tracer.Start(ctx, "explore.Walk",
		trace.WithAttributes(
			attribute.Int("explore.max_depth", b.MaxDepth),
			attribute.Int("explore.max_states", b.MaxStates),
		),
	)
}

func setWalkSpanResult(span trace.Span, s Stats) {
	span.SetAttributes(
		attribute.Int("explore.states", s.States),
		attribute.Int("explore.expanded", s.Expanded),
		attribute.Int("explore.depth_reached", s.MaxDepth),
		attribute.Bool("explore.truncated", s.Truncated),
	)
}
