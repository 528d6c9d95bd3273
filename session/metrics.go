package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("ssccs.session")
	meter  = otel.Meter("ssccs.session")
)

var (
	runLatency metric.Float64Histogram
	jobTotal   metric.Int64Counter
	jobStates  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"session_run_duration_seconds",
			metric.WithDescription("Duration of whole session runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		jobTotal, err = meter.Int64Counter(
			"session_jobs_total",
			metric.WithDescription("Jobs run, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		jobStates, err = meter.Int64Histogram(
			"session_job_states",
			metric.WithDescription("States found by successful jobs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRunMetrics(ctx context.Context, jobs, failed int, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	runLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Int("jobs", jobs),
		attribute.Bool("success", failed == 0),
	))
}

func recordJobMetrics(ctx context.Context, r Result) {
	if err := initMetrics(); err != nil {
		return
	}
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", r.Err == nil)))
	if r.Err == nil {
		jobStates.Record(ctx, int64(r.Stats.States))
	}
}

func startRunSpan(ctx context.Context, jobs, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "session.Run",
		trace.WithAttributes(
			attribute.Int("session.jobs", jobs),
			attribute.Int("session.workers", workers),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
