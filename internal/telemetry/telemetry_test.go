package telemetry

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level, format string
		wantErr       bool
		contains      string
	}{
		{level: "info", format: "text", contains: "msg=hello"},
		{level: "debug", format: "json", contains: `"msg":"hello"`},
		{level: "WARN", format: "", contains: ""},
		{level: "loud", format: "text", wantErr: true},
		{level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
			if tt.contains == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}

// The tests below replace the otel globals and therefore do not run in parallel.

func TestInitMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, Config{ServiceName: "ssccs-test", Metrics: true})
	require.NoError(t, err)
	defer tel.Shutdown(ctx)

	counter, err := otel.Meter("telemetry-test").Int64Counter("telemetry_test_events")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	h := tel.Handler()
	require.NotNil(t, h)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "telemetry_test_events")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitTraces(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tel, err := Init(ctx, Config{ServiceName: "ssccs-test", TraceExporter: "stdout", TraceWriter: &buf})
	require.NoError(t, err)
	assert.Nil(t, tel.Handler())

	_, span := otel.Tracer("telemetry-test").Start(ctx, "test-span")
	span.End()
	require.NoError(t, tel.Shutdown(ctx))
	assert.True(t, strings.Contains(buf.String(), "test-span"))
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{TraceExporter: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestServeRequiresHandler(t *testing.T) {
	t.Parallel()
	err := Serve(context.Background(), "127.0.0.1:0", "/metrics", nil, nil)
	assert.Error(t, err)
}
