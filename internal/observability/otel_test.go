package observability

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/go-nickname-bot/internal/config"
)

func enabled(name string, ratio float64) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: ratio,
	}
}

// keepGlobals restores the otel globals after t.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

// useExporter swaps the OTLP exporter for exp.
func useExporter(t *testing.T, exp sdktrace.SpanExporter) {
	t.Helper()
	prev := newExporterFn
	newExporterFn = func(context.Context, config.OTELConfig) (sdktrace.SpanExporter, error) { return exp, nil }
	t.Cleanup(func() { newExporterFn = prev })
}

func flush(t *testing.T) {
	t.Helper()
	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		t.Fatal("sdk tracer provider not installed")
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

type closingExporter struct {
	closed atomic.Bool
}

func (e *closingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (e *closingExporter) Shutdown(context.Context) error {
	e.closed.Store(true)
	return nil
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	keepGlobals(t)
	tp := otel.GetTracerProvider()

	cfg := enabled("nickname-bot", 1)
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v0", "development")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != tp {
		t.Fatal("disabled tracing replaced the tracer provider")
	}
}

func TestSetupOTel_ExportsCommandSpans(t *testing.T) {
	keepGlobals(t)
	exp := tracetest.NewInMemoryExporter()
	useExporter(t, exp)

	shutdown, err := SetupOTel(context.Background(), enabled("nickname-bot", 1), "v1.4.0", "production")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("bot").Start(context.Background(), "bot /add")
	span.End()

	// The in-memory exporter forgets its spans on Shutdown, so flush instead.
	flush(t)
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "bot /add" {
		t.Fatalf("exported spans = %+v", spans)
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs["service.name"] != "nickname-bot" || attrs["service.version"] != "v1.4.0" ||
		attrs["deployment.environment"] != "production" {
		t.Fatalf("resource attributes = %v", attrs)
	}
}

func TestSetupOTel_ZeroRatioDropsRootSpans(t *testing.T) {
	keepGlobals(t)
	exp := tracetest.NewInMemoryExporter()
	useExporter(t, exp)

	shutdown, err := SetupOTel(context.Background(), enabled("nickname-bot", 0), "v1", "production")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	_, span := otel.Tracer("bot").Start(context.Background(), "bot /all")
	if span.SpanContext().IsSampled() {
		t.Fatal("root span sampled at ratio 0")
	}
	span.End()
	defer func() { _ = shutdown(context.Background()) }()
	flush(t)
	if n := len(exp.GetSpans()); n != 0 {
		t.Fatalf("exported %d spans; want 0", n)
	}
}

func TestSetupOTel_PropagatesTraceContext(t *testing.T) {
	keepGlobals(t)
	useExporter(t, tracetest.NewInMemoryExporter())

	shutdown, err := SetupOTel(context.Background(), enabled("nickname-bot", 1), "v1", "production")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("http").Start(context.Background(), "POST /webhook")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	tp := carrier.Get("traceparent")
	if !strings.Contains(tp, span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent %q does not carry trace id", tp)
	}
}

func TestSetupOTel_Failures(t *testing.T) {
	t.Run("exporter", func(t *testing.T) {
		keepGlobals(t)
		tp := otel.GetTracerProvider()
		prev := newExporterFn
		newExporterFn = func(context.Context, config.OTELConfig) (sdktrace.SpanExporter, error) {
			return nil, errors.New("dial failed")
		}
		t.Cleanup(func() { newExporterFn = prev })

		_, err := SetupOTel(context.Background(), enabled("nickname-bot", 1), "v1", "production")
		if err == nil || !strings.Contains(err.Error(), "create OTLP exporter") {
			t.Fatalf("err = %v", err)
		}
		if otel.GetTracerProvider() != tp {
			t.Fatal("tracer provider replaced on failure")
		}
	})

	t.Run("resource closes exporter", func(t *testing.T) {
		keepGlobals(t)
		tp := otel.GetTracerProvider()
		exp := &closingExporter{}
		useExporter(t, exp)
		prev := newServiceResourceFn
		newServiceResourceFn = func(context.Context, string, string, string) (*resource.Resource, error) {
			return nil, errors.New("bad resource")
		}
		t.Cleanup(func() { newServiceResourceFn = prev })

		_, err := SetupOTel(context.Background(), enabled("nickname-bot", 1), "v1", "production")
		if err == nil || !strings.Contains(err.Error(), "build OTel resource") {
			t.Fatalf("err = %v", err)
		}
		if !exp.closed.Load() {
			t.Fatal("exporter left open after resource failure")
		}
		if otel.GetTracerProvider() != tp {
			t.Fatal("tracer provider replaced on failure")
		}
	})
}

// The real OTLP exporter connects lazily, so setup succeeds without a
// collector in either transport mode.
func TestSetupOTel_OTLPExporterBuilds(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		cfg := enabled("nickname-bot", 1)
		cfg.Insecure = insecure

		shutdown, err := SetupOTel(context.Background(), cfg, "v1", "production")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: sdk tracer provider not installed", insecure)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(ctx)
		cancel()
	}
}
