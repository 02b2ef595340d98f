// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("CASTGRAPH_ENV", "staging")

	cfg := DefaultConfig()
	if cfg.ServiceName != "castgraph" {
		t.Errorf("ServiceName = %q, want castgraph", cfg.ServiceName)
	}
	if cfg.TraceExporter != "none" {
		t.Errorf("TraceExporter = %q, want none", cfg.TraceExporter)
	}
	if cfg.MetricExporter != "prometheus" {
		t.Errorf("MetricExporter = %q, want prometheus", cfg.MetricExporter)
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want staging", cfg.Environment)
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_UnknownExporters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"trace", Config{TraceExporter: "zipkin", MetricExporter: "none"}},
		{"metric", Config{TraceExporter: "none", MetricExporter: "statsd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(context.Background(), tt.cfg)
			if !errors.Is(err, ErrUnknownExporter) {
				t.Errorf("expected ErrUnknownExporter, got %v", err)
			}
		})
	}
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{TraceExporter: "none", MetricExporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_PrometheusBridge(t *testing.T) {
	reg := prometheus.NewRegistry()
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "castgraph-test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		Registry:       reg,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer shutdown(context.Background())

	counter, err := otel.Meter("castgraph.test").Int64Counter("bridge_check_total")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	handler := MetricsHandler()
	if handler == nil {
		t.Fatal("MetricsHandler returned nil with prometheus exporter")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bridge_check_total") {
		t.Errorf("metrics output missing bridged counter:\n%s", rec.Body.String())
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "castgraph-test",
		TraceExporter:  "stdout",
		MetricExporter: "none",
		Writer:         &buf,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := StartSpan(context.Background(), "castgraph.test", "stdout.span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "stdout.span") {
		t.Errorf("stdout exporter output missing span:\n%s", buf.String())
	}
}

func TestInit_OTLPDoesNotDialEagerly(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		TraceExporter:  "otlp",
		MetricExporter: "none",
		OTLPEndpoint:   "127.0.0.1:1",
		OTLPInsecure:   true,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp.Tracer("castgraph.test")
}

func TestRecordError(t *testing.T) {
	rec, tracer := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), "failing")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	RecordError(nil, errors.New("ignored"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if got := ended[0].Status().Description; got != "boom" {
		t.Errorf("status description = %q, want boom", got)
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("expected 1 error event, got %d", len(ended[0].Events()))
	}
}

func TestTraceAndSpanID(t *testing.T) {
	if TraceID(context.Background()) != "" || SpanID(context.Background()) != "" {
		t.Error("expected empty IDs without a span")
	}

	_, tracer := newRecordingTracer(t)
	ctx, span := tracer.Start(context.Background(), "ids")
	defer span.End()

	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID = %q, want 32 hex chars", got)
	}
	if got := SpanID(ctx); len(got) != 16 {
		t.Errorf("SpanID = %q, want 16 hex chars", got)
	}
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	if LoggerWithTrace(context.Background(), logger) != logger {
		t.Error("expected the same logger without a span")
	}

	_, tracer := newRecordingTracer(t)
	ctx, span := tracer.Start(context.Background(), "logged")
	defer span.End()

	LoggerWithTrace(ctx, logger).Info("hello")
	if !strings.Contains(buf.String(), `"trace_id":"`+TraceID(ctx)+`"`) {
		t.Errorf("log line missing trace_id: %s", buf.String())
	}
}

func TestInjectExtractMap(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	if got := InjectToMap(context.Background()); len(got) != 0 {
		t.Errorf("expected empty carrier without a span, got %v", got)
	}

	_, tracer := newRecordingTracer(t)
	ctx, span := tracer.Start(context.Background(), "carrier")
	defer span.End()

	carrier := InjectToMap(ctx)
	if carrier["traceparent"] == "" {
		t.Fatalf("missing traceparent: %v", carrier)
	}

	restored := ExtractFromMap(context.Background(), carrier)
	if TraceID(restored) != TraceID(ctx) {
		t.Errorf("TraceID = %q, want %q", TraceID(restored), TraceID(ctx))
	}
	if ExtractFromMap(ctx, nil) != ctx {
		t.Error("empty map should return ctx unchanged")
	}
}
