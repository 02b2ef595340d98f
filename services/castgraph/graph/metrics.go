// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

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

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("castgraph.graph")
	meter  = otel.Meter("castgraph.graph")
)

// Metrics for graph building and snapshot swaps.
var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	verticesCreated metric.Int64Histogram
	edgesCreated    metric.Int64Histogram
	swapTotal       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"graph_build_duration_seconds",
			metric.WithDescription("Duration of graph build operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"graph_build_total",
			metric.WithDescription("Total number of graph build operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verticesCreated, err = meter.Int64Histogram(
			"graph_vertices_created",
			metric.WithDescription("Number of vertices created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"graph_edges_created",
			metric.WithDescription("Number of edges created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		swapTotal, err = meter.Int64Counter(
			"graph_snapshot_swaps_total",
			metric.WithDescription("Total number of published graph snapshots"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, vertexCount, edgeCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		verticesCreated.Record(ctx, int64(vertexCount))
		edgesCreated.Record(ctx, int64(edgeCount))
	}
}

// recordSwapMetrics records a published snapshot.
func recordSwapMetrics(ctx context.Context, version uint64) {
	if err := initMetrics(); err != nil {
		return
	}
	swapTotal.Add(ctx, 1)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("graph.version", int64(version)))
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, actorCount, movieCount int, strategy EdgeStrategy) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GraphBuilder.Build",
		trace.WithAttributes(
			attribute.Int("graph.actor_count", actorCount),
			attribute.Int("graph.movie_count", movieCount),
			attribute.String("graph.edge_strategy", strategy.String()),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, vertexCount, edgeCount int) {
	span.SetAttributes(
		attribute.Int("graph.vertex_count", vertexCount),
		attribute.Int("graph.edge_count", edgeCount),
	)
	span.SetStatus(codes.Ok, "")
}

// setBuildSpanError marks a build span as failed.
func setBuildSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// startRebuildSpan creates a span for an engine rebuild.
func startRebuildSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Rebuild")
}
