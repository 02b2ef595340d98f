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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

// DatasetSource supplies the records for a rebuild. *records.Store
// satisfies it.
type DatasetSource interface {
	// Snapshot returns a private copy of the records and the source
	// version they correspond to.
	Snapshot() (records.Dataset, uint64)
}

// StaticDataset adapts a fixed dataset to DatasetSource. Its version is
// always 0.
type StaticDataset records.Dataset

// Snapshot implements DatasetSource.
func (d StaticDataset) Snapshot() (records.Dataset, uint64) {
	return records.Dataset(d).Clone(), 0
}

// SwapHook is called after a new snapshot is published. previous is nil on
// the first swap. Hooks run on the rebuilding goroutine and must not block.
type SwapHook func(ctx context.Context, previous, current *Graph)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSwapHook registers a hook at construction time.
func WithSwapHook(hook SwapHook) EngineOption {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hook)
	}
}

// WithEngineLogger sets the engine logger. Defaults to slog.Default().
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine owns the current graph snapshot.
//
// Description:
//
//	Readers call Current and keep the returned *Graph for as long as they
//	need it. Rebuild builds a whole new graph and publishes it with one
//	atomic store; a reader never sees a half-built graph and a reader that
//	holds an old snapshot keeps a consistent view of it. Concurrent Rebuild
//	calls share one build.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	builder *Builder
	logger  *slog.Logger

	current atomic.Pointer[Graph]
	version atomic.Uint64
	group   singleflight.Group

	hooksMu sync.RWMutex
	hooks   []SwapHook
}

// NewEngine creates an Engine with no snapshot.
func NewEngine(builder *Builder, opts ...EngineOption) *Engine {
	if builder == nil {
		builder = NewBuilder()
	}
	e := &Engine{builder: builder}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Current returns the published graph, or nil before the first build.
func (e *Engine) Current() *Graph {
	return e.current.Load()
}

// Snapshot returns the published graph or ErrNoSnapshot.
func (e *Engine) Snapshot() (*Graph, error) {
	g := e.current.Load()
	if g == nil {
		return nil, ErrNoSnapshot
	}
	return g, nil
}

// Version returns the version of the published snapshot, 0 before the
// first build. Versions increase by one per successful swap.
func (e *Engine) Version() uint64 {
	return e.version.Load()
}

// OnSwap registers a hook for future swaps.
func (e *Engine) OnSwap(hook SwapHook) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// Rebuild builds a graph from src and publishes it.
//
// Description:
//
//	The dataset is taken from src inside the shared build, so callers that
//	join an in-flight rebuild get a graph of the records as they were when
//	that build started. On failure the published snapshot is unchanged.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	src - Source of records, usually the *records.Store.
//
// Outputs:
//
//	*Graph - The newly published snapshot.
//	error - Any Builder.Build error.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Rebuild(ctx context.Context, src DatasetSource) (*Graph, error) {
	ctx, span := startRebuildSpan(ctx)
	defer span.End()

	resultI, err, shared := e.group.Do("rebuild", func() (any, error) {
		ds, sourceVersion := src.Snapshot()

		g, err := e.builder.Build(ctx, ds)
		if err != nil {
			return nil, fmt.Errorf("rebuilding graph: %w", err)
		}

		g.sourceVersion = sourceVersion
		g.version = e.version.Add(1)
		previous := e.current.Swap(g)

		recordSwapMetrics(ctx, g.version)
		e.logger.Info("graph snapshot published",
			slog.Uint64("version", g.version),
			slog.Uint64("source_version", sourceVersion),
			slog.Int("actors", g.ActorCount()),
			slog.Int("movies", g.MovieCount()),
			slog.Int("edges", g.EdgeCount()),
		)

		e.hooksMu.RLock()
		hooks := append([]SwapHook(nil), e.hooks...)
		e.hooksMu.RUnlock()
		for _, hook := range hooks {
			hook(ctx, previous, g)
		}
		return g, nil
	})

	span.SetAttributes(attribute.Bool("graph.rebuild_shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resultI.(*Graph), nil
}
