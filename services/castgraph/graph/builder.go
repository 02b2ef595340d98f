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
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

// Default builder configuration values.
const (
	// DefaultMaxVertices caps actors plus movies in one build.
	DefaultMaxVertices = 1_000_000

	// DefaultWorkerCount of 0 means runtime.NumCPU().
	DefaultWorkerCount = 0
)

// EdgeStrategy selects how candidate edges are found.
type EdgeStrategy int

const (
	// EdgeStrategyPairwise tests every (actor, movie) pair against both
	// membership lists. O(A * M) membership tests.
	EdgeStrategyPairwise EdgeStrategy = iota

	// EdgeStrategyIndexed walks each actor's filmography and each movie's
	// cast and resolves names through the vertex maps. O(sum of list
	// lengths). Produces the same edge set as EdgeStrategyPairwise.
	EdgeStrategyIndexed
)

// String returns the string representation of the EdgeStrategy.
func (s EdgeStrategy) String() string {
	switch s {
	case EdgeStrategyPairwise:
		return "pairwise"
	case EdgeStrategyIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}

// ParseEdgeStrategy maps a configuration string to an EdgeStrategy.
func ParseEdgeStrategy(s string) (EdgeStrategy, error) {
	switch s {
	case "", "pairwise":
		return EdgeStrategyPairwise, nil
	case "indexed":
		return EdgeStrategyIndexed, nil
	default:
		return 0, fmt.Errorf("unknown edge strategy %q", s)
	}
}

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// WorkerCount is the number of parallel edge scan workers.
	// Default: runtime.NumCPU()
	WorkerCount int

	// Strategy selects the candidate edge search.
	// Default: EdgeStrategyPairwise
	Strategy EdgeStrategy

	// MaxVertices is the maximum number of actors plus movies.
	// Default: DefaultMaxVertices
	MaxVertices int

	// Logger receives build progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		WorkerCount: runtime.NumCPU(),
		Strategy:    EdgeStrategyPairwise,
		MaxVertices: DefaultMaxVertices,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithWorkers sets the number of parallel workers. Values below 1 fall
// back to runtime.NumCPU().
func WithWorkers(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// WithEdgeStrategy sets the candidate edge search.
func WithEdgeStrategy(s EdgeStrategy) BuilderOption {
	return func(o *BuilderOptions) {
		o.Strategy = s
	}
}

// WithMaxVertices sets the vertex capacity.
func WithMaxVertices(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxVertices = n
	}
}

// WithLogger sets the build logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = logger
	}
}

// Builder constructs frozen graphs from record datasets.
//
// Thread Safety: Builder holds only options and is safe for concurrent use.
// Each Build call works on its own Graph.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkerCount < 1 {
		options.WorkerCount = runtime.NumCPU()
	}
	if options.MaxVertices < 1 {
		options.MaxVertices = DefaultMaxVertices
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{options: options}
}

// Options returns the effective builder options.
func (b *Builder) Options() BuilderOptions {
	return b.options
}

// edgeCandidate is an (actor, movie) pair that satisfies the union rule.
type edgeCandidate struct {
	actor *ActorVertex
	movie *MovieVertex
}

// buildScratch holds per-build membership sets. They exist only while the
// graph is being built.
type buildScratch struct {
	actors   []*ActorVertex
	movies   []*MovieVertex
	filmSets []map[string]struct{}
	castSets []map[string]struct{}
}

// Build constructs a frozen graph from ds.
//
// Description:
//
//	Validates every record, creates one vertex per actor and per movie,
//	then adds an edge for every (actor, movie) pair where the actor lists
//	the movie OR the movie lists the actor. Names on either side that
//	resolve to no vertex are ignored. The edge scan runs on WorkerCount
//	goroutines; edges are merged into the graph by a single goroutine.
//
//	Build is fail-fast: the first invalid record aborts the build and no
//	graph is returned.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	ds - Dataset to build from. Not modified.
//
// Outputs:
//
//	*Graph - Frozen graph. Nil on error.
//	error - ErrNilDataset, ErrMaxVerticesExceeded, ErrBuildCancelled, or
//	a wrapped records.ErrMalformedRecord naming the bad record.
//
// Thread Safety: Safe for concurrent use.
func (b *Builder) Build(ctx context.Context, ds records.Dataset) (*Graph, error) {
	start := time.Now()

	if ds.Actors == nil || ds.Movies == nil {
		return nil, ErrNilDataset
	}
	if total := len(ds.Actors) + len(ds.Movies); total > b.options.MaxVertices {
		return nil, fmt.Errorf("%w: %d vertices, limit %d", ErrMaxVerticesExceeded, total, b.options.MaxVertices)
	}

	ctx, span := startBuildSpan(ctx, len(ds.Actors), len(ds.Movies), b.options.Strategy)
	defer span.End()

	g, err := b.build(ctx, ds)
	duration := time.Since(start)
	if err != nil {
		setBuildSpanError(span, err)
		recordBuildMetrics(ctx, duration, 0, 0, false)
		b.options.Logger.Warn("graph build failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil, err
	}

	g.stats.Duration = duration
	setBuildSpanResult(span, g.ActorCount()+g.MovieCount(), g.EdgeCount())
	recordBuildMetrics(ctx, duration, g.ActorCount()+g.MovieCount(), g.EdgeCount(), true)

	b.options.Logger.Debug("graph built",
		slog.Int("actors", g.ActorCount()),
		slog.Int("movies", g.MovieCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.String("strategy", b.options.Strategy.String()),
		slog.Int("workers", b.options.WorkerCount),
		slog.Duration("duration", duration),
	)
	return g, nil
}

func (b *Builder) build(ctx context.Context, ds records.Dataset) (*Graph, error) {
	g := newGraph(len(ds.Actors), len(ds.Movies))
	g.stats.Strategy = b.options.Strategy
	g.stats.Workers = b.options.WorkerCount

	scratch, err := b.collectVertices(g, ds)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildCancelled, err)
	}

	candidates, tested, err := b.scanEdges(ctx, g, scratch)
	if err != nil {
		return nil, err
	}
	g.stats.PairsTested = tested

	for _, batch := range candidates {
		for _, c := range batch {
			if err := g.addEdge(c.actor, c.movie); err != nil {
				return nil, err
			}
		}
	}

	g.freeze()
	return g, nil
}

// collectVertices validates each record and creates its vertex. Records
// are visited in name order so the first reported error is stable.
func (b *Builder) collectVertices(g *Graph, ds records.Dataset) (*buildScratch, error) {
	scratch := &buildScratch{
		actors:   make([]*ActorVertex, 0, len(ds.Actors)),
		movies:   make([]*MovieVertex, 0, len(ds.Movies)),
		filmSets: make([]map[string]struct{}, 0, len(ds.Actors)),
		castSets: make([]map[string]struct{}, 0, len(ds.Movies)),
	}

	for _, key := range sortedKeys(ds.Actors) {
		rec := ds.Actors[key]
		if err := records.ValidateActor(key, rec); err != nil {
			return nil, err
		}
		a := &ActorVertex{
			name:        rec.Name,
			age:         rec.Age,
			filmography: slices.Clone(rec.Movies),
			totalGross:  rec.TotalGross,
		}
		if err := g.addActor(a); err != nil {
			return nil, fmt.Errorf("actor %q: %w", key, err)
		}
		scratch.actors = append(scratch.actors, a)
		scratch.filmSets = append(scratch.filmSets, toSet(rec.Movies))
	}

	for _, key := range sortedKeys(ds.Movies) {
		rec := ds.Movies[key]
		if err := records.ValidateMovie(key, rec); err != nil {
			return nil, err
		}
		m := &MovieVertex{
			name:      rec.Name,
			year:      rec.Year,
			boxOffice: rec.BoxOffice,
			cast:      slices.Clone(rec.Actors),
			wikiPage:  rec.WikiPage,
		}
		if err := g.addMovie(m); err != nil {
			return nil, fmt.Errorf("movie %q: %w", key, err)
		}
		scratch.movies = append(scratch.movies, m)
		scratch.castSets = append(scratch.castSets, toSet(rec.Actors))
	}

	return scratch, nil
}

// scanEdges finds candidate edges on WorkerCount goroutines. Each worker
// owns a contiguous range of actors and writes only its own result slots.
func (b *Builder) scanEdges(ctx context.Context, g *Graph, s *buildScratch) ([][]edgeCandidate, int64, error) {
	candidates := make([][]edgeCandidate, len(s.actors))
	var tested atomic.Int64

	workers := min(b.options.WorkerCount, max(len(s.actors), 1))
	chunk := (len(s.actors) + workers - 1) / workers

	eg, egCtx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(s.actors); lo += chunk {
		hi := min(lo+chunk, len(s.actors))
		eg.Go(func() error {
			var local int64
			for i := lo; i < hi; i++ {
				if err := egCtx.Err(); err != nil {
					return fmt.Errorf("%w: %v", ErrBuildCancelled, err)
				}
				switch b.options.Strategy {
				case EdgeStrategyIndexed:
					candidates[i], local = indexedEdges(g, s, i, local)
				default:
					candidates[i], local = pairwiseEdges(s, i, local)
				}
			}
			tested.Add(local)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	// The indexed walk from the actor side misses pairs only the movie side
	// records; pick those up in one pass after the workers finish.
	if b.options.Strategy == EdgeStrategyIndexed {
		extra, n := castOnlyEdges(g, s)
		candidates = append(candidates, extra)
		tested.Add(n)
	}

	return candidates, tested.Load(), nil
}

// pairwiseEdges tests actor i against every movie.
func pairwiseEdges(s *buildScratch, i int, tested int64) ([]edgeCandidate, int64) {
	a := s.actors[i]
	film := s.filmSets[i]
	var out []edgeCandidate
	for j, m := range s.movies {
		tested++
		_, listed := film[m.name]
		_, cast := s.castSets[j][a.name]
		if listed || cast {
			out = append(out, edgeCandidate{actor: a, movie: m})
		}
	}
	return out, tested
}

// indexedEdges resolves actor i's filmography through the movie map.
func indexedEdges(g *Graph, s *buildScratch, i int, tested int64) ([]edgeCandidate, int64) {
	a := s.actors[i]
	var out []edgeCandidate
	for name := range s.filmSets[i] {
		tested++
		if m, ok := g.movies[name]; ok {
			out = append(out, edgeCandidate{actor: a, movie: m})
		}
	}
	return out, tested
}

// castOnlyEdges resolves every movie's cast through the actor map and keeps
// the pairs the actor side did not already list.
func castOnlyEdges(g *Graph, s *buildScratch) ([]edgeCandidate, int64) {
	var out []edgeCandidate
	var tested int64
	actorIndex := make(map[*ActorVertex]int, len(s.actors))
	for i, a := range s.actors {
		actorIndex[a] = i
	}
	for j, m := range s.movies {
		for name := range s.castSets[j] {
			tested++
			a, ok := g.actors[name]
			if !ok {
				continue
			}
			if _, listed := s.filmSets[actorIndex[a]][m.name]; !listed {
				out = append(out, edgeCandidate{actor: a, movie: m})
			}
		}
	}
	return out, tested
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
