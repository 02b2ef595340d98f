// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package castgraph provides the castgraph HTTP service.
//
// The service exposes:
//   - CRUD and filter endpoints over the actor and movie records
//   - read-only queries over the current graph snapshot
//   - rebuild and reload operations that publish a new snapshot
//
// Record writes never touch the published graph. A snapshot reflects the
// records as they were when it was built, and the store reports itself dirty
// until the next rebuild.
package castgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/castgraph/pkg/telemetry"
	"github.com/AleutianAI/castgraph/services/castgraph/events"
	"github.com/AleutianAI/castgraph/services/castgraph/filter"
	"github.com/AleutianAI/castgraph/services/castgraph/graph"
	"github.com/AleutianAI/castgraph/services/castgraph/observability"
	"github.com/AleutianAI/castgraph/services/castgraph/records"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ServiceVersion is the castgraph service version.
const ServiceVersion = "0.1.0"

const tracerName = "castgraph.service"

// ServiceConfig configures the castgraph service.
type ServiceConfig struct {
	// QueryTimeout bounds every graph query, and every rebuild or reload
	// started over HTTP. Rebuilds from the watcher, NATS and startup are
	// bounded by their caller's context only.
	// Default: 30s
	QueryTimeout time.Duration

	// DefaultRankingSize is the k used when a ranking request omits it.
	// Default: 10
	DefaultRankingSize int

	// AutoRebuild rebuilds the graph after every successful record write.
	// Default: false (writes mark the store dirty until an explicit rebuild)
	AutoRebuild bool
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		QueryTimeout:       30 * time.Second,
		DefaultRankingSize: 10,
		AutoRebuild:        false,
	}
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithBuilder sets the graph builder. Default: graph.NewBuilder().
func WithBuilder(b *graph.Builder) ServiceOption {
	return func(s *Service) { s.builder = b }
}

// WithPublisher sets the snapshot event publisher. Default: events.NopPublisher.
func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the Prometheus collectors. Default: collectors on a
// private registry, so nothing is exported.
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// Service is the castgraph service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Record access is serialized by the
//	store, graph reads go to an immutable snapshot, and rebuilds are
//	collapsed by the engine.
type Service struct {
	config    ServiceConfig
	store     *records.Store
	builder   *graph.Builder
	engine    *graph.Engine
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService creates a service over store. No graph is built until Rebuild
// is called.
//
// Inputs:
//
//	config - Service configuration. Zero fields take their defaults.
//	store - The record store. Must not be nil.
//	opts - Optional collaborators.
//
// Outputs:
//
//	*Service - The configured service.
func NewService(config ServiceConfig, store *records.Store, opts ...ServiceOption) *Service {
	defaults := DefaultServiceConfig()
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = defaults.QueryTimeout
	}
	if config.DefaultRankingSize <= 0 {
		config.DefaultRankingSize = defaults.DefaultRankingSize
	}

	s := &Service{
		config:    config,
		store:     store,
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	s.engine = graph.NewEngine(s.builder,
		graph.WithEngineLogger(s.logger),
		graph.WithSwapHook(s.onSwap),
	)
	s.metrics.SetStoreDirty(store.Dirty())
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig { return s.config }

// Store returns the record store.
func (s *Service) Store() *records.Store { return s.store }

// Engine returns the snapshot engine.
func (s *Service) Engine() *graph.Engine { return s.engine }

// Ready reports whether a snapshot has been published.
func (s *Service) Ready() bool { return s.engine.Current() != nil }

// Snapshot returns the current graph or graph.ErrNoSnapshot.
func (s *Service) Snapshot() (*graph.Graph, error) { return s.engine.Snapshot() }

// =============================================================================
// Rebuild
// =============================================================================

type triggerKey struct{}

func withTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok {
		return t
	}
	return "unknown"
}

// Rebuild builds a graph from the current records and publishes it.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	trigger - What caused the rebuild, e.g. observability.TriggerHTTP.
//
// Outputs:
//
//	*graph.Graph - The published snapshot.
//	error - The build error. The previous snapshot stays published.
func (s *Service) Rebuild(ctx context.Context, trigger string) (*graph.Graph, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Service.Rebuild",
		trace.WithAttributes(attribute.String("castgraph.trigger", trigger)))
	defer span.End()

	g, err := s.engine.Rebuild(withTrigger(ctx, trigger), s.store)
	s.metrics.RecordRebuild(trigger, err)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.ErrorContext(ctx, "graph rebuild failed", "trigger", trigger, "error", err)
		return nil, err
	}
	telemetry.SetSpanOK(span)
	return g, nil
}

// Reload re-reads the dataset file and rebuilds.
//
// Outputs:
//
//	error - records.ErrNoSourceFile if the store was not opened from a file,
//	the decode error, or the build error. On a decode error neither the
//	records nor the snapshot change.
func (s *Service) Reload(ctx context.Context, trigger string) (*graph.Graph, error) {
	if err := s.store.Reload(); err != nil {
		s.metrics.RecordRebuild(trigger, err)
		s.logger.WarnContext(ctx, "dataset reload rejected", "trigger", trigger, "error", err)
		return nil, fmt.Errorf("reloading dataset: %w", err)
	}
	s.metrics.SetStoreDirty(s.store.Dirty())
	return s.Rebuild(ctx, trigger)
}

// HandleFileChange reloads after the dataset file changed on disk. It has
// the records.FileChangeHandler signature.
func (s *Service) HandleFileChange(ctx context.Context, change records.FileChange) {
	s.logger.InfoContext(ctx, "dataset file changed", "path", change.Path, "op", change.Op.String())
	_, _ = s.Reload(ctx, observability.TriggerWatch)
}

// HandleReloadRequest serves a NATS reload request.
func (s *Service) HandleReloadRequest(ctx context.Context, req events.ReloadRequest) events.ReloadReply {
	s.logger.InfoContext(ctx, "reload requested", "requested_by", req.RequestedBy)
	g, err := s.Reload(ctx, observability.TriggerNATS)
	if err != nil {
		return events.ReloadReply{Error: err.Error()}
	}
	return events.ReloadReply{Version: g.Version(), Actors: g.ActorCount(), Movies: g.MovieCount()}
}

// onSwap runs after every successful snapshot swap.
func (s *Service) onSwap(ctx context.Context, _, current *graph.Graph) {
	s.store.MarkBuilt(current.SourceVersion())
	s.metrics.SetSnapshotVersion(current.Version())
	s.metrics.SetStoreDirty(s.store.Dirty())

	ev := events.SnapshotEvent{
		Version:       current.Version(),
		SourceVersion: current.SourceVersion(),
		Actors:        current.ActorCount(),
		Movies:        current.MovieCount(),
		Edges:         current.EdgeCount(),
		BuiltAt:       current.BuiltAt(),
		Source:        triggerFrom(ctx),
	}
	if err := s.publisher.PublishSnapshot(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "snapshot event not published", "version", ev.Version, "error", err)
	}
}

// =============================================================================
// Records
// =============================================================================

// Actor returns the named actor record.
func (s *Service) Actor(name string) (records.Actor, error) { return s.store.Actor(name) }

// Movie returns the named movie record.
func (s *Service) Movie(name string) (records.Movie, error) { return s.store.Movie(name) }

// FilterActors evaluates a filter query over the actor records.
func (s *Service) FilterActors(query string) (map[string]records.Actor, error) {
	return filter.Actors(query, s.store.Actors())
}

// FilterMovies evaluates a filter query over the movie records.
func (s *Service) FilterMovies(query string) (map[string]records.Movie, error) {
	return filter.Movies(query, s.store.Movies())
}

// CreateActor adds an actor from its JSON document.
func (s *Service) CreateActor(ctx context.Context, raw []byte) (records.Actor, error) {
	a, err := s.store.CreateActor(raw)
	if err == nil {
		s.afterWrite(ctx)
	}
	return a, err
}

// CreateMovie adds a movie from its JSON document.
func (s *Service) CreateMovie(ctx context.Context, raw []byte) (records.Movie, error) {
	m, err := s.store.CreateMovie(raw)
	if err == nil {
		s.afterWrite(ctx)
	}
	return m, err
}

// UpdateActor applies a partial update to the named actor.
func (s *Service) UpdateActor(ctx context.Context, name string, patch map[string]json.RawMessage) (records.Actor, error) {
	a, err := s.store.UpdateActor(name, patch)
	if err == nil {
		s.afterWrite(ctx)
	}
	return a, err
}

// UpdateMovie applies a partial update to the named movie.
func (s *Service) UpdateMovie(ctx context.Context, name string, patch map[string]json.RawMessage) (records.Movie, error) {
	m, err := s.store.UpdateMovie(name, patch)
	if err == nil {
		s.afterWrite(ctx)
	}
	return m, err
}

// DeleteActor removes the named actor.
func (s *Service) DeleteActor(ctx context.Context, name string) error {
	err := s.store.DeleteActor(name)
	if err == nil {
		s.afterWrite(ctx)
	}
	return err
}

// DeleteMovie removes the named movie.
func (s *Service) DeleteMovie(ctx context.Context, name string) error {
	err := s.store.DeleteMovie(name)
	if err == nil {
		s.afterWrite(ctx)
	}
	return err
}

// afterWrite updates the dirty gauge and, with AutoRebuild, rebuilds. A
// failed rebuild is logged; the write itself has already succeeded.
func (s *Service) afterWrite(ctx context.Context) {
	s.metrics.SetStoreDirty(s.store.Dirty())
	if !s.config.AutoRebuild {
		return
	}
	if _, err := s.Rebuild(ctx, observability.TriggerWrite); err != nil {
		s.logger.WarnContext(ctx, "rebuild after write failed", "error", err)
	}
}

// =============================================================================
// Graph Queries
// =============================================================================

// runQuery runs fn against the current snapshot inside a span, bounded by
// QueryTimeout.
func runQuery[T any](ctx context.Context, s *Service, name string, fn func(context.Context, *graph.Graph) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Service."+name)
	defer span.End()

	s.metrics.RecordQuery(name)

	g, err := s.engine.Snapshot()
	if err != nil {
		telemetry.RecordError(span, err)
		return zero, err
	}
	span.SetAttributes(attribute.Int64("graph.version", int64(g.Version())))

	out, err := fn(ctx, g)
	if err != nil {
		telemetry.RecordError(span, err)
		return zero, err
	}
	telemetry.SetSpanOK(span)
	return out, nil
}

// Distance returns the degrees of separation between two actors.
//
// Outputs:
//
//	DistanceResponse - Distance is -1 when to is unreachable or not an actor.
//	error - graph.ErrVertexNotFound for an unknown from actor.
func (s *Service) Distance(ctx context.Context, from, to string) (DistanceResponse, error) {
	return runQuery(ctx, s, "distance", func(_ context.Context, g *graph.Graph) (DistanceResponse, error) {
		d, err := g.DistanceByName(from, to)
		if err != nil {
			return DistanceResponse{}, err
		}
		return DistanceResponse{From: from, To: to, Distance: d}, nil
	})
}

// OldestActors returns the k oldest actors, oldest last.
func (s *Service) OldestActors(ctx context.Context, k int) ([]graph.ActorAge, error) {
	return runQuery(ctx, s, "oldest", func(_ context.Context, g *graph.Graph) ([]graph.ActorAge, error) {
		return g.OldestActors(k), nil
	})
}

// TopGrossingActors returns the k top-grossing actors, highest last.
func (s *Service) TopGrossingActors(ctx context.Context, k int) ([]graph.ActorGross, error) {
	return runQuery(ctx, s, "top_grossing", func(_ context.Context, g *graph.Graph) ([]graph.ActorGross, error) {
		return g.TopGrossingActors(k), nil
	})
}

// HubActors returns the k most connected actors, most connected last.
func (s *Service) HubActors(ctx context.Context, k int) ([]graph.ActorConnections, error) {
	return runQuery(ctx, s, "hubs", func(_ context.Context, g *graph.Graph) ([]graph.ActorConnections, error) {
		return g.HubActors(k), nil
	})
}

// MoviesFromYear returns the movies released in year.
func (s *Service) MoviesFromYear(ctx context.Context, year int) (NamesResponse, error) {
	return runQuery(ctx, s, "movies_from_year", func(_ context.Context, g *graph.Graph) (NamesResponse, error) {
		return NamesResponse{Year: year, Names: g.MoviesFromYear(year)}, nil
	})
}

// ActorsFromYear returns the actors in movies released in year.
func (s *Service) ActorsFromYear(ctx context.Context, year int) (NamesResponse, error) {
	return runQuery(ctx, s, "actors_from_year", func(_ context.Context, g *graph.Graph) (NamesResponse, error) {
		return NamesResponse{Year: year, Names: g.ActorsFromYear(year)}, nil
	})
}

// GrossForAgeGroup sums total gross over actors aged start..end.
func (s *Service) GrossForAgeGroup(ctx context.Context, start, end int) (AgeGroupResponse, error) {
	return runQuery(ctx, s, "age_gross", func(_ context.Context, g *graph.Graph) (AgeGroupResponse, error) {
		return AgeGroupResponse{Start: start, End: end, Value: g.GrossForAgeGroup(start, end)}, nil
	})
}

// CountActorsInAgeGroup counts actors aged start..end.
func (s *Service) CountActorsInAgeGroup(ctx context.Context, start, end int) (AgeGroupResponse, error) {
	return runQuery(ctx, s, "age_count", func(_ context.Context, g *graph.Graph) (AgeGroupResponse, error) {
		return AgeGroupResponse{Start: start, End: end, Value: int64(g.CountActorsInAgeGroup(start, end))}, nil
	})
}

// AgeGroups returns the decade buckets.
func (s *Service) AgeGroups(ctx context.Context) ([]graph.AgeGroup, error) {
	return runQuery(ctx, s, "age_groups", func(_ context.Context, g *graph.Graph) ([]graph.AgeGroup, error) {
		return g.AgeGroups(), nil
	})
}

// Stats summarizes the snapshot, its connection distribution and its
// connected components.
func (s *Service) Stats(ctx context.Context) (StatsResponse, error) {
	return runQuery(ctx, s, "stats", func(_ context.Context, g *graph.Graph) (StatsResponse, error) {
		t := g.TraverseAll()
		return StatsResponse{
			Summary:     g.Summary(),
			Connections: g.ConnectionStats(),
			Components:  t.Components(),
			AllVisited:  t.AllVisited(),
		}, nil
	})
}

// Separations returns the separation histogram of all actor pairs.
func (s *Service) Separations(ctx context.Context) (graph.SeparationHistogram, error) {
	return runQuery(ctx, s, "separations", func(ctx context.Context, g *graph.Graph) (graph.SeparationHistogram, error) {
		return g.SeparationHistogram(ctx)
	})
}

// Export serializes the snapshot's records.
func (s *Service) Export(ctx context.Context) (records.Dataset, error) {
	return runQuery(ctx, s, "export", func(_ context.Context, g *graph.Graph) (records.Dataset, error) {
		return g.Dataset(), nil
	})
}
