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
	"runtime"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// AgeGroup is one decade bucket of the age analysis.
type AgeGroup struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Count int   `json:"count"`
	Gross int64 `json:"gross"`

	// MeanGross is Gross / (Count + 1), which keeps empty buckets at zero.
	MeanGross float64 `json:"mean_gross"`
}

// AgeGroups returns the decade buckets 10-19 through 90-99.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) AgeGroups() []AgeGroup {
	out := make([]AgeGroup, 0, 9)
	for start := 10; start < 100; start += 10 {
		end := start + 9
		gross := g.GrossForAgeGroup(start, end)
		count := g.CountActorsInAgeGroup(start, end)
		out = append(out, AgeGroup{
			Start:     start,
			End:       end,
			Count:     count,
			Gross:     gross,
			MeanGross: float64(gross) / float64(count+1),
		})
	}
	return out
}

// ConnectionStats summarizes the distinct co-star counts of all actors.
type ConnectionStats struct {
	Actors int     `json:"actors"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// ConnectionStats computes the distribution of HubActors' measure.
//
// Description:
//
//	StdDev is the sample standard deviation and is 0 with fewer than two
//	actors. Quantiles use the empirical CDF. An empty graph returns the
//	zero value.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) ConnectionStats() ConnectionStats {
	if len(g.actorList) == 0 {
		return ConnectionStats{}
	}

	values := make([]float64, len(g.actorList))
	for i, a := range g.actorList {
		values[i] = float64(a.connections)
	}
	slices.Sort(values)

	cs := ConnectionStats{
		Actors: len(values),
		Min:    int(values[0]),
		Max:    int(values[len(values)-1]),
		Mean:   stat.Mean(values, nil),
		Median: stat.Quantile(0.5, stat.Empirical, values, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, values, nil),
	}
	if len(values) > 1 {
		cs.StdDev = stat.StdDev(values, nil)
	}
	return cs
}

// SeparationHistogram counts ordered pairs of distinct actors by their
// degree of separation.
type SeparationHistogram struct {
	Pairs       int `json:"pairs"`
	Degree1     int `json:"degree_1"`
	Degree2     int `json:"degree_2"`
	Degree3Plus int `json:"degree_3_plus"`
	Unreachable int `json:"unreachable"`
	MaxDegree   int `json:"max_degree"`

	// ByDegree holds the count for every reachable degree.
	ByDegree map[int]int `json:"by_degree"`
}

// SeparationHistogram runs one BFS per actor and buckets every ordered pair
// (a, b) with a != b.
//
// Description:
//
//	Sources are split across runtime.NumCPU() goroutines with errgroup.
//	Each worker fills its own histogram and the results are summed, so no
//	counter is shared. Cancellation is checked before each source.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//
// Outputs:
//
//	SeparationHistogram - Pair counts.
//	error - Wraps ctx.Err() when cancelled.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) SeparationHistogram(ctx context.Context) (SeparationHistogram, error) {
	ctx, span := tracer.Start(ctx, "Graph.SeparationHistogram",
		trace.WithAttributes(attribute.Int("graph.actor_count", len(g.actorList))),
	)
	defer span.End()

	var (
		mu     sync.Mutex
		result = SeparationHistogram{ByDegree: make(map[int]int)}
	)

	sources := make(chan *ActorVertex)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(sources)
		for _, a := range g.actorList {
			if err := egCtx.Err(); err != nil {
				return fmt.Errorf("separation histogram: %w", err)
			}
			select {
			case sources <- a:
			case <-egCtx.Done():
				return fmt.Errorf("separation histogram: %w", egCtx.Err())
			}
		}
		return nil
	})

	workers := max(1, min(runtime.NumCPU(), len(g.actorList)))
	for range workers {
		eg.Go(func() error {
			local := SeparationHistogram{ByDegree: make(map[int]int)}
			for a := range sources {
				g.separationsFrom(a, &local)
			}
			mu.Lock()
			result.merge(local)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return SeparationHistogram{}, err
	}
	span.SetAttributes(attribute.Int("graph.pairs", result.Pairs))
	return result, nil
}

// separationsFrom adds every pair (a, b) with b != a to h.
func (g *Graph) separationsFrom(a *ActorVertex, h *SeparationHistogram) {
	distances := g.DistancesFrom(a)
	for _, b := range g.actorList {
		if b == a {
			continue
		}
		h.Pairs++
		d, ok := distances[b.name]
		if !ok {
			h.Unreachable++
			continue
		}
		h.ByDegree[d]++
		h.MaxDegree = max(h.MaxDegree, d)
		switch {
		case d <= 1:
			h.Degree1++
		case d == 2:
			h.Degree2++
		default:
			h.Degree3Plus++
		}
	}
}

func (h *SeparationHistogram) merge(other SeparationHistogram) {
	h.Pairs += other.Pairs
	h.Degree1 += other.Degree1
	h.Degree2 += other.Degree2
	h.Degree3Plus += other.Degree3Plus
	h.Unreachable += other.Unreachable
	h.MaxDegree = max(h.MaxDegree, other.MaxDegree)
	for d, n := range other.ByDegree {
		h.ByDegree[d] += n
	}
}

// Summary describes a built graph.
type Summary struct {
	Actors        int       `json:"actors"`
	Movies        int       `json:"movies"`
	Edges         int       `json:"edges"`
	Version       uint64    `json:"version"`
	SourceVersion uint64    `json:"source_version"`
	BuiltAt       time.Time `json:"built_at"`
	BuildDuration string    `json:"build_duration"`
	Strategy      string    `json:"strategy"`
	Workers       int       `json:"workers"`
}

// Summary returns the graph's counts and build metadata.
func (g *Graph) Summary() Summary {
	return Summary{
		Actors:        len(g.actors),
		Movies:        len(g.movies),
		Edges:         g.edgeCount,
		Version:       g.version,
		SourceVersion: g.sourceVersion,
		BuiltAt:       g.builtAt,
		BuildDuration: g.stats.Duration.String(),
		Strategy:      g.stats.Strategy.String(),
		Workers:       g.stats.Workers,
	}
}
