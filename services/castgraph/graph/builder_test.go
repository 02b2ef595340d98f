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
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

// testDataset is a small cast graph:
//
//	Bruce Willis - Blind Date - Kim Basinger
//	Bruce Willis - Die Hard - Alan Rickman (listed only on the actor side)
//	Alan Rickman - Love Actually - Emma Thompson (listed only on the movie side)
//	Lonely Actor and Orphan have no edges.
func testDataset() records.Dataset {
	return records.Dataset{
		Actors: map[string]records.Actor{
			"Bruce Willis":  {Name: "Bruce Willis", Age: 61, Movies: []string{"Blind Date", "Die Hard"}, TotalGross: 562709189},
			"Kim Basinger":  {Name: "Kim Basinger", Age: 62, Movies: []string{"Blind Date"}, TotalGross: 200000000},
			"Alan Rickman":  {Name: "Alan Rickman", Age: 69, Movies: []string{"Die Hard"}, TotalGross: 100000000},
			"Emma Thompson": {Name: "Emma Thompson", Age: 57, Movies: []string{}, TotalGross: 50000000},
			"Lonely Actor":  {Name: "Lonely Actor", Age: 30, Movies: []string{"Unreleased"}, TotalGross: 0},
		},
		Movies: map[string]records.Movie{
			"Blind Date":    {Name: "Blind Date", Year: 1987, BoxOffice: 39321715, Actors: []string{"Bruce Willis", "Kim Basinger"}, WikiPage: "https://en.wikipedia.org/wiki/Blind_Date_(1987_film)"},
			"Die Hard":      {Name: "Die Hard", Year: 1988, BoxOffice: 140767956, Actors: []string{"Bruce Willis"}, WikiPage: "https://en.wikipedia.org/wiki/Die_Hard"},
			"Love Actually": {Name: "Love Actually", Year: 2003, BoxOffice: 246000000, Actors: []string{"Alan Rickman", "Emma Thompson", "Ghost Person"}, WikiPage: ""},
			"Orphan":        {Name: "Orphan", Year: 1988, BoxOffice: 1000, Actors: []string{}, WikiPage: ""},
		},
	}
}

func mustBuild(t *testing.T, ds records.Dataset, opts ...BuilderOption) *Graph {
	t.Helper()
	g, err := NewBuilder(opts...).Build(context.Background(), ds)
	require.NoError(t, err)
	return g
}

// edgeList renders every edge as "actor|movie|weight" in a stable order.
func edgeList(g *Graph) []string {
	var out []string
	for _, a := range g.Actors() {
		for _, m := range a.Movies() {
			w, _ := a.Weight(m)
			out = append(out, fmt.Sprintf("%s|%s|%d", a.Name(), m.Name(), w))
		}
	}
	return out
}

// syntheticDataset builds a denser dataset with one-sided listings on both
// sides so the edge strategies have something to disagree about.
func syntheticDataset(actors, movies int) records.Dataset {
	ds := records.NewDataset()
	for i := range movies {
		name := fmt.Sprintf("movie-%03d", i)
		ds.Movies[name] = records.Movie{Name: name, Year: 1950 + i%70, BoxOffice: int64(1000 * (i + 1)), Actors: []string{}}
	}
	for i := range actors {
		name := fmt.Sprintf("actor-%03d", i)
		a := records.Actor{Name: name, Age: 18 + i%70, Movies: []string{}, TotalGross: int64(i * 7)}
		for j := range movies {
			switch (i*31 + j*17) % 11 {
			case 0:
				a.Movies = append(a.Movies, fmt.Sprintf("movie-%03d", j))
			case 1:
				m := ds.Movies[fmt.Sprintf("movie-%03d", j)]
				m.Actors = append(m.Actors, name)
				ds.Movies[m.Name] = m
			case 2:
				a.Movies = append(a.Movies, fmt.Sprintf("movie-%03d", j))
				m := ds.Movies[fmt.Sprintf("movie-%03d", j)]
				m.Actors = append(m.Actors, name)
				ds.Movies[m.Name] = m
			}
		}
		ds.Actors[name] = a
	}
	return ds
}

func TestBuilder_NewBuilder(t *testing.T) {
	t.Run("default options", func(t *testing.T) {
		b := NewBuilder()
		assert.Equal(t, DefaultMaxVertices, b.options.MaxVertices)
		assert.Positive(t, b.options.WorkerCount)
		assert.Equal(t, EdgeStrategyPairwise, b.options.Strategy)
	})

	t.Run("custom options", func(t *testing.T) {
		b := NewBuilder(WithWorkers(4), WithEdgeStrategy(EdgeStrategyIndexed), WithMaxVertices(10))
		assert.Equal(t, 4, b.options.WorkerCount)
		assert.Equal(t, EdgeStrategyIndexed, b.options.Strategy)
		assert.Equal(t, 10, b.options.MaxVertices)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		b := NewBuilder(WithWorkers(-1), WithMaxVertices(0))
		assert.Positive(t, b.options.WorkerCount)
		assert.Equal(t, DefaultMaxVertices, b.options.MaxVertices)
	})
}

func TestParseEdgeStrategy(t *testing.T) {
	for in, want := range map[string]EdgeStrategy{"": EdgeStrategyPairwise, "pairwise": EdgeStrategyPairwise, "indexed": EdgeStrategyIndexed} {
		got, err := ParseEdgeStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseEdgeStrategy("quadratic")
	assert.Error(t, err)
}

func TestBuilder_Build(t *testing.T) {
	g := mustBuild(t, testDataset())

	assert.True(t, g.IsFrozen())
	assert.Equal(t, 5, g.ActorCount())
	assert.Equal(t, 4, g.MovieCount())

	got := edgeList(g)
	expected := []string{
		fmt.Sprintf("Alan Rickman|Die Hard|%d", int64(69)*140767956),
		fmt.Sprintf("Alan Rickman|Love Actually|%d", int64(69)*246000000),
		fmt.Sprintf("Bruce Willis|Blind Date|%d", int64(61)*39321715),
		fmt.Sprintf("Bruce Willis|Die Hard|%d", int64(61)*140767956),
		fmt.Sprintf("Emma Thompson|Love Actually|%d", int64(57)*246000000),
		fmt.Sprintf("Kim Basinger|Blind Date|%d", int64(62)*39321715),
	}
	assert.Equal(t, expected, got)
	assert.Equal(t, len(expected), g.EdgeCount())
}

func TestBuilder_WeightsMatchOnBothEndpoints(t *testing.T) {
	g := mustBuild(t, syntheticDataset(40, 30))

	for _, a := range g.Actors() {
		for _, m := range a.Movies() {
			aw, ok := a.Weight(m)
			require.True(t, ok, "%s lists %s but has no weight", a.Name(), m.Name())
			mw, ok := m.Weight(a)
			require.True(t, ok, "%s has no reverse edge to %s", m.Name(), a.Name())
			assert.Equal(t, aw, mw, "%s/%s", a.Name(), m.Name())
			assert.Equal(t, int64(a.Age())*m.BoxOffice(), aw, "%s/%s", a.Name(), m.Name())
		}
	}
}

func TestBuilder_StrategiesAgree(t *testing.T) {
	ds := syntheticDataset(60, 45)

	baseline := edgeList(mustBuild(t, ds, WithWorkers(1), WithEdgeStrategy(EdgeStrategyPairwise)))
	require.NotEmpty(t, baseline, "synthetic dataset produced no edges")

	variants := map[string][]BuilderOption{
		"pairwise parallel":   {WithWorkers(8), WithEdgeStrategy(EdgeStrategyPairwise)},
		"indexed sequential":  {WithWorkers(1), WithEdgeStrategy(EdgeStrategyIndexed)},
		"indexed parallel":    {WithWorkers(8), WithEdgeStrategy(EdgeStrategyIndexed)},
		"more workers than n": {WithWorkers(500)},
	}
	for name, opts := range variants {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, baseline, edgeList(mustBuild(t, ds, opts...)))
		})
	}
}

func TestBuilder_EmptyDataset(t *testing.T) {
	g := mustBuild(t, records.NewDataset())
	assert.Zero(t, g.ActorCount())
	assert.Zero(t, g.MovieCount())
	assert.Zero(t, g.EdgeCount())
}

func TestBuilder_FailFast(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ds *records.Dataset)
		opts    []BuilderOption
		wantErr error
	}{
		{
			name:    "nil actors",
			mutate:  func(ds *records.Dataset) { ds.Actors = nil },
			wantErr: ErrNilDataset,
		},
		{
			name:    "nil movies",
			mutate:  func(ds *records.Dataset) { ds.Movies = nil },
			wantErr: ErrNilDataset,
		},
		{
			name: "key does not match name",
			mutate: func(ds *records.Dataset) {
				a := ds.Actors["Kim Basinger"]
				a.Name = "Kim B."
				ds.Actors["Kim Basinger"] = a
			},
			wantErr: records.ErrMalformedRecord,
		},
		{
			name: "negative age",
			mutate: func(ds *records.Dataset) {
				a := ds.Actors["Bruce Willis"]
				a.Age = -1
				ds.Actors["Bruce Willis"] = a
			},
			wantErr: records.ErrMalformedRecord,
		},
		{
			name: "missing cast list",
			mutate: func(ds *records.Dataset) {
				m := ds.Movies["Orphan"]
				m.Actors = nil
				ds.Movies["Orphan"] = m
			},
			wantErr: records.ErrMalformedRecord,
		},
		{
			name:    "over capacity",
			mutate:  func(ds *records.Dataset) {},
			opts:    []BuilderOption{WithMaxVertices(3)},
			wantErr: ErrMaxVerticesExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := testDataset()
			tt.mutate(&ds)
			g, err := NewBuilder(tt.opts...).Build(context.Background(), ds)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, g)
		})
	}
}

func TestBuilder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := NewBuilder().Build(ctx, testDataset())
	require.ErrorIs(t, err, ErrBuildCancelled)
	assert.Nil(t, g)
}

func TestGraph_FrozenRejectsWrites(t *testing.T) {
	g := mustBuild(t, testDataset())
	a, _ := g.Actor("Kim Basinger")
	m, _ := g.Movie("Die Hard")

	assert.ErrorIs(t, g.addEdge(a, m), ErrGraphFrozen)
	assert.ErrorIs(t, g.addActor(&ActorVertex{name: "New"}), ErrGraphFrozen)
	assert.ErrorIs(t, g.addMovie(&MovieVertex{name: "New"}), ErrGraphFrozen)
	_, ok := a.Weight(m)
	assert.False(t, ok, "rejected edge was added")
}

func TestGraph_AccessorsReturnCopies(t *testing.T) {
	g := mustBuild(t, testDataset())
	a, _ := g.Actor("Bruce Willis")

	film := a.Filmography()
	film[0] = "Changed"
	assert.Equal(t, "Blind Date", a.Filmography()[0])

	actors := g.Actors()
	actors[0] = nil
	assert.NotNil(t, g.Actors()[0])
}

func TestGraph_DatasetRoundTrip(t *testing.T) {
	ds := testDataset()
	g := mustBuild(t, ds)

	assert.Empty(t, cmp.Diff(ds, g.Dataset()), "Dataset mismatch (-want +got)")

	rebuilt := mustBuild(t, g.Dataset())
	assert.Equal(t, edgeList(g), edgeList(rebuilt))
}

func TestGraph_SortedListings(t *testing.T) {
	g := mustBuild(t, testDataset())

	names := func(vs []*ActorVertex) []string {
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = v.Name()
		}
		return out
	}
	got := names(g.Actors())
	assert.True(t, sort.StringsAreSorted(got), "Actors not sorted: %v", got)

	m, _ := g.Movie("Love Actually")
	assert.Equal(t, []string{"Alan Rickman", "Emma Thompson"}, names(m.Actors()))
}
