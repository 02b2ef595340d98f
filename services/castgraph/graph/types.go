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
	"slices"
	"strings"
	"time"

	"github.com/tidwall/btree"
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the builder is still adding vertices and edges.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// VertexKind distinguishes the two vertex sets.
type VertexKind int

const (
	// KindActor marks an ActorVertex.
	KindActor VertexKind = iota

	// KindMovie marks a MovieVertex.
	KindMovie
)

// String returns the string representation of the VertexKind.
func (k VertexKind) String() string {
	switch k {
	case KindActor:
		return "actor"
	case KindMovie:
		return "movie"
	default:
		return "unknown"
	}
}

// Vertex is either an *ActorVertex or a *MovieVertex.
//
// Identity is (Kind, Name): an actor and a movie may share a name.
type Vertex interface {
	Name() string
	Kind() VertexKind
	Degree() int

	key() vertexKey
	eachNeighbor(fn func(Vertex))
}

// vertexKey identifies a vertex across both sets.
type vertexKey struct {
	kind VertexKind
	name string
}

// ActorVertex is an actor and its weighted movie adjacency.
type ActorVertex struct {
	name        string
	age         int
	filmography []string
	totalGross  int64

	movies map[*MovieVertex]int64

	// connections is the number of distinct co-stars, computed at freeze.
	connections int
}

// Name returns the actor's name.
func (a *ActorVertex) Name() string { return a.name }

// Kind returns KindActor.
func (a *ActorVertex) Kind() VertexKind { return KindActor }

// Age returns the recorded age.
func (a *ActorVertex) Age() int { return a.age }

// TotalGross returns the actor's own recorded gross, which is independent of
// edge weights.
func (a *ActorVertex) TotalGross() int64 { return a.totalGross }

// Filmography returns a copy of the movie names recorded on the actor.
func (a *ActorVertex) Filmography() []string { return slices.Clone(a.filmography) }

// Degree returns the number of adjacent movies.
func (a *ActorVertex) Degree() int { return len(a.movies) }

// Connections returns the number of distinct other actors sharing at least
// one movie with this actor.
func (a *ActorVertex) Connections() int { return a.connections }

// Weight returns the weight of the edge to m, if there is one.
func (a *ActorVertex) Weight(m *MovieVertex) (int64, bool) {
	w, ok := a.movies[m]
	return w, ok
}

// Movies returns the adjacent movies ordered by name.
func (a *ActorVertex) Movies() []*MovieVertex {
	out := make([]*MovieVertex, 0, len(a.movies))
	for m := range a.movies {
		out = append(out, m)
	}
	slices.SortFunc(out, func(x, y *MovieVertex) int { return strings.Compare(x.name, y.name) })
	return out
}

func (a *ActorVertex) key() vertexKey { return vertexKey{kind: KindActor, name: a.name} }

func (a *ActorVertex) eachNeighbor(fn func(Vertex)) {
	for m := range a.movies {
		fn(m)
	}
}

// MovieVertex is a movie and its weighted cast adjacency.
type MovieVertex struct {
	name      string
	year      int
	boxOffice int64
	cast      []string
	wikiPage  string

	actors map[*ActorVertex]int64
}

// Name returns the movie's name.
func (m *MovieVertex) Name() string { return m.name }

// Kind returns KindMovie.
func (m *MovieVertex) Kind() VertexKind { return KindMovie }

// Year returns the release year.
func (m *MovieVertex) Year() int { return m.year }

// BoxOffice returns the movie's gross.
func (m *MovieVertex) BoxOffice() int64 { return m.boxOffice }

// Cast returns a copy of the actor names recorded on the movie.
func (m *MovieVertex) Cast() []string { return slices.Clone(m.cast) }

// WikiPage returns the source reference.
func (m *MovieVertex) WikiPage() string { return m.wikiPage }

// Degree returns the number of adjacent actors.
func (m *MovieVertex) Degree() int { return len(m.actors) }

// Weight returns the weight of the edge to a, if there is one.
func (m *MovieVertex) Weight(a *ActorVertex) (int64, bool) {
	w, ok := m.actors[a]
	return w, ok
}

// Actors returns the adjacent actors ordered by name.
func (m *MovieVertex) Actors() []*ActorVertex {
	out := make([]*ActorVertex, 0, len(m.actors))
	for a := range m.actors {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y *ActorVertex) int { return strings.Compare(x.name, y.name) })
	return out
}

func (m *MovieVertex) key() vertexKey { return vertexKey{kind: KindMovie, name: m.name} }

func (m *MovieVertex) eachNeighbor(fn func(Vertex)) {
	for a := range m.actors {
		fn(a)
	}
}

// EdgeWeight is the weight rule shared by both endpoints.
func EdgeWeight(a *ActorVertex, m *MovieVertex) int64 {
	return int64(a.age) * m.boxOffice
}

// BuildStats describes how a graph was built.
type BuildStats struct {
	// Strategy is the edge construction strategy used.
	Strategy EdgeStrategy

	// Workers is the number of scan workers used.
	Workers int

	// PairsTested is the number of (actor, movie) membership tests run.
	PairsTested int64

	// Duration is the wall time of the build.
	Duration time.Duration
}

// Graph is the bipartite collaboration graph.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. Builder.Build
//	returns it frozen, after which any number of goroutines may read it.
type Graph struct {
	actors map[string]*ActorVertex
	movies map[string]*MovieVertex

	// actorList and movieList hold the vertices ordered by name.
	actorList []*ActorVertex
	movieList []*MovieVertex

	// ageIndex orders actors by (age, name) for range aggregates.
	ageIndex *btree.BTreeG[*ActorVertex]

	// moviesByYear holds movies per release year, ordered by name.
	moviesByYear map[int][]*MovieVertex

	edgeCount     int
	state         GraphState
	version       uint64
	sourceVersion uint64
	builtAt       time.Time
	stats         BuildStats
}

// newGraph creates an empty graph in the building state.
func newGraph(actorHint, movieHint int) *Graph {
	return &Graph{
		actors: make(map[string]*ActorVertex, actorHint),
		movies: make(map[string]*MovieVertex, movieHint),
		state:  GraphStateBuilding,
	}
}

// Actor returns the named actor vertex.
func (g *Graph) Actor(name string) (*ActorVertex, bool) {
	a, ok := g.actors[name]
	return a, ok
}

// Movie returns the named movie vertex.
func (g *Graph) Movie(name string) (*MovieVertex, bool) {
	m, ok := g.movies[name]
	return m, ok
}

// Actors returns every actor vertex ordered by name. The slice is a copy.
func (g *Graph) Actors() []*ActorVertex { return slices.Clone(g.actorList) }

// Movies returns every movie vertex ordered by name. The slice is a copy.
func (g *Graph) Movies() []*MovieVertex { return slices.Clone(g.movieList) }

// ActorCount returns the number of actor vertices.
func (g *Graph) ActorCount() int { return len(g.actors) }

// MovieCount returns the number of movie vertices.
func (g *Graph) MovieCount() int { return len(g.movies) }

// EdgeCount returns the number of actor/movie edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// State returns the lifecycle state.
func (g *Graph) State() GraphState { return g.state }

// IsFrozen reports whether the graph is read-only.
func (g *Graph) IsFrozen() bool { return g.state == GraphStateReadOnly }

// Version returns the snapshot version assigned by Engine, or 0 for graphs
// built directly with a Builder.
func (g *Graph) Version() uint64 { return g.version }

// SourceVersion returns the version of the dataset source the graph was
// built from, as reported by the DatasetSource passed to Engine.Rebuild.
func (g *Graph) SourceVersion() uint64 { return g.sourceVersion }

// BuiltAt returns when the graph was frozen.
func (g *Graph) BuiltAt() time.Time { return g.builtAt }

// Stats returns how the graph was built.
func (g *Graph) Stats() BuildStats { return g.stats }

// =============================================================================
// Building (unexported, single writer)
// =============================================================================

func (g *Graph) addActor(a *ActorVertex) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if _, exists := g.actors[a.name]; exists {
		return ErrDuplicateVertex
	}
	a.movies = make(map[*MovieVertex]int64)
	g.actors[a.name] = a
	return nil
}

func (g *Graph) addMovie(m *MovieVertex) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if _, exists := g.movies[m.name]; exists {
		return ErrDuplicateVertex
	}
	m.actors = make(map[*ActorVertex]int64)
	g.movies[m.name] = m
	return nil
}

// addEdge links a and m on both sides with the same weight. Adding an
// existing edge is a no-op.
func (g *Graph) addEdge(a *ActorVertex, m *MovieVertex) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if _, exists := a.movies[m]; exists {
		return nil
	}
	w := EdgeWeight(a, m)
	a.movies[m] = w
	m.actors[a] = w
	g.edgeCount++
	return nil
}

// freeze computes the derived indices and makes the graph read-only.
func (g *Graph) freeze() {
	if g.state == GraphStateReadOnly {
		return
	}

	g.actorList = make([]*ActorVertex, 0, len(g.actors))
	for _, a := range g.actors {
		g.actorList = append(g.actorList, a)
	}
	slices.SortFunc(g.actorList, func(x, y *ActorVertex) int { return strings.Compare(x.name, y.name) })

	g.movieList = make([]*MovieVertex, 0, len(g.movies))
	for _, m := range g.movies {
		g.movieList = append(g.movieList, m)
	}
	slices.SortFunc(g.movieList, func(x, y *MovieVertex) int { return strings.Compare(x.name, y.name) })

	g.ageIndex = btree.NewBTreeG(actorAgeLess)
	for _, a := range g.actorList {
		g.ageIndex.Set(a)
		a.connections = countCoStars(a)
	}

	g.moviesByYear = make(map[int][]*MovieVertex)
	for _, m := range g.movieList {
		g.moviesByYear[m.year] = append(g.moviesByYear[m.year], m)
	}

	g.state = GraphStateReadOnly
	g.builtAt = time.Now()
}

// actorAgeLess orders actors by age, then name.
func actorAgeLess(x, y *ActorVertex) bool {
	if x.age != y.age {
		return x.age < y.age
	}
	return x.name < y.name
}

// countCoStars counts distinct other actors reachable through one movie.
func countCoStars(a *ActorVertex) int {
	seen := make(map[*ActorVertex]struct{})
	for m := range a.movies {
		for other := range m.actors {
			if other != a {
				seen[other] = struct{}{}
			}
		}
	}
	return len(seen)
}
