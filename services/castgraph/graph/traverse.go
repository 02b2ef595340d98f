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

// Traversal records which vertices a full traversal reached.
//
// Visited marks live here rather than on the vertices, so traversing never
// writes to the shared graph.
type Traversal struct {
	visited    map[vertexKey]struct{}
	order      []Vertex
	components int
	total      int
}

// Visited reports whether the vertex of the given kind and name was reached.
func (t *Traversal) Visited(kind VertexKind, name string) bool {
	_, ok := t.visited[vertexKey{kind: kind, name: name}]
	return ok
}

// VisitedCount returns the number of distinct vertices reached.
func (t *Traversal) VisitedCount() int { return len(t.visited) }

// AllVisited reports whether every vertex of the graph was reached.
func (t *Traversal) AllVisited() bool { return len(t.visited) == t.total }

// Components returns the number of connected components found.
func (t *Traversal) Components() int { return t.components }

// Order returns the vertices in the order they were first visited.
func (t *Traversal) Order() []Vertex {
	out := make([]Vertex, len(t.order))
	copy(out, t.order)
	return out
}

// TraverseAll visits every vertex with an iterative depth-first search.
//
// Description:
//
//	Roots are taken in a fixed order, actors by name then movies by name.
//	Each unvisited root starts a new component. The search uses an
//	explicit stack, so graph depth never grows the goroutine stack.
//
// Outputs:
//
//	*Traversal - Every vertex marked exactly once.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) TraverseAll() *Traversal {
	total := len(g.actors) + len(g.movies)
	t := &Traversal{
		visited: make(map[vertexKey]struct{}, total),
		order:   make([]Vertex, 0, total),
		total:   total,
	}

	roots := make([]Vertex, 0, total)
	for _, a := range g.actorList {
		roots = append(roots, a)
	}
	for _, m := range g.movieList {
		roots = append(roots, m)
	}

	var stack []Vertex
	for _, root := range roots {
		if _, ok := t.visited[root.key()]; ok {
			continue
		}
		t.components++
		stack = append(stack[:0], root)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			k := v.key()
			if _, ok := t.visited[k]; ok {
				continue
			}
			t.visited[k] = struct{}{}
			t.order = append(t.order, v)

			v.eachNeighbor(func(n Vertex) {
				if _, ok := t.visited[n.key()]; !ok {
					stack = append(stack, n)
				}
			})
		}
	}
	return t
}
