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

import "fmt"

// Unreachable is the distance reported when no path exists.
const Unreachable = -1

// Distance returns the degrees of separation from source to the actor
// named target.
//
// Description:
//
//	Breadth-first search over the bipartite graph, one level per vertex
//	hop. A nil separator in the queue marks the end of each level. Only
//	actor vertices can match the target, so a movie that shares the
//	target's name is walked through but never returned. Every actor/actor
//	step crosses one movie, so the degree is floor(depth / 2).
//
// Inputs:
//
//	source - Start actor. Must belong to g.
//	target - Actor name to find.
//
// Outputs:
//
//	int - 0 when source is the target, the degree of separation when
//	reachable, Unreachable otherwise.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) Distance(source *ActorVertex, target string) int {
	if source == nil {
		return Unreachable
	}

	seen := map[vertexKey]struct{}{source.key(): {}}
	queue := []Vertex{source, nil}
	depth := 0

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		if v == nil {
			// A separator with nothing behind it means the last level
			// produced no new vertices.
			if len(queue) == 0 {
				return Unreachable
			}
			depth++
			queue = append(queue, nil)
			continue
		}

		if v.Kind() == KindActor && v.Name() == target {
			return depth / 2
		}

		v.eachNeighbor(func(n Vertex) {
			k := n.key()
			if _, ok := seen[k]; ok {
				return
			}
			seen[k] = struct{}{}
			queue = append(queue, n)
		})
	}
	return Unreachable
}

// DistanceByName resolves both actors by name and returns their distance.
//
// Outputs:
//
//	int - As Distance.
//	error - Wraps ErrVertexNotFound when source is not an actor in g.
//	An unknown target is not an error; it is simply Unreachable.
func (g *Graph) DistanceByName(source, target string) (int, error) {
	a, ok := g.actors[source]
	if !ok {
		return Unreachable, fmt.Errorf("actor %q: %w", source, ErrVertexNotFound)
	}
	return g.Distance(a, target), nil
}

// DistancesFrom returns the degree of separation from source to every
// reachable actor, source included at 0.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) DistancesFrom(source *ActorVertex) map[string]int {
	out := make(map[string]int)
	if source == nil {
		return out
	}

	seen := map[vertexKey]struct{}{source.key(): {}}
	level := []Vertex{source}
	for depth := 0; len(level) > 0; depth++ {
		var next []Vertex
		for _, v := range level {
			if v.Kind() == KindActor {
				out[v.Name()] = depth / 2
			}
			v.eachNeighbor(func(n Vertex) {
				k := n.key()
				if _, ok := seen[k]; ok {
					return
				}
				seen[k] = struct{}{}
				next = append(next, n)
			})
		}
		level = next
	}
	return out
}
