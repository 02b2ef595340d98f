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
	"cmp"
	"math"
	"slices"
	"strings"
)

// ActorAge is one OldestActors entry.
type ActorAge struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// ActorGross is one TopGrossingActors entry.
type ActorGross struct {
	Name       string `json:"name"`
	TotalGross int64  `json:"total_gross"`
}

// ActorConnections is one HubActors entry.
type ActorConnections struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

// OldestActors returns the k oldest actors in ascending age order, so the
// oldest is last.
//
// Description:
//
//	Reads the top of the age index and reverses it. Equal ages are ordered
//	by name. k <= 0 returns an empty slice; k larger than the actor count
//	returns every actor.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) OldestActors(k int) []ActorAge {
	if k <= 0 || g.ageIndex == nil {
		return []ActorAge{}
	}

	out := make([]ActorAge, 0, min(k, g.ageIndex.Len()))
	g.ageIndex.Descend(&ActorVertex{age: math.MaxInt}, func(a *ActorVertex) bool {
		out = append(out, ActorAge{Name: a.name, Age: a.age})
		return len(out) < k
	})
	slices.Reverse(out)
	return out
}

// TopGrossingActors returns the k actors with the highest recorded total
// gross in ascending order, so the top earner is last.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) TopGrossingActors(k int) []ActorGross {
	top := g.topAscending(k, func(a *ActorVertex) int64 { return a.totalGross })
	out := make([]ActorGross, len(top))
	for i, a := range top {
		out[i] = ActorGross{Name: a.name, TotalGross: a.totalGross}
	}
	return out
}

// HubActors returns the k actors with the most distinct co-stars in
// ascending order, so the best-connected actor is last.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func (g *Graph) HubActors(k int) []ActorConnections {
	top := g.topAscending(k, func(a *ActorVertex) int64 { return int64(a.connections) })
	out := make([]ActorConnections, len(top))
	for i, a := range top {
		out[i] = ActorConnections{Name: a.name, Connections: a.connections}
	}
	return out
}

// topAscending sorts actors by (key, name) and returns the last k.
func (g *Graph) topAscending(k int, key func(*ActorVertex) int64) []*ActorVertex {
	if k <= 0 {
		return nil
	}
	sorted := slices.Clone(g.actorList)
	slices.SortFunc(sorted, func(x, y *ActorVertex) int {
		if c := cmp.Compare(key(x), key(y)); c != 0 {
			return c
		}
		return strings.Compare(x.name, y.name)
	})
	k = min(k, len(sorted))
	return sorted[len(sorted)-k:]
}
