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

import "slices"

// MoviesFromYear returns the names of movies released in year, sorted.
func (g *Graph) MoviesFromYear(year int) []string {
	movies := g.moviesByYear[year]
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.name
	}
	return out
}

// ActorsFromYear returns the names of actors adjacent to any movie released
// in year, deduplicated and sorted.
func (g *Graph) ActorsFromYear(year int) []string {
	seen := make(map[string]struct{})
	for _, m := range g.moviesByYear[year] {
		for a := range m.actors {
			seen[a.name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// GrossForAgeGroup sums the recorded total gross of actors whose age is in
// [start, end]. It returns 0 when start > end.
func (g *Graph) GrossForAgeGroup(start, end int) int64 {
	var total int64
	g.eachActorInAgeRange(start, end, func(a *ActorVertex) {
		total += a.totalGross
	})
	return total
}

// CountActorsInAgeGroup counts actors whose age is in [start, end]. It
// returns 0 when start > end.
func (g *Graph) CountActorsInAgeGroup(start, end int) int {
	var n int
	g.eachActorInAgeRange(start, end, func(*ActorVertex) {
		n++
	})
	return n
}

// eachActorInAgeRange walks the age index from start up to end inclusive.
// An empty pivot name sorts before every actor of the same age.
func (g *Graph) eachActorInAgeRange(start, end int, fn func(*ActorVertex)) {
	if start > end || g.ageIndex == nil {
		return
	}
	g.ageIndex.Ascend(&ActorVertex{age: start}, func(a *ActorVertex) bool {
		if a.age > end {
			return false
		}
		fn(a)
		return true
	})
}
