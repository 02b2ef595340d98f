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

	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

// Dataset converts the graph's vertices back into records.
//
// The recorded membership lists are returned as they were loaded, not as
// derived from adjacency, so Build(g.Dataset()) reproduces g.
func (g *Graph) Dataset() records.Dataset {
	ds := records.Dataset{
		Actors: make(map[string]records.Actor, len(g.actors)),
		Movies: make(map[string]records.Movie, len(g.movies)),
	}
	for name, a := range g.actors {
		ds.Actors[name] = records.Actor{
			Name:       a.name,
			Age:        a.age,
			Movies:     slices.Clone(a.filmography),
			TotalGross: a.totalGross,
		}
	}
	for name, m := range g.movies {
		ds.Movies[name] = records.Movie{
			Name:      m.name,
			Year:      m.year,
			BoxOffice: m.boxOffice,
			Actors:    slices.Clone(m.cast),
			WikiPage:  m.wikiPage,
		}
	}
	return ds
}
