// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package records

import (
	"encoding/json"
	"slices"
)

// Discriminator tags written to the json_class field of serialized records.
const (
	ActorClass = "Actor"
	MovieClass = "Movie"
)

// Actor is a raw actor record.
//
// Movies is the filmography as recorded on the actor side. It may disagree
// with the cast lists of the movies themselves; the graph builder takes the
// union of both.
type Actor struct {
	Name       string   `json:"name" validate:"required"`
	Age        int      `json:"age" validate:"gte=0,lte=150"`
	Movies     []string `json:"movies" validate:"required"`
	TotalGross int64    `json:"total_gross" validate:"gte=0"`
}

// Clone returns a deep copy of the record.
func (a Actor) Clone() Actor {
	a.Movies = slices.Clone(a.Movies)
	return a
}

// MarshalJSON writes the record with its json_class discriminator.
func (a Actor) MarshalJSON() ([]byte, error) {
	type plain Actor
	return json.Marshal(struct {
		plain
		JSONClass string `json:"json_class"`
	}{plain: plain(a), JSONClass: ActorClass})
}

// Movie is a raw movie record.
type Movie struct {
	Name      string   `json:"name" validate:"required"`
	Year      int      `json:"year" validate:"gte=0"`
	BoxOffice int64    `json:"box_office" validate:"gte=0"`
	Actors    []string `json:"actors" validate:"required"`
	WikiPage  string   `json:"wiki_page"`
}

// Clone returns a deep copy of the record.
func (m Movie) Clone() Movie {
	m.Actors = slices.Clone(m.Actors)
	return m
}

// MarshalJSON writes the record with its json_class discriminator.
func (m Movie) MarshalJSON() ([]byte, error) {
	type plain Movie
	return json.Marshal(struct {
		plain
		JSONClass string `json:"json_class"`
	}{plain: plain(m), JSONClass: MovieClass})
}

// Dataset is a complete pair of record collections keyed by name.
type Dataset struct {
	Actors map[string]Actor
	Movies map[string]Movie
}

// NewDataset returns an empty dataset with both collections allocated.
func NewDataset() Dataset {
	return Dataset{
		Actors: make(map[string]Actor),
		Movies: make(map[string]Movie),
	}
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Actors: make(map[string]Actor, len(d.Actors)),
		Movies: make(map[string]Movie, len(d.Movies)),
	}
	for k, a := range d.Actors {
		out.Actors[k] = a.Clone()
	}
	for k, m := range d.Movies {
		out.Movies[k] = m.Clone()
	}
	return out
}

// MarshalJSON writes the dataset as the two-element [actors, movies] array.
func (d Dataset) MarshalJSON() ([]byte, error) {
	actors := d.Actors
	if actors == nil {
		actors = map[string]Actor{}
	}
	movies := d.Movies
	if movies == nil {
		movies = map[string]Movie{}
	}
	return json.Marshal([2]any{actors, movies})
}

// actorFields and movieFields are the keys an update may name.
var (
	actorFields = map[string]struct{}{
		"name": {}, "age": {}, "movies": {}, "total_gross": {}, "json_class": {},
	}
	movieFields = map[string]struct{}{
		"name": {}, "year": {}, "box_office": {}, "actors": {}, "wiki_page": {}, "json_class": {},
	}
)
