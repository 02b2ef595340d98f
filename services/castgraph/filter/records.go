// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import "github.com/AleutianAI/castgraph/services/castgraph/records"

// MatchActor is the Matcher for actor records.
//
// Fields: name (substring), movies (membership), age and total_gross
// (exact integer).
func MatchActor(a records.Actor, field, value string) bool {
	switch field {
	case "name":
		return MatchSubstring(a.Name, value)
	case "movies":
		return MatchMember(a.Movies, value)
	case "age":
		return MatchInt(int64(a.Age), value)
	case "total_gross":
		return MatchInt(a.TotalGross, value)
	default:
		return false
	}
}

// MatchMovie is the Matcher for movie records.
//
// Fields: name (substring), actors (membership), year and box_office
// (exact integer).
func MatchMovie(m records.Movie, field, value string) bool {
	switch field {
	case "name":
		return MatchSubstring(m.Name, value)
	case "actors":
		return MatchMember(m.Actors, value)
	case "year":
		return MatchInt(int64(m.Year), value)
	case "box_office":
		return MatchInt(m.BoxOffice, value)
	default:
		return false
	}
}

// Actors filters actor records with query.
func Actors(query string, actors map[string]records.Actor) (map[string]records.Actor, error) {
	return Query(query, actors, MatchActor)
}

// Movies filters movie records with query.
func Movies(query string, movies map[string]records.Movie) (map[string]records.Movie, error) {
	return Query(query, movies, MatchMovie)
}
