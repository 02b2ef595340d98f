// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package castgraph

import (
	"time"

	"github.com/AleutianAI/castgraph/services/castgraph/graph"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Status is StatusBadRequest on 400 responses and empty otherwise.
	Status string `json:"status,omitempty"`

	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`
}

// StatusResponse is the body of a successful delete.
type StatusResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the body of GET /api/health and GET /api/ready.
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	SnapshotVersion uint64 `json:"snapshot_version"`
	StoreVersion    uint64 `json:"store_version"`
	StoreDirty      bool   `json:"store_dirty"`
}

// DistanceResponse is the body of GET /api/graph/distance.
type DistanceResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Distance int    `json:"distance"`
}

// NamesResponse lists movie or actor names for a year.
type NamesResponse struct {
	Year  int      `json:"year"`
	Names []string `json:"names"`
}

// AgeGroupResponse is the body of the age-group aggregate endpoints.
type AgeGroupResponse struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Value int64 `json:"value"`
}

// StatsResponse is the body of GET /api/graph/stats.
type StatsResponse struct {
	Summary     graph.Summary         `json:"summary"`
	Connections graph.ConnectionStats `json:"connections"`
	Components  int                   `json:"components"`
	AllVisited  bool                  `json:"all_visited"`
}

// RebuildResponse is the body of POST /api/graph/rebuild and reload.
type RebuildResponse struct {
	Version       uint64    `json:"version"`
	SourceVersion uint64    `json:"source_version"`
	Actors        int       `json:"actors"`
	Movies        int       `json:"movies"`
	Edges         int       `json:"edges"`
	BuiltAt       time.Time `json:"built_at"`
}

func rebuildResponse(g *graph.Graph) RebuildResponse {
	return RebuildResponse{
		Version:       g.Version(),
		SourceVersion: g.SourceVersion(),
		Actors:        g.ActorCount(),
		Movies:        g.MovieCount(),
		Edges:         g.EdgeCount(),
		BuiltAt:       g.BuiltAt(),
	}
}
