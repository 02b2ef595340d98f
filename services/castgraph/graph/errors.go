// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the bipartite actor/movie collaboration graph.
//
// The graph has two vertex sets, actors and movies. An edge joins an actor
// and a movie when the actor lists the movie in their filmography OR the
// movie lists the actor in its cast. Each edge carries the weight
// age(actor) * box_office(movie), stored on both endpoints.
//
// # Ownership Model
//
// A Graph copies what it needs out of the records it is built from. Vertex
// fields are unexported and only readable through accessors, so a built
// graph cannot be changed by callers.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. Building happens
// entirely inside Builder.Build, which returns a frozen graph:
//   - Single-writer access during Build
//   - Read-only access once Build returns
//
// A frozen graph can be read from any number of goroutines. Engine holds
// the current graph behind an atomic pointer and replaces it wholesale on
// rebuild; readers holding the previous graph keep a consistent view.
//
// # Lifecycle
//
//  1. Load records into a records.Store
//  2. Build with Builder.Build (or Engine.Rebuild)
//  3. Query with Distance, TraverseAll, the rankings and aggregates
//  4. Rebuild after record mutations; the graph never follows the store
//     on its own
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrVertexNotFound is returned when a query names a vertex that does
	// not exist.
	ErrVertexNotFound = errors.New("vertex not found")

	// ErrDuplicateVertex is returned when two records map to the same
	// vertex identity within one vertex set.
	ErrDuplicateVertex = errors.New("duplicate vertex")

	// ErrNilDataset is returned when either record collection is absent.
	ErrNilDataset = errors.New("dataset is missing a record collection")

	// ErrMaxVerticesExceeded is returned when the dataset is larger than the
	// builder's configured capacity.
	ErrMaxVerticesExceeded = errors.New("maximum vertex count exceeded")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrNoSnapshot is returned by Engine when no graph has been built yet.
	ErrNoSnapshot = errors.New("no graph snapshot built")
)
