// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package records holds the raw actor and movie records the cast graph is
// built from.
//
// Records are keyed by name in two independent collections. The on-disk and
// wire shape is a two-element JSON array:
//
//	[
//	  {"Bruce Willis": {"name": "Bruce Willis", "age": 61, ...}},
//	  {"Blind Date":   {"name": "Blind Date", "year": 1987, ...}}
//	]
//
// # Ownership Model
//
// The Store owns its records. Every value handed out (Actor, Movie, Dataset)
// is a copy, so callers may keep or mutate it freely.
//
// # Thread Safety
//
// Store is safe for concurrent use. Reads take a shared lock, mutations an
// exclusive one. Mutations never reach a built graph; callers rebuild.
package records

import "errors"

// Sentinel errors for record operations.
var (
	// ErrRecordNotFound is returned when a named actor or movie does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned when creating a record whose name is
	// already taken within its collection.
	ErrDuplicateRecord = errors.New("duplicate record name")

	// ErrMalformedRecord is returned when a record is missing a required
	// field or a field has the wrong type or an out-of-range value.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMalformedDataset is returned when the dataset document does not
	// have the [actors, movies] shape.
	ErrMalformedDataset = errors.New("malformed dataset")

	// ErrUnknownField is returned when an update names a field the record
	// type does not have. The whole update is rejected.
	ErrUnknownField = errors.New("unknown record field")

	// ErrRenameNotAllowed is returned when an update tries to change the
	// name a record is keyed by.
	ErrRenameNotAllowed = errors.New("record rename not allowed")

	// ErrNoSourceFile is returned when reloading a store that was never
	// loaded from a file.
	ErrNoSourceFile = errors.New("store has no source file")
)
