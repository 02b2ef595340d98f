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
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the mutable, keyed home of the raw records.
//
// Description:
//
//	Store replaces process-global record dictionaries with an explicit
//	object handed to every consumer. All access goes through its methods,
//	which take the RWMutex. Every mutation bumps Version; MarkBuilt records
//	the version a graph was last built from so Dirty can report drift.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	data         Dataset
	path         string
	version      uint64
	builtVersion uint64
}

// NewStore creates a store holding a copy of ds.
func NewStore(ds Dataset) *Store {
	if ds.Actors == nil || ds.Movies == nil {
		empty := NewDataset()
		for k, a := range ds.Actors {
			empty.Actors[k] = a
		}
		for k, m := range ds.Movies {
			empty.Movies[k] = m
		}
		ds = empty
	}
	return &Store{data: ds.Clone(), version: 1}
}

// OpenStore loads a store from the dataset file at path.
//
// Outputs:
//
//	*Store - The loaded store, remembering path for Reload and Save.
//	error - Non-nil if the file cannot be read or decoded.
func OpenStore(path string) (*Store, error) {
	ds, err := readDatasetFile(path)
	if err != nil {
		return nil, err
	}
	s := NewStore(ds)
	s.path = path
	return s, nil
}

// Path returns the dataset file the store was opened from, or "".
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Version returns the mutation counter. It starts at 1.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Dirty reports whether records changed since the last MarkBuilt.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.builtVersion
}

// MarkBuilt records that a graph was built from the given store version.
func (s *Store) MarkBuilt(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.builtVersion {
		s.builtVersion = version
	}
}

// Snapshot returns a deep copy of all records with the version it reflects.
func (s *Store) Snapshot() (Dataset, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone(), s.version
}

// Counts returns the number of actor and movie records.
func (s *Store) Counts() (actors, movies int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Actors), len(s.data.Movies)
}

// =============================================================================
// Actor Accessors
// =============================================================================

// Actor returns the named actor record.
func (s *Store) Actor(name string) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.Actors[name]
	if !ok {
		return Actor{}, fmt.Errorf("%w: actor %q", ErrRecordNotFound, name)
	}
	return a.Clone(), nil
}

// Actors returns a copy of every actor record keyed by name.
func (s *Store) Actors() map[string]Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Actor, len(s.data.Actors))
	for k, a := range s.data.Actors {
		out[k] = a.Clone()
	}
	return out
}

// CreateActor adds a new actor from its JSON document.
//
// Outputs:
//
//	Actor - The stored record.
//	error - ErrMalformedRecord if the document is invalid, ErrDuplicateRecord
//	if the name is taken.
func (s *Store) CreateActor(raw []byte) (Actor, error) {
	a, err := DecodeActor(raw)
	if err != nil {
		return Actor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Actors[a.Name]; exists {
		return Actor{}, fmt.Errorf("%w: actor %q", ErrDuplicateRecord, a.Name)
	}
	s.data.Actors[a.Name] = a
	s.version++
	return a.Clone(), nil
}

// UpdateActor applies a partial update to the named actor.
//
// Description:
//
//	Every key in patch must be a known actor field, otherwise nothing is
//	changed. The merged record is validated as a whole before it replaces
//	the stored one. The name may be repeated but not changed.
func (s *Store) UpdateActor(name string, patch map[string]json.RawMessage) (Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data.Actors[name]
	if !ok {
		return Actor{}, fmt.Errorf("%w: actor %q", ErrRecordNotFound, name)
	}
	merged, err := mergePatch(cur, patch, actorFields)
	if err != nil {
		return Actor{}, err
	}
	updated, err := DecodeActor(merged)
	if err != nil {
		return Actor{}, err
	}
	if updated.Name != name {
		return Actor{}, fmt.Errorf("%w: actor %q", ErrRenameNotAllowed, name)
	}
	s.data.Actors[name] = updated
	s.version++
	return updated.Clone(), nil
}

// DeleteActor removes the named actor.
func (s *Store) DeleteActor(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Actors[name]; !ok {
		return fmt.Errorf("%w: actor %q", ErrRecordNotFound, name)
	}
	delete(s.data.Actors, name)
	s.version++
	return nil
}

// =============================================================================
// Movie Accessors
// =============================================================================

// Movie returns the named movie record.
func (s *Store) Movie(name string) (Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data.Movies[name]
	if !ok {
		return Movie{}, fmt.Errorf("%w: movie %q", ErrRecordNotFound, name)
	}
	return m.Clone(), nil
}

// Movies returns a copy of every movie record keyed by name.
func (s *Store) Movies() map[string]Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Movie, len(s.data.Movies))
	for k, m := range s.data.Movies {
		out[k] = m.Clone()
	}
	return out
}

// CreateMovie adds a new movie from its JSON document.
func (s *Store) CreateMovie(raw []byte) (Movie, error) {
	m, err := DecodeMovie(raw)
	if err != nil {
		return Movie{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Movies[m.Name]; exists {
		return Movie{}, fmt.Errorf("%w: movie %q", ErrDuplicateRecord, m.Name)
	}
	s.data.Movies[m.Name] = m
	s.version++
	return m.Clone(), nil
}

// UpdateMovie applies a partial update to the named movie. Same rules as
// UpdateActor.
func (s *Store) UpdateMovie(name string, patch map[string]json.RawMessage) (Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data.Movies[name]
	if !ok {
		return Movie{}, fmt.Errorf("%w: movie %q", ErrRecordNotFound, name)
	}
	merged, err := mergePatch(cur, patch, movieFields)
	if err != nil {
		return Movie{}, err
	}
	updated, err := DecodeMovie(merged)
	if err != nil {
		return Movie{}, err
	}
	if updated.Name != name {
		return Movie{}, fmt.Errorf("%w: movie %q", ErrRenameNotAllowed, name)
	}
	s.data.Movies[name] = updated
	s.version++
	return updated.Clone(), nil
}

// DeleteMovie removes the named movie.
func (s *Store) DeleteMovie(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Movies[name]; !ok {
		return fmt.Errorf("%w: movie %q", ErrRecordNotFound, name)
	}
	delete(s.data.Movies, name)
	s.version++
	return nil
}

// =============================================================================
// Bulk Operations
// =============================================================================

// ReplaceAll swaps the whole record set for a copy of ds.
func (s *Store) ReplaceAll(ds Dataset) {
	next := NewStore(ds).data
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = next
	s.version++
}

// Reload re-reads the dataset file the store was opened from.
//
// Outputs:
//
//	error - ErrNoSourceFile if the store has no file, or the decode error.
//	On error the current records are kept.
func (s *Store) Reload() error {
	path := s.Path()
	if path == "" {
		return ErrNoSourceFile
	}
	ds, err := readDatasetFile(path)
	if err != nil {
		return err
	}
	s.ReplaceAll(ds)
	return nil
}

// SaveFile writes the current records to path, creating parent directories.
// The file is written to a temporary sibling first and renamed into place.
func (s *Store) SaveFile(path string) error {
	ds, _ := s.Snapshot()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".castgraph-*.json")
	if err != nil {
		return fmt.Errorf("create temp dataset file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, ds); err != nil {
		tmp.Close()
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace dataset file: %w", err)
	}
	return nil
}

func readDatasetFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Decode(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return ds, nil
}

// mergePatch overlays patch onto the JSON form of current after checking
// every key is in known.
func mergePatch(current any, patch map[string]json.RawMessage, known map[string]struct{}) ([]byte, error) {
	for key := range patch {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
	}

	base, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode current record: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, fmt.Errorf("decode current record: %w", err)
	}
	for key, val := range patch {
		fields[key] = val
	}
	return json.Marshal(fields)
}
