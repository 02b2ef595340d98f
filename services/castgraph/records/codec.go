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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// recordValidate is shared by every decode and build-time check.
var recordValidate = validator.New(validator.WithRequiredStructEnabled())

// actorDocument is the wire form of an actor. Pointer fields distinguish a
// missing field from a zero value.
type actorDocument struct {
	Name       *string  `json:"name" validate:"required,min=1"`
	Age        *int     `json:"age" validate:"required,gte=0,lte=150"`
	Movies     []string `json:"movies" validate:"required"`
	TotalGross *int64   `json:"total_gross" validate:"required,gte=0"`
	JSONClass  string   `json:"json_class" validate:"omitempty,eq=Actor"`
}

func (d actorDocument) record() Actor {
	return Actor{
		Name:       *d.Name,
		Age:        *d.Age,
		Movies:     d.Movies,
		TotalGross: *d.TotalGross,
	}
}

// movieDocument is the wire form of a movie.
type movieDocument struct {
	Name      *string  `json:"name" validate:"required,min=1"`
	Year      *int     `json:"year" validate:"required,gte=0"`
	BoxOffice *int64   `json:"box_office" validate:"required,gte=0"`
	Actors    []string `json:"actors" validate:"required"`
	WikiPage  *string  `json:"wiki_page" validate:"required"`
	JSONClass string   `json:"json_class" validate:"omitempty,eq=Movie"`
}

func (d movieDocument) record() Movie {
	return Movie{
		Name:      *d.Name,
		Year:      *d.Year,
		BoxOffice: *d.BoxOffice,
		Actors:    d.Actors,
		WikiPage:  *d.WikiPage,
	}
}

// Decode reads a dataset in the [actors, movies] shape.
//
// Description:
//
//	Every record is decoded and validated. The first malformed record aborts
//	the decode; no partial dataset is returned. Unknown record fields are
//	ignored. A json_class field, when present, must match its collection.
//
// Inputs:
//
//	r - Source of the JSON document.
//
// Outputs:
//
//	Dataset - The decoded records.
//	error - Wraps ErrMalformedDataset or ErrMalformedRecord on bad input.
func Decode(r io.Reader) (Dataset, error) {
	var parts []json.RawMessage
	if err := json.NewDecoder(r).Decode(&parts); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	if len(parts) != 2 {
		return Dataset{}, fmt.Errorf("%w: expected [actors, movies], got %d elements", ErrMalformedDataset, len(parts))
	}

	var rawActors, rawMovies map[string]json.RawMessage
	if err := json.Unmarshal(parts[0], &rawActors); err != nil || rawActors == nil {
		return Dataset{}, fmt.Errorf("%w: actors collection is not an object", ErrMalformedDataset)
	}
	if err := json.Unmarshal(parts[1], &rawMovies); err != nil || rawMovies == nil {
		return Dataset{}, fmt.Errorf("%w: movies collection is not an object", ErrMalformedDataset)
	}

	ds := Dataset{
		Actors: make(map[string]Actor, len(rawActors)),
		Movies: make(map[string]Movie, len(rawMovies)),
	}
	for key, raw := range rawActors {
		a, err := DecodeActor(raw)
		if err != nil {
			return Dataset{}, fmt.Errorf("actor %q: %w", key, err)
		}
		if a.Name != key {
			return Dataset{}, fmt.Errorf("%w: actor keyed %q is named %q", ErrMalformedRecord, key, a.Name)
		}
		ds.Actors[key] = a
	}
	for key, raw := range rawMovies {
		m, err := DecodeMovie(raw)
		if err != nil {
			return Dataset{}, fmt.Errorf("movie %q: %w", key, err)
		}
		if m.Name != key {
			return Dataset{}, fmt.Errorf("%w: movie keyed %q is named %q", ErrMalformedRecord, key, m.Name)
		}
		ds.Movies[key] = m
	}
	return ds, nil
}

// Encode writes the dataset in the [actors, movies] shape with json_class
// discriminators on every record.
func Encode(w io.Writer, ds Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ds)
}

// DecodeActor decodes and validates a single actor record.
func DecodeActor(raw []byte) (Actor, error) {
	var doc actorDocument
	if err := strictUnmarshal(raw, &doc); err != nil {
		return Actor{}, err
	}
	if err := recordValidate.Struct(doc); err != nil {
		return Actor{}, fmt.Errorf("%w: %s", ErrMalformedRecord, describeValidation(err))
	}
	return doc.record(), nil
}

// DecodeMovie decodes and validates a single movie record.
func DecodeMovie(raw []byte) (Movie, error) {
	var doc movieDocument
	if err := strictUnmarshal(raw, &doc); err != nil {
		return Movie{}, err
	}
	if err := recordValidate.Struct(doc); err != nil {
		return Movie{}, fmt.Errorf("%w: %s", ErrMalformedRecord, describeValidation(err))
	}
	return doc.record(), nil
}

// ValidateActor checks a record against its field constraints and the key it
// is stored under.
func ValidateActor(key string, a Actor) error {
	if err := recordValidate.Struct(a); err != nil {
		return fmt.Errorf("%w: actor %q: %s", ErrMalformedRecord, key, describeValidation(err))
	}
	if a.Name != key {
		return fmt.Errorf("%w: actor keyed %q is named %q", ErrMalformedRecord, key, a.Name)
	}
	return nil
}

// ValidateMovie checks a record against its field constraints and the key it
// is stored under.
func ValidateMovie(key string, m Movie) error {
	if err := recordValidate.Struct(m); err != nil {
		return fmt.Errorf("%w: movie %q: %s", ErrMalformedRecord, key, describeValidation(err))
	}
	if m.Name != key {
		return fmt.Errorf("%w: movie keyed %q is named %q", ErrMalformedRecord, key, m.Name)
	}
	return nil
}

// strictUnmarshal decodes raw into v, mapping syntax and type errors to
// ErrMalformedRecord. Numbers must be integers.
func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %q has wrong type %s", ErrMalformedRecord, typeErr.Field, typeErr.Value)
		}
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}

// describeValidation flattens validator errors into "field:tag" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("field %s failed %q", jsonFieldName(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// jsonFieldName maps a Go field name to its JSON key.
func jsonFieldName(goName string) string {
	switch goName {
	case "TotalGross":
		return "total_gross"
	case "BoxOffice":
		return "box_office"
	case "WikiPage":
		return "wiki_page"
	case "JSONClass":
		return "json_class"
	default:
		return strings.ToLower(goName)
	}
}
