// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filter implements the boolean record query language used by the
// record listing endpoints.
//
// A query is a chain of field=value clauses joined by & and |:
//
//	name="Bruce"&age=61
//	year=1987|year=1988
//
// Evaluation splits on the first & before looking at |. The left side of an
// & narrows the input and the right side runs over what is left. Both sides
// of a | run over the same input and their results are unioned. So
// "a=1&b=2|c=3" means a=1 AND (b=2 OR c=3).
//
// Matching depends on the field kind:
//   - string fields match by substring
//   - list fields match by exact membership
//   - numeric fields match by exact integer equality, and only when the
//     value is all decimal digits
//
// Unknown fields match nothing.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedQuery is returned for a clause that is not field=value.
var ErrMalformedQuery = errors.New("malformed query")

// Op is a boolean combinator.
type Op int

const (
	// OpClause is a leaf field=value test.
	OpClause Op = iota

	// OpAnd narrows: the right side runs over the left side's result.
	OpAnd

	// OpOr unions both sides run over the same input.
	OpOr
)

// Expr is a parsed query.
type Expr struct {
	Op    Op
	Field string
	Value string
	Left  *Expr
	Right *Expr
}

// String renders the expression with explicit grouping.
func (e *Expr) String() string {
	if e == nil {
		return "<all>"
	}
	switch e.Op {
	case OpAnd:
		return "(" + e.Left.String() + " & " + e.Right.String() + ")"
	case OpOr:
		return "(" + e.Left.String() + " | " + e.Right.String() + ")"
	default:
		return e.Field + "=" + strconv.Quote(e.Value)
	}
}

// Parse turns a query string into an expression tree.
//
// Description:
//
//	Surrounding whitespace is trimmed. An empty query parses to nil, which
//	Evaluate treats as "everything".
//
// Outputs:
//
//	*Expr - The expression, or nil for an empty query.
//	error - Wraps ErrMalformedQuery for a clause without '=' or with an
//	empty field name.
func Parse(query string) (*Expr, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return parse(query)
}

func parse(query string) (*Expr, error) {
	if left, right, ok := strings.Cut(query, "&"); ok {
		return binary(OpAnd, left, right)
	}
	if left, right, ok := strings.Cut(query, "|"); ok {
		return binary(OpOr, left, right)
	}

	field, value, ok := strings.Cut(query, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return nil, fmt.Errorf("%w: clause %q is not field=value", ErrMalformedQuery, query)
	}
	return &Expr{Op: OpClause, Field: field, Value: unquote(strings.TrimSpace(value))}, nil
}

func binary(op Op, left, right string) (*Expr, error) {
	l, err := parse(strings.TrimSpace(left))
	if err != nil {
		return nil, err
	}
	r, err := parse(strings.TrimSpace(right))
	if err != nil {
		return nil, err
	}
	return &Expr{Op: op, Left: l, Right: r}, nil
}

// unquote drops the first and last character of a value that starts with
// a quote. The closing quote is not checked, so `"Bruce Willis` becomes
// `Bruce Willi`, which still matches by substring.
func unquote(v string) string {
	if v == "" || (v[0] != '"' && v[0] != '\'') {
		return v
	}
	if len(v) < 2 {
		return ""
	}
	return v[1 : len(v)-1]
}

// Matcher reports whether record rec satisfies field=value. It returns false
// for fields the record type does not have.
type Matcher[T any] func(rec T, field, value string) bool

// Evaluate applies expr to records and returns the matching subset.
//
// Description:
//
//	The input map is never modified. A nil expr returns a shallow copy of
//	records. Results of | are unioned by key.
//
// Inputs:
//
//	expr - Parsed query, may be nil.
//	records - Records keyed by name.
//	match - Field matcher for the record type.
//
// Outputs:
//
//	map[string]T - Matching records keyed by name. Never nil.
func Evaluate[T any](expr *Expr, records map[string]T, match Matcher[T]) map[string]T {
	if expr == nil {
		out := make(map[string]T, len(records))
		for k, v := range records {
			out[k] = v
		}
		return out
	}

	switch expr.Op {
	case OpAnd:
		return Evaluate(expr.Right, Evaluate(expr.Left, records, match), match)
	case OpOr:
		out := Evaluate(expr.Left, records, match)
		for k, v := range Evaluate(expr.Right, records, match) {
			out[k] = v
		}
		return out
	default:
		out := make(map[string]T)
		for k, v := range records {
			if match(v, expr.Field, expr.Value) {
				out[k] = v
			}
		}
		return out
	}
}

// Query parses and evaluates in one step.
func Query[T any](query string, records map[string]T, match Matcher[T]) (map[string]T, error) {
	expr, err := Parse(query)
	if err != nil {
		return nil, err
	}
	return Evaluate(expr, records, match), nil
}

// =============================================================================
// Field Helpers
// =============================================================================

// MatchSubstring is the string field rule.
func MatchSubstring(field, value string) bool {
	return strings.Contains(field, value)
}

// MatchMember is the list field rule.
func MatchMember(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// MatchInt is the numeric field rule. Values that are not all digits never
// match, so signs, decimals and blanks are rejected.
func MatchInt(field int64, value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false
	}
	return n == field
}
