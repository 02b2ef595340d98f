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
	"context"
	"errors"
	"net/http"

	"github.com/AleutianAI/castgraph/services/castgraph/filter"
	"github.com/AleutianAI/castgraph/services/castgraph/graph"
	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

// Sentinel errors for the service layer.
var (
	// ErrInvalidParameter is returned when a path or query parameter is
	// missing or not a valid integer.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEmptyBody is returned when a write request has no JSON body.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrNotJSON is returned when a write request body is not sent as
	// application/json.
	ErrNotJSON = errors.New("request body must be application/json")
)

// StatusBadRequest is the status string carried by every 400 response.
const StatusBadRequest = "Bad request. Make sure you are providing valid parameters"

// classifyError maps an error to an HTTP status and error code.
//
// Description:
//
//	Record lookups that miss answer 400 rather than 404, matching the
//	record API's long-standing contract. Only the graph distance endpoint
//	uses 404, for an unknown source actor.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, records.ErrRecordNotFound):
		return http.StatusBadRequest, "NOT_FOUND"
	case errors.Is(err, records.ErrDuplicateRecord):
		return http.StatusBadRequest, "DUPLICATE_RECORD"
	case errors.Is(err, records.ErrUnknownField):
		return http.StatusBadRequest, "UNKNOWN_FIELD"
	case errors.Is(err, records.ErrRenameNotAllowed):
		return http.StatusBadRequest, "RENAME_NOT_ALLOWED"
	case errors.Is(err, records.ErrMalformedRecord):
		return http.StatusBadRequest, "INVALID_RECORD"
	case errors.Is(err, filter.ErrMalformedQuery):
		return http.StatusBadRequest, "MALFORMED_QUERY"
	case errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest, "INVALID_PARAMETER"
	case errors.Is(err, ErrEmptyBody):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, ErrNotJSON):
		return http.StatusBadRequest, "UNSUPPORTED_CONTENT_TYPE"
	case errors.Is(err, graph.ErrVertexNotFound):
		return http.StatusNotFound, "ACTOR_NOT_FOUND"
	case errors.Is(err, graph.ErrNoSnapshot):
		return http.StatusServiceUnavailable, "NO_SNAPSHOT"
	case errors.Is(err, records.ErrNoSourceFile):
		return http.StatusConflict, "NO_SOURCE_FILE"
	case errors.Is(err, records.ErrMalformedDataset):
		return http.StatusUnprocessableEntity, "INVALID_DATASET"
	case errors.Is(err, graph.ErrMaxVerticesExceeded):
		return http.StatusUnprocessableEntity, "GRAPH_TOO_LARGE"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, graph.ErrBuildCancelled):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
