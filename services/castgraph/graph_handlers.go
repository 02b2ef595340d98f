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
	"fmt"
	"net/http"
	"strconv"

	"github.com/AleutianAI/castgraph/services/castgraph/observability"
	"github.com/gin-gonic/gin"
)

// intQuery parses an integer query parameter.
//
// Inputs:
//
//	name - Parameter name.
//	def - Value used when the parameter is absent.
//	required - When true an absent parameter is an error.
//
// Outputs:
//
//	int - The parsed value.
//	error - ErrInvalidParameter when absent and required, or not an integer.
func intQuery(c *gin.Context, name string, def int, required bool) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		if required {
			return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameter, name)
		}
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidParameter, name, raw)
	}
	return v, nil
}

// intParam parses an integer path parameter.
func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Param(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidParameter, name, raw)
	}
	return v, nil
}

// HandleDistance handles GET /api/graph/distance?from=&to=.
//
// Response:
//
//	200 OK: DistanceResponse, distance -1 when unreachable
//	400 Bad Request: missing from or to
//	404 Not Found: from is not an actor
//	503 Service Unavailable: no snapshot
func (h *Handlers) HandleDistance(c *gin.Context) {
	logger := handlerLogger(c, "HandleDistance")
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		writeError(c, logger, fmt.Errorf("%w: from and to are required", ErrInvalidParameter))
		return
	}
	resp, err := h.svc.Distance(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleOldest handles GET /api/graph/oldest?k=.
//
// Response:
//
//	200 OK: []graph.ActorAge ascending by age; k <= 0 gives []
//	400 Bad Request: k is not an integer
func (h *Handlers) HandleOldest(c *gin.Context) {
	logger := handlerLogger(c, "HandleOldest")
	k, err := intQuery(c, "k", h.svc.Config().DefaultRankingSize, false)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.OldestActors(c.Request.Context(), k)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleTopGrossing handles GET /api/graph/top-grossing?k=.
func (h *Handlers) HandleTopGrossing(c *gin.Context) {
	logger := handlerLogger(c, "HandleTopGrossing")
	k, err := intQuery(c, "k", h.svc.Config().DefaultRankingSize, false)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.TopGrossingActors(c.Request.Context(), k)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHubs handles GET /api/graph/hubs?k=.
func (h *Handlers) HandleHubs(c *gin.Context) {
	logger := handlerLogger(c, "HandleHubs")
	k, err := intQuery(c, "k", h.svc.Config().DefaultRankingSize, false)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.HubActors(c.Request.Context(), k)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleMoviesFromYear handles GET /api/graph/years/:year/movies.
func (h *Handlers) HandleMoviesFromYear(c *gin.Context) {
	logger := handlerLogger(c, "HandleMoviesFromYear")
	year, err := intParam(c, "year")
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.MoviesFromYear(c.Request.Context(), year)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleActorsFromYear handles GET /api/graph/years/:year/actors.
func (h *Handlers) HandleActorsFromYear(c *gin.Context) {
	logger := handlerLogger(c, "HandleActorsFromYear")
	year, err := intParam(c, "year")
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.ActorsFromYear(c.Request.Context(), year)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ageRange parses the required start and end parameters.
func ageRange(c *gin.Context) (int, int, error) {
	start, err := intQuery(c, "start", 0, true)
	if err != nil {
		return 0, 0, err
	}
	end, err := intQuery(c, "end", 0, true)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// HandleAgeGross handles GET /api/graph/age-groups/gross?start=&end=.
//
// Response:
//
//	200 OK: AgeGroupResponse; start > end gives 0
//	400 Bad Request: missing or non-integer start or end
func (h *Handlers) HandleAgeGross(c *gin.Context) {
	logger := handlerLogger(c, "HandleAgeGross")
	start, end, err := ageRange(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.GrossForAgeGroup(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAgeCount handles GET /api/graph/age-groups/count?start=&end=.
func (h *Handlers) HandleAgeCount(c *gin.Context) {
	logger := handlerLogger(c, "HandleAgeCount")
	start, end, err := ageRange(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp, err := h.svc.CountActorsInAgeGroup(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAgeGroups handles GET /api/graph/age-groups.
func (h *Handlers) HandleAgeGroups(c *gin.Context) {
	logger := handlerLogger(c, "HandleAgeGroups")
	resp, err := h.svc.AgeGroups(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /api/graph/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	logger := handlerLogger(c, "HandleStats")
	resp, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSeparations handles GET /api/graph/separations.
//
// Response:
//
//	200 OK: graph.SeparationHistogram
//	504 Gateway Timeout: the analysis exceeded the query timeout
func (h *Handlers) HandleSeparations(c *gin.Context) {
	logger := handlerLogger(c, "HandleSeparations")
	resp, err := h.svc.Separations(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExport handles GET /api/graph/export. The body is the snapshot's
// records in the [actors, movies] dataset shape.
func (h *Handlers) HandleExport(c *gin.Context) {
	logger := handlerLogger(c, "HandleExport")
	ds, err := h.svc.Export(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

// HandleRebuild handles POST /api/graph/rebuild.
//
// Description:
//
//	Builds a graph from the current records and publishes it. Concurrent
//	calls share one build.
//
// Response:
//
//	200 OK: RebuildResponse
//	500 Internal Server Error: build failed; the previous snapshot is kept
//	504 Gateway Timeout: the build outlived QueryTimeout
func (h *Handlers) HandleRebuild(c *gin.Context) {
	logger := handlerLogger(c, "HandleRebuild")
	ctx, cancel := h.rebuildContext(c)
	defer cancel()
	g, err := h.svc.Rebuild(ctx, observability.TriggerHTTP)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("graph rebuilt", "version", g.Version())
	c.JSON(http.StatusOK, rebuildResponse(g))
}

// rebuildContext bounds a rebuild started over HTTP by QueryTimeout.
func (h *Handlers) rebuildContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.svc.Config().QueryTimeout)
}

// HandleReload handles POST /api/graph/reload.
//
// Response:
//
//	200 OK: RebuildResponse
//	409 Conflict: the store was not loaded from a file
//	422 Unprocessable Entity: the file is not a valid dataset
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := handlerLogger(c, "HandleReload")
	ctx, cancel := h.rebuildContext(c)
	defer cancel()
	g, err := h.svc.Reload(ctx, observability.TriggerHTTP)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("dataset reloaded", "version", g.Version())
	c.JSON(http.StatusOK, rebuildResponse(g))
}
