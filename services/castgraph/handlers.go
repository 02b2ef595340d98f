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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Handlers contains the HTTP handlers for castgraph.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// handlerLogger returns the request-scoped logger.
func handlerLogger(c *gin.Context, name string) *slog.Logger {
	return slog.With("request_id", getOrCreateRequestID(c), "handler", name)
}

// writeError classifies err and writes the error response.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classifyError(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if status == http.StatusBadRequest {
		resp.Status = StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "status", status)
	} else {
		logger.Warn("request rejected", "error", err, "status", status)
	}
	c.JSON(status, resp)
}

// rawFilterQuery returns the unescaped query string. The whole string is
// the filter expression, so '&' is an operator rather than a separator.
func rawFilterQuery(c *gin.Context) (string, error) {
	q, err := url.PathUnescape(c.Request.URL.RawQuery)
	if err != nil {
		return "", fmt.Errorf("%w: query string: %v", ErrInvalidParameter, err)
	}
	return q, nil
}

// bindPatch decodes a JSON object body into a field patch.
func bindPatch(c *gin.Context) (map[string]json.RawMessage, error) {
	raw, err := readBody(c)
	if err != nil {
		return nil, err
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyBody, err)
	}
	if patch == nil {
		return nil, ErrEmptyBody
	}
	return patch, nil
}

// readBody returns the raw request body. The body must be non-empty and
// sent as application/json.
func readBody(c *gin.Context) ([]byte, error) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		return nil, ErrEmptyBody
	}
	if ct := c.ContentType(); ct != binding.MIMEJSON {
		return nil, fmt.Errorf("%w: %q", ErrNotJSON, ct)
	}
	return raw, nil
}

func deletedResponse(name string) StatusResponse {
	return StatusResponse{Status: "Deletion of " + name + " was successful"}
}

// =============================================================================
// Health
// =============================================================================

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthBody("healthy"))
}

// HandleReady handles GET /api/ready.
//
// Response:
//
//	200 OK: a snapshot is published
//	503 Service Unavailable: no snapshot yet
func (h *Handlers) HandleReady(c *gin.Context) {
	if !h.svc.Ready() {
		c.JSON(http.StatusServiceUnavailable, h.healthBody("not_ready"))
		return
	}
	c.JSON(http.StatusOK, h.healthBody("ready"))
}

func (h *Handlers) healthBody(status string) HealthResponse {
	resp := HealthResponse{
		Status:       status,
		Version:      ServiceVersion,
		StoreVersion: h.svc.Store().Version(),
		StoreDirty:   h.svc.Store().Dirty(),
	}
	if g := h.svc.Engine().Current(); g != nil {
		resp.SnapshotVersion = g.Version()
	}
	return resp
}

// =============================================================================
// Actors
// =============================================================================

// HandleGetActor handles GET /api/actors/:name.
//
// Response:
//
//	200 OK: the actor record
//	400 Bad Request: no such actor
func (h *Handlers) HandleGetActor(c *gin.Context) {
	logger := handlerLogger(c, "HandleGetActor")
	a, err := h.svc.Actor(c.Param("name"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// HandleFilterActors handles GET /api/actors/?<filter>.
//
// Description:
//
//	The raw query string is the filter expression, e.g.
//	?name="Bruce"|age=61&movies="Die Hard". An empty query returns every
//	actor and an unknown field returns an empty object.
//
// Response:
//
//	200 OK: map of name to actor record
//	400 Bad Request: malformed query
func (h *Handlers) HandleFilterActors(c *gin.Context) {
	logger := handlerLogger(c, "HandleFilterActors")
	query, err := rawFilterQuery(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	matches, err := h.svc.FilterActors(query)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

// HandleUpdateActor handles PUT /api/actors/:name.
//
// Response:
//
//	200 OK: the updated record
//	400 Bad Request: no such actor, unknown field, rename, or invalid value
func (h *Handlers) HandleUpdateActor(c *gin.Context) {
	logger := handlerLogger(c, "HandleUpdateActor")
	patch, err := bindPatch(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	a, err := h.svc.UpdateActor(c.Request.Context(), c.Param("name"), patch)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("actor updated", "name", a.Name)
	c.JSON(http.StatusOK, a)
}

// HandleCreateActor handles POST /api/actors/.
//
// Response:
//
//	201 Created: the stored record
//	400 Bad Request: missing or duplicate name, or invalid fields
func (h *Handlers) HandleCreateActor(c *gin.Context) {
	logger := handlerLogger(c, "HandleCreateActor")
	raw, err := readBody(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	a, err := h.svc.CreateActor(c.Request.Context(), raw)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("actor created", "name", a.Name)
	c.JSON(http.StatusCreated, a)
}

// HandleDeleteActor handles DELETE /api/actors/:name.
//
// Response:
//
//	200 OK: {"status": "Deletion of <name> was successful"}
//	400 Bad Request: no such actor
func (h *Handlers) HandleDeleteActor(c *gin.Context) {
	logger := handlerLogger(c, "HandleDeleteActor")
	name := c.Param("name")
	if err := h.svc.DeleteActor(c.Request.Context(), name); err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("actor deleted", "name", name)
	c.JSON(http.StatusOK, deletedResponse(name))
}

// =============================================================================
// Movies
// =============================================================================

// HandleGetMovie handles GET /api/movies/:name.
func (h *Handlers) HandleGetMovie(c *gin.Context) {
	logger := handlerLogger(c, "HandleGetMovie")
	m, err := h.svc.Movie(c.Param("name"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// HandleFilterMovies handles GET /api/movies/?<filter>.
func (h *Handlers) HandleFilterMovies(c *gin.Context) {
	logger := handlerLogger(c, "HandleFilterMovies")
	query, err := rawFilterQuery(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	matches, err := h.svc.FilterMovies(query)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

// HandleUpdateMovie handles PUT /api/movies/:name.
func (h *Handlers) HandleUpdateMovie(c *gin.Context) {
	logger := handlerLogger(c, "HandleUpdateMovie")
	patch, err := bindPatch(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	m, err := h.svc.UpdateMovie(c.Request.Context(), c.Param("name"), patch)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("movie updated", "name", m.Name)
	c.JSON(http.StatusOK, m)
}

// HandleCreateMovie handles POST /api/movies/.
func (h *Handlers) HandleCreateMovie(c *gin.Context) {
	logger := handlerLogger(c, "HandleCreateMovie")
	raw, err := readBody(c)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	m, err := h.svc.CreateMovie(c.Request.Context(), raw)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("movie created", "name", m.Name)
	c.JSON(http.StatusCreated, m)
}

// HandleDeleteMovie handles DELETE /api/movies/:name.
func (h *Handlers) HandleDeleteMovie(c *gin.Context) {
	logger := handlerLogger(c, "HandleDeleteMovie")
	name := c.Param("name")
	if err := h.svc.DeleteMovie(c.Request.Context(), name); err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("movie deleted", "name", name)
	c.JSON(http.StatusOK, deletedResponse(name))
}
