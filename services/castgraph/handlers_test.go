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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/castgraph/services/castgraph/graph"
	"github.com/AleutianAI/castgraph/services/castgraph/observability"
	"github.com/AleutianAI/castgraph/services/castgraph/records"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	handlers := NewHandlers(svc)
	api := router.Group("/api")
	RegisterRoutes(api, handlers)
	return router
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// =============================================================================
// Health
// =============================================================================

func TestHandleReady(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", decodeBody[HealthResponse](t, w).Status)

	w = doRequest(router, http.MethodPost, "/api/graph/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[HealthResponse](t, w)
	assert.Equal(t, uint64(1), resp.SnapshotVersion)
	assert.False(t, resp.StoreDirty)
}

func TestHandleHealth_RequestID(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, ServiceVersion, decodeBody[HealthResponse](t, w).Version)

	w = doRequest(router, http.MethodGet, "/api/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

// =============================================================================
// Records
// =============================================================================

func TestHandleGetActor(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/actors/Bruce%20Willis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Bruce Willis", body["name"])
	assert.Equal(t, "Actor", body["json_class"])

	w = doRequest(router, http.MethodGet, "/api/actors/Nobody", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody[ErrorResponse](t, w)
	assert.Equal(t, StatusBadRequest, resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestHandleFilterActors(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query returns all", "", []string{"Alan Rickman", "Bruce Willis", "Emma Thompson", "Kim Basinger", "Lonely Actor"}},
		{"quoted name", `name=%22Bruce%20Willis%22`, []string{"Bruce Willis"}},
		{"or", `name=%22Kim%22|age=69`, []string{"Alan Rickman", "Kim Basinger"}},
		{"and splits first", `age=61&name=%22Kim%22|age=30`, []string{}},
		{"and with or operand", `age=61&name=%22Bruce%22|age=30`, []string{"Bruce Willis"}},
		{"unknown field", `height=180`, []string{}},
		{"open quote", `age=94|name=%22Bruce%20Willis`, []string{"Bruce Willis"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/actors/?"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			got := decodeBody[map[string]json.RawMessage](t, w)
			names := make([]string, 0, len(got))
			for name := range got {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestHandleFilterActors_Malformed(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/actors/?justaword", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_QUERY", decodeBody[ErrorResponse](t, w).Code)
}

func TestHandleFilterMovies(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/movies/?year=1988", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]json.RawMessage](t, w)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "Die Hard")
	assert.Contains(t, got, "Orphan")
}

func TestHandleCreateActor(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	body := []byte(`{"name":"Demi Moore","age":54,"movies":["Ghost"],"total_gross":1000}`)
	w := doRequest(router, http.MethodPost, "/api/actors/", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, ts.svc.Store().Dirty())

	w = doRequest(router, http.MethodPost, "/api/actors/", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DUPLICATE_RECORD", decodeBody[ErrorResponse](t, w).Code)

	w = doRequest(router, http.MethodPost, "/api/actors/", []byte(`{"age":54}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/actors/", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeBody[ErrorResponse](t, w).Code)
}

func TestHandleUpdateActor(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodPut, "/api/actors/Kim%20Basinger", []byte(`{"age":63}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a, err := ts.svc.Actor("Kim Basinger")
	require.NoError(t, err)
	assert.Equal(t, 63, a.Age)

	w = doRequest(router, http.MethodPut, "/api/actors/Kim%20Basinger", []byte(`{"height":170}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_FIELD", decodeBody[ErrorResponse](t, w).Code)

	w = doRequest(router, http.MethodPut, "/api/actors/Kim%20Basinger", []byte(`{"name":"Kim B"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "RENAME_NOT_ALLOWED", decodeBody[ErrorResponse](t, w).Code)

	w = doRequest(router, http.MethodPut, "/api/actors/Nobody", []byte(`{"age":1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/actors/Kim%20Basinger", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDeleteMovie(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodDelete, "/api/movies/Orphan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Deletion of Orphan was successful", decodeBody[StatusResponse](t, w).Status)

	w = doRequest(router, http.MethodDelete, "/api/movies/Orphan", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, StatusBadRequest, decodeBody[ErrorResponse](t, w).Status)
}

func TestWriteHandlers_RequireJSONContentType(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)
	version := ts.svc.Store().Version()

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
	}{
		{"put movie as text", http.MethodPut, "/api/movies/Die%20Hard", "application/text", `{"year":1989}`},
		{"put actor without type", http.MethodPut, "/api/actors/Kim%20Basinger", "", `{"age":63}`},
		{"post actor as text", http.MethodPost, "/api/actors/", "application/text", `{"name":"Demi Moore","age":54,"movies":[],"total_gross":1}`},
		{"post movie as form", http.MethodPost, "/api/movies/", "application/x-www-form-urlencoded", `{"name":"Ghost","year":1990,"box_office":1,"actors":[],"wiki_page":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader([]byte(tt.body)))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decodeBody[ErrorResponse](t, w)
			assert.Equal(t, StatusBadRequest, resp.Status)
			assert.Equal(t, "UNSUPPORTED_CONTENT_TYPE", resp.Code)
		})
	}

	_, err := ts.svc.Actor("Demi Moore")
	assert.ErrorIs(t, err, records.ErrRecordNotFound)
	m, err := ts.svc.Movie("Die Hard")
	require.NoError(t, err)
	assert.Equal(t, 1988, m.Year)
	assert.Equal(t, version, ts.svc.Store().Version())
}

func TestWriteHandlers_JSONWithCharset(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	req := httptest.NewRequest(http.MethodPut, "/api/actors/Kim%20Basinger", bytes.NewReader([]byte(`{"age":63}`)))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// =============================================================================
// Graph
// =============================================================================

func TestGraphEndpoints_NoSnapshot(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	for _, path := range []string{
		"/api/graph/distance?from=Bruce%20Willis&to=Kim%20Basinger",
		"/api/graph/oldest",
		"/api/graph/stats",
		"/api/graph/export",
	} {
		w := doRequest(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, "NO_SNAPSHOT", decodeBody[ErrorResponse](t, w).Code, path)
	}
}

func TestHandleDistance(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantDist   int
	}{
		{"co-stars", "from=Bruce%20Willis&to=Kim%20Basinger", http.StatusOK, 1},
		{"two hops", "from=Kim%20Basinger&to=Alan%20Rickman", http.StatusOK, 2},
		{"through cast-only edge", "from=Kim%20Basinger&to=Emma%20Thompson", http.StatusOK, 3},
		{"self", "from=Bruce%20Willis&to=Bruce%20Willis", http.StatusOK, 0},
		{"unreachable", "from=Lonely%20Actor&to=Bruce%20Willis", http.StatusOK, -1},
		{"movie target never matches", "from=Bruce%20Willis&to=Die%20Hard", http.StatusOK, -1},
		{"unknown source", "from=Nobody&to=Bruce%20Willis", http.StatusNotFound, 0},
		{"missing to", "from=Bruce%20Willis", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/graph/distance?"+tt.query, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantDist, decodeBody[DistanceResponse](t, w).Distance)
			}
		})
	}
}

func TestHandleRankings(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/graph/oldest?k=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []graph.ActorAge{
		{Name: "Kim Basinger", Age: 62},
		{Name: "Alan Rickman", Age: 69},
	}, decodeBody[[]graph.ActorAge](t, w))

	w = doRequest(router, http.MethodGet, "/api/graph/top-grossing?k=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []graph.ActorGross{{Name: "Bruce Willis", TotalGross: 562709189}},
		decodeBody[[]graph.ActorGross](t, w))

	w = doRequest(router, http.MethodGet, "/api/graph/hubs?k=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/graph/oldest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]graph.ActorAge](t, w), 5)

	w = doRequest(router, http.MethodGet, "/api/graph/oldest?k=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeBody[ErrorResponse](t, w).Code)
}

func TestHandleYears(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/graph/years/1988/movies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, NamesResponse{Year: 1988, Names: []string{"Die Hard", "Orphan"}}, decodeBody[NamesResponse](t, w))

	w = doRequest(router, http.MethodGet, "/api/graph/years/1987/actors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Bruce Willis", "Kim Basinger"}, decodeBody[NamesResponse](t, w).Names)

	w = doRequest(router, http.MethodGet, "/api/graph/years/1950/movies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"year":1950,"names":[]}`, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/graph/years/last/movies", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAgeGroups(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/graph/age-groups/gross?start=60&end=69", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(862709189), decodeBody[AgeGroupResponse](t, w).Value)

	w = doRequest(router, http.MethodGet, "/api/graph/age-groups/gross?start=69&end=60", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), decodeBody[AgeGroupResponse](t, w).Value)

	w = doRequest(router, http.MethodGet, "/api/graph/age-groups/count?start=0&end=200", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), decodeBody[AgeGroupResponse](t, w).Value)

	w = doRequest(router, http.MethodGet, "/api/graph/age-groups/count?start=10", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/graph/age-groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	groups := decodeBody[[]graph.AgeGroup](t, w)
	require.Len(t, groups, 9)
	assert.Equal(t, 60, groups[5].Start)
	assert.Equal(t, 3, groups[5].Count)
}

func TestHandleStatsAndSeparations(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/graph/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody[StatsResponse](t, w)
	assert.Equal(t, 3, stats.Components)
	assert.True(t, stats.AllVisited)

	w = doRequest(router, http.MethodGet, "/api/graph/separations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	h := decodeBody[graph.SeparationHistogram](t, w)
	assert.Equal(t, 20, h.Pairs)
	assert.Equal(t, 3, h.MaxDegree)
}

func TestHandleExport(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodGet, "/api/graph/export", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var parts []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parts))
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 5)
	assert.Len(t, parts[1], 4)

	ds, err := records.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 562709189, int(ds.Actors["Bruce Willis"].TotalGross))
}

func TestHandleRebuild_AfterWrite(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodDelete, "/api/actors/Kim%20Basinger", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The snapshot still answers from the old records.
	w = doRequest(router, http.MethodGet, "/api/graph/distance?from=Bruce%20Willis&to=Kim%20Basinger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeBody[DistanceResponse](t, w).Distance)

	w = doRequest(router, http.MethodPost, "/api/graph/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[RebuildResponse](t, w)
	assert.Equal(t, uint64(2), resp.Version)
	assert.Equal(t, 4, resp.Actors)

	w = doRequest(router, http.MethodGet, "/api/graph/distance?from=Bruce%20Willis&to=Kim%20Basinger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -1, decodeBody[DistanceResponse](t, w).Distance)
}

func TestHandleReload_NoSourceFile(t *testing.T) {
	ts := newBuiltService(t)
	router := setupTestRouter(ts.svc)

	w := doRequest(router, http.MethodPost, "/api/graph/reload", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_SOURCE_FILE", decodeBody[ErrorResponse](t, w).Code)
}

func TestRebuildContext_UsesQueryTimeout(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.QueryTimeout = 5 * time.Second
	ts := newTestService(t, cfg)
	h := NewHandlers(ts.svc)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/graph/rebuild", nil)

	before := time.Now()
	ctx, cancel := h.rebuildContext(c)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.False(t, deadline.Before(before.Add(cfg.QueryTimeout)))
	assert.True(t, deadline.Before(time.Now().Add(cfg.QueryTimeout+time.Second)))
}

func TestHandleRebuild_CancelledRequest(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	router := setupTestRouter(ts.svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/graph/rebuild", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())
	assert.Equal(t, "TIMEOUT", decodeBody[ErrorResponse](t, w).Code)
	assert.False(t, ts.svc.Ready())
}

// =============================================================================
// Middleware
// =============================================================================

func TestRateLimit(t *testing.T) {
	ts := newTestService(t, DefaultServiceConfig())
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	router := gin.New()
	router.Use(RateLimit(0.001, 2, metrics))
	RegisterRoutes(router.Group("/api"), NewHandlers(ts.svc))

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/health", nil).Code)

	w := doRequest(router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decodeBody[ErrorResponse](t, w).Code)

	count, err := testutil.GatherAndCount(reg, "castgraph_http_rate_limited_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRateLimit_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0, 0, nil))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for range 20 {
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/ping", nil).Code)
	}
}
