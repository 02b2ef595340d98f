// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the Prometheus metrics of the castgraph HTTP
// service and the gin middleware that records them.
//
// Graph build metrics are OpenTelemetry instruments in the graph package and
// reach /metrics through the telemetry Prometheus bridge. The metrics here
// are plain client_golang collectors so they can be registered on an
// isolated registry in tests.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "castgraph"

	// RouteUnmatched labels requests that matched no registered route, so
	// arbitrary paths cannot blow up label cardinality.
	RouteUnmatched = "unmatched"
)

// Rebuild triggers, used as the "trigger" label of rebuilds_total.
const (
	TriggerStartup = "startup"
	TriggerHTTP    = "http"
	TriggerWatch   = "watch"
	TriggerNATS    = "nats"
	TriggerWrite   = "write"
)

// Metrics holds the service collectors.
//
// Thread Safety: All methods are safe for concurrent use.
type Metrics struct {
	// httpRequests counts requests.
	// Labels: method, route (gin full path), status (HTTP code)
	httpRequests *prometheus.CounterVec

	// httpDuration measures request latency.
	// Labels: method, route
	httpDuration *prometheus.HistogramVec

	// rebuilds counts graph rebuilds.
	// Labels: trigger (startup, http, watch, nats, write), result (success, error)
	rebuilds *prometheus.CounterVec

	// queries counts graph queries by name, e.g. "distance" or "oldest".
	queries *prometheus.CounterVec

	// rateLimited counts requests rejected by the rate limiter.
	rateLimited prometheus.Counter

	snapshotVersion prometheus.Gauge
	storeDirty      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
//
// Inputs:
//
//	reg - Registerer to use. Nil means prometheus.DefaultRegisterer.
//
// Outputs:
//
//	*Metrics - Ready-to-use collectors.
//
// Limitations:
//
//	Registering twice on the same registry panics, as with promauto.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "rebuilds_total",
			Help:      "Graph rebuild attempts by trigger and result",
		}, []string{"trigger", "result"}),

		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "queries_total",
			Help:      "Graph queries served by query name",
		}, []string{"query"}),

		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),

		snapshotVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "snapshot_version",
			Help:      "Version of the currently published graph snapshot",
		}),

		storeDirty: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "store_dirty",
			Help:      "1 when the record store has changes not yet built into the graph",
		}),
	}
}

// RecordRebuild counts one rebuild attempt.
func (m *Metrics) RecordRebuild(trigger string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.rebuilds.WithLabelValues(trigger, result).Inc()
}

// RecordQuery counts one graph query.
func (m *Metrics) RecordQuery(query string) {
	m.queries.WithLabelValues(query).Inc()
}

// RecordRateLimited counts one rejected request.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// SetSnapshotVersion publishes the current snapshot version.
func (m *Metrics) SetSnapshotVersion(version uint64) {
	m.snapshotVersion.Set(float64(version))
}

// SetStoreDirty publishes whether the store has unbuilt changes.
func (m *Metrics) SetStoreDirty(dirty bool) {
	if dirty {
		m.storeDirty.Set(1)
		return
	}
	m.storeDirty.Set(0)
}

// Middleware returns gin middleware that records request count and latency.
//
// The route label is the matched route template (e.g. "/api/actors/:name"),
// never the raw path.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = RouteUnmatched
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
