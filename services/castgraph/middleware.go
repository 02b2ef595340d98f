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
	"net/http"

	"github.com/AleutianAI/castgraph/services/castgraph/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// requestIDKey is the gin context key for the request ID.
const requestIDKey = "castgraph_request_id"

// RequestID returns middleware that assigns every request an ID.
//
// # Description
//
// Uses the caller's X-Request-ID header when present, otherwise a new UUID.
// The ID is echoed in the response header and stored in the gin context
// for handler loggers.
//
// # Thread Safety
//
// Safe for concurrent use (gin context is request-scoped).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

// getOrCreateRequestID returns the request ID, creating one if the
// RequestID middleware did not run.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header("X-Request-ID", requestID)
	return requestID
}

// RateLimit returns middleware that rejects requests beyond a token bucket
// of rps requests per second with the given burst.
//
// # Description
//
// One bucket is shared by all clients; castgraph is a single-tenant
// service. Rejected requests get 429 with code RATE_LIMITED. A non-positive
// rps disables limiting.
//
// # Inputs
//
//   - rps: Sustained requests per second.
//   - burst: Bucket size.
//   - metrics: Counts rejections. May be nil.
func RateLimit(rps float64, burst int, metrics *observability.Metrics) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			if metrics != nil {
				metrics.RecordRateLimited()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
