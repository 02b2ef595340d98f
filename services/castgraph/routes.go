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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all castgraph routes with the router group.
//
// Description:
//
//	Registers the /api/* endpoints on the given group. The group should
//	already have request ID, metrics and rate limiting middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /api)
//	handlers - The handlers instance
//
// Record Endpoints:
//
//	GET    /api/actors/:name - Get an actor
//	GET    /api/actors/?<filter> - Filter actors
//	PUT    /api/actors/:name - Update an actor
//	POST   /api/actors/ - Create an actor
//	DELETE /api/actors/:name - Delete an actor
//	(the same five under /api/movies/)
//
// Graph Endpoints:
//
//	GET  /api/graph/distance?from=&to= - Degrees of separation
//	GET  /api/graph/oldest?k= - Oldest actors
//	GET  /api/graph/top-grossing?k= - Top-grossing actors
//	GET  /api/graph/hubs?k= - Most connected actors
//	GET  /api/graph/years/:year/movies - Movies released in a year
//	GET  /api/graph/years/:year/actors - Actors in a year's movies
//	GET  /api/graph/age-groups - Decade buckets
//	GET  /api/graph/age-groups/gross?start=&end= - Gross for an age range
//	GET  /api/graph/age-groups/count?start=&end= - Actors in an age range
//	GET  /api/graph/stats - Snapshot summary
//	GET  /api/graph/separations - Separation histogram
//	GET  /api/graph/export - Snapshot records
//	POST /api/graph/rebuild - Rebuild from the record store
//	POST /api/graph/reload - Reload the dataset file and rebuild
//
// Health Endpoints:
//
//	GET /api/health - Liveness
//	GET /api/ready - 503 until the first snapshot
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/ready", handlers.HandleReady)

	actors := rg.Group("/actors")
	{
		actors.GET("/", handlers.HandleFilterActors)
		actors.POST("/", handlers.HandleCreateActor)
		actors.GET("/:name", handlers.HandleGetActor)
		actors.PUT("/:name", handlers.HandleUpdateActor)
		actors.DELETE("/:name", handlers.HandleDeleteActor)
	}

	movies := rg.Group("/movies")
	{
		movies.GET("/", handlers.HandleFilterMovies)
		movies.POST("/", handlers.HandleCreateMovie)
		movies.GET("/:name", handlers.HandleGetMovie)
		movies.PUT("/:name", handlers.HandleUpdateMovie)
		movies.DELETE("/:name", handlers.HandleDeleteMovie)
	}

	g := rg.Group("/graph")
	{
		g.GET("/distance", handlers.HandleDistance)
		g.GET("/oldest", handlers.HandleOldest)
		g.GET("/top-grossing", handlers.HandleTopGrossing)
		g.GET("/hubs", handlers.HandleHubs)
		g.GET("/years/:year/movies", handlers.HandleMoviesFromYear)
		g.GET("/years/:year/actors", handlers.HandleActorsFromYear)
		g.GET("/age-groups", handlers.HandleAgeGroups)
		g.GET("/age-groups/gross", handlers.HandleAgeGross)
		g.GET("/age-groups/count", handlers.HandleAgeCount)
		g.GET("/stats", handlers.HandleStats)
		g.GET("/separations", handlers.HandleSeparations)
		g.GET("/export", handlers.HandleExport)
		g.POST("/rebuild", handlers.HandleRebuild)
		g.POST("/reload", handlers.HandleReload)
	}
}
