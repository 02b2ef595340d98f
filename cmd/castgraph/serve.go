// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/castgraph/cmd/castgraph/config"
	"github.com/AleutianAI/castgraph/pkg/telemetry"
	"github.com/AleutianAI/castgraph/services/castgraph"
	"github.com/AleutianAI/castgraph/services/castgraph/events"
	"github.com/AleutianAI/castgraph/services/castgraph/graph"
	"github.com/AleutianAI/castgraph/services/castgraph/observability"
	"github.com/AleutianAI/castgraph/services/castgraph/records"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// shutdownTimeout bounds the graceful HTTP drain.
const shutdownTimeout = 10 * time.Second

var (
	servePort int
	dataPath  string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the castgraph HTTP API",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides the config file)")
	serveCmd.Flags().StringVar(&dataPath, "data", "", "Dataset file (overrides the config file)")
}

// openStore opens the dataset at path, or returns an empty in-memory store
// when the file does not exist yet.
func openStore(path string) (*records.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Warn("dataset file not found, starting empty", "path", path)
		return records.NewStore(records.NewDataset()), nil
	}
	store, err := records.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	return store, nil
}

// newBuilder creates the graph builder described by cfg.
func newBuilder(cfg config.GraphConfig) (*graph.Builder, error) {
	strategy, err := graph.ParseEdgeStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	opts := []graph.BuilderOption{
		graph.WithEdgeStrategy(strategy),
		graph.WithMaxVertices(cfg.MaxVertices),
		graph.WithLogger(slog.Default()),
	}
	if cfg.Workers > 0 {
		opts = append(opts, graph.WithWorkers(cfg.Workers))
	}
	return graph.NewBuilder(opts...), nil
}

func serviceConfig(cfg config.CastgraphConfig) castgraph.ServiceConfig {
	return castgraph.ServiceConfig{
		QueryTimeout:       cfg.Server.QueryTimeout,
		DefaultRankingSize: cfg.Graph.DefaultRankingSize,
		AutoRebuild:        cfg.Graph.AutoRebuild,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Global
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if dataPath != "" {
		cfg.Data.Path = dataPath
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	telCfg := cfg.Telemetry
	telCfg.ServiceVersion = castgraph.ServiceVersion
	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Records and graph
	store, err := openStore(cfg.Data.Path)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cfg.Graph)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	opts := []castgraph.ServiceOption{
		castgraph.WithBuilder(builder),
		castgraph.WithMetrics(metrics),
		castgraph.WithLogger(slog.Default()),
	}

	// NATS
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = events.Connect(cfg.NATS.URL, cfg.NATS.Name, slog.Default())
		if err != nil {
			return err
		}
		defer nc.Drain()
		opts = append(opts, castgraph.WithPublisher(events.NewNATSPublisher(nc)))
	}

	svc := castgraph.NewService(serviceConfig(cfg), store, opts...)
	if _, err := svc.Rebuild(ctx, observability.TriggerStartup); err != nil {
		return fmt.Errorf("initial graph build: %w", err)
	}

	if nc != nil {
		sub, err := events.ServeReloads(nc, svc.HandleReloadRequest)
		if err != nil {
			return fmt.Errorf("subscribing to reload requests: %w", err)
		}
		defer sub.Unsubscribe()
		slog.Info("listening for reload requests", "subject", events.SubjectReloadRequest)
	}

	// File watcher
	if cfg.Data.Watch && store.Path() != "" {
		watcher, err := records.NewFileWatcher(store.Path(), svc.HandleFileChange, &records.WatcherOptions{
			DebounceWindow: cfg.Data.Debounce,
			Logger:         slog.Default(),
		})
		if err != nil {
			return fmt.Errorf("creating dataset watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting dataset watcher: %w", err)
		}
		defer watcher.Stop()
	}

	// HTTP
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(svc, metrics, cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting castgraph server", "address", srv.Addr, "data", cfg.Data.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down castgraph server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(drainCtx)
}

// newRouter assembles the gin engine with the service routes and /metrics.
func newRouter(svc *castgraph.Service, metrics *observability.Metrics, cfg config.ServerConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("castgraph"))
	router.Use(metrics.Middleware())
	router.Use(castgraph.RequestID())

	metricsHandler := telemetry.MetricsHandler()
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	api := router.Group("/api")
	api.Use(castgraph.RateLimit(cfg.RateLimit, cfg.RateBurst, metrics))
	castgraph.RegisterRoutes(api, castgraph.NewHandlers(svc))
	return router
}
