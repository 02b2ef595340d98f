// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/castgraph/pkg/telemetry"
)

// CurrentConfigVersion is written to new config files.
const CurrentConfigVersion = "1"

type CastgraphConfig struct {
	Meta MetaConfig `yaml:"meta"`

	// Server: HTTP listener and request limits
	Server ServerConfig `yaml:"server"`

	// Data: where the records come from
	Data DataConfig `yaml:"data"`

	// Graph: builder and query settings
	Graph GraphConfig `yaml:"graph"`

	// NATS: snapshot events and remote reload requests
	NATS NATSConfig `yaml:"nats"`

	Logging LoggingConfig `yaml:"logging"`

	Telemetry telemetry.Config `yaml:"telemetry" validate:"-"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" validate:"gte=1,lte=65535"`
	RateLimit    float64       `yaml:"rate_limit" validate:"gte=0"` // requests/second, 0 disables
	RateBurst    int           `yaml:"rate_burst" validate:"gte=0"`
	QueryTimeout time.Duration `yaml:"query_timeout" validate:"gte=0"`
	Debug        bool          `yaml:"debug"`
}

type DataConfig struct {
	Path     string        `yaml:"path" validate:"required"` // e.g. ~/.castgraph/data.json
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

type GraphConfig struct {
	Workers            int    `yaml:"workers" validate:"gte=0"` // 0 = one per CPU
	Strategy           string `yaml:"strategy" validate:"oneof=pairwise indexed"`
	MaxVertices        int    `yaml:"max_vertices" validate:"gte=1"`
	DefaultRankingSize int    `yaml:"default_ranking_size" validate:"gte=1"`
	AutoRebuild        bool   `yaml:"auto_rebuild"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Name    string `yaml:"name"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

func DefaultConfig() CastgraphConfig {
	return CastgraphConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Server: ServerConfig{
			Port:         8080,
			RateLimit:    100,
			RateBurst:    200,
			QueryTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			Path:     "~/.castgraph/data.json",
			Watch:    true,
			Debounce: 250 * time.Millisecond,
		},
		Graph: GraphConfig{
			Workers:            0,
			Strategy:           "pairwise",
			MaxVertices:        1_000_000,
			DefaultRankingSize: 10,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Name:    "castgraph",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
