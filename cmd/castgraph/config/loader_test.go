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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "deep", "nested", "castgraph.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg CastgraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Meta.Version != CurrentConfigVersion {
		t.Errorf("Meta.Version = %q, want %q", cfg.Meta.Version, CurrentConfigVersion)
	}
	if cfg.Server.QueryTimeout != 30*time.Second {
		t.Errorf("Server.QueryTimeout = %v, want 30s", cfg.Server.QueryTimeout)
	}
	if cfg.Graph.Strategy != "pairwise" {
		t.Errorf("Graph.Strategy = %q, want pairwise", cfg.Graph.Strategy)
	}
}

// TestLoadFile_FirstRun verifies a missing file is created and loaded.
func TestLoadFile_FirstRun(t *testing.T) {
	t.Chdir(t.TempDir())
	configPath := filepath.Join(t.TempDir(), "castgraph.yaml")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if strings.HasPrefix(cfg.Data.Path, "~") {
		t.Errorf("Data.Path = %q, want ~ expanded", cfg.Data.Path)
	}
}

// TestLoadFile_PartialFileKeepsDefaults verifies unset keys keep defaults.
func TestLoadFile_PartialFileKeepsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	configPath := filepath.Join(t.TempDir(), "castgraph.yaml")
	content := `
server:
  port: 9090
  query_timeout: 5s
data:
  path: /srv/castgraph/data.json
graph:
  strategy: indexed
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.QueryTimeout != 5*time.Second {
		t.Errorf("Server.QueryTimeout = %v, want 5s", cfg.Server.QueryTimeout)
	}
	if cfg.Server.RateBurst != 200 {
		t.Errorf("Server.RateBurst = %d, want default 200", cfg.Server.RateBurst)
	}
	if cfg.Graph.DefaultRankingSize != 10 {
		t.Errorf("Graph.DefaultRankingSize = %d, want default 10", cfg.Graph.DefaultRankingSize)
	}
	if cfg.Data.Path != "/srv/castgraph/data.json" {
		t.Errorf("Data.Path = %q", cfg.Data.Path)
	}
}

// TestLoadFile_Invalid verifies validation failures are reported.
func TestLoadFile_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad strategy", "graph:\n  strategy: random\n", "Strategy"},
		{"bad port", "server:\n  port: 70000\n", "Port"},
		{"bad level", "logging:\n  level: loud\n", "Level"},
		{"nats without url", "nats:\n  enabled: true\n  url: \"\"\n", "URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "castgraph.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(configPath)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("LoadFile() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadFile_Malformed verifies YAML errors are returned.
func TestLoadFile_Malformed(t *testing.T) {
	t.Chdir(t.TempDir())
	configPath := filepath.Join(t.TempDir(), "castgraph.yaml")
	if err := os.WriteFile(configPath, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected a parse error")
	}
}

// TestApplyEnv verifies CASTGRAPH_* overrides.
func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CASTGRAPH_PORT":         "9999",
		"CASTGRAPH_RATE_LIMIT":   "2.5",
		"CASTGRAPH_DATA":         "/tmp/data.json",
		"CASTGRAPH_WATCH":        "false",
		"CASTGRAPH_AUTO_REBUILD": "true",
		"CASTGRAPH_NATS_URL":     "nats://broker:4222",
		"CASTGRAPH_LOG_LEVEL":    "DEBUG",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := applyEnv(&cfg, lookup); err != nil {
		t.Fatalf("applyEnv() failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.RateLimit != 2.5 {
		t.Errorf("Server.RateLimit = %v, want 2.5", cfg.Server.RateLimit)
	}
	if cfg.Data.Path != "/tmp/data.json" || cfg.Data.Watch {
		t.Errorf("Data = %+v", cfg.Data)
	}
	if !cfg.Graph.AutoRebuild {
		t.Error("Graph.AutoRebuild = false, want true")
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

// TestApplyEnv_BadValue verifies the variable name is reported.
func TestApplyEnv_BadValue(t *testing.T) {
	cfg := DefaultConfig()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		if k == "CASTGRAPH_PORT" {
			return "eighty", true
		}
		return "", false
	})
	if err == nil || !strings.Contains(err.Error(), "CASTGRAPH_PORT") {
		t.Fatalf("applyEnv() error = %v, want CASTGRAPH_PORT error", err)
	}
}

// TestLoadFile_DotEnv verifies .env values apply without overriding the
// process environment.
func TestLoadFile_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CASTGRAPH_LOG_LEVEL", "warn")
	if err := os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CASTGRAPH_PORT=7070\nCASTGRAPH_LOG_LEVEL=debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CASTGRAPH_PORT") })

	cfg, err := LoadFile(filepath.Join(dir, "castgraph.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070 from .env", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn from the environment", cfg.Logging.Level)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/x.json"); got != filepath.Join(home, "x.json") {
		t.Errorf("expandHome(~/x.json) = %q", got)
	}
	if got := expandHome("/abs/x.json"); got != "/abs/x.json" {
		t.Errorf("expandHome(/abs/x.json) = %q", got)
	}
	if got := expandHome(""); got != "" {
		t.Errorf("expandHome(\"\") = %q", got)
	}
}
