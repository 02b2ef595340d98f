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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CASTGRAPH_"

// ErrInvalidConfig is returned when a loaded config fails validation.
var ErrInvalidConfig = errors.New("invalid config")

var (
	// Global is a singleton instance
	Global CastgraphConfig
	once   sync.Once

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load ensures the config is loaded into the Global variable. An empty
// path means DefaultPath().
func Load(path string) error {
	var err error
	once.Do(func() {
		Global, err = LoadFile(path)
	})
	return err
}

// DefaultPath returns ~/.castgraph/castgraph.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".castgraph", "castgraph.yaml"), nil
}

// LoadFile reads, overrides and validates one config file.
//
// Description:
//
//	Creates the file with DefaultConfig() on first run. A .env file in the
//	working directory is loaded first (existing variables win), then
//	CASTGRAPH_* variables override the file. Fields missing from the file
//	keep their defaults.
//
// Inputs:
//
//	path - Config file path. Empty means DefaultPath().
//
// Outputs:
//
//	CastgraphConfig - The effective configuration.
//	error - Read, parse or ErrInvalidConfig errors.
func LoadFile(path string) (CastgraphConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return CastgraphConfig{}, err
		}
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return CastgraphConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return CastgraphConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CastgraphConfig{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return CastgraphConfig{}, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return CastgraphConfig{}, err
	}
	cfg.Data.Path = expandHome(cfg.Data.Path)
	cfg.Logging.Dir = expandHome(cfg.Logging.Dir)

	if err := Validate(cfg); err != nil {
		return CastgraphConfig{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg CastgraphConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// loadDotEnv loads path into the environment if it exists. Variables that
// are already set are not overwritten.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envBinding maps one CASTGRAPH_* variable onto the config.
type envBinding struct {
	key   string
	apply func(cfg *CastgraphConfig, value string) error
}

var envBindings = []envBinding{
	{"PORT", func(c *CastgraphConfig, v string) error { return setInt(&c.Server.Port, v) }},
	{"RATE_LIMIT", func(c *CastgraphConfig, v string) error { return setFloat(&c.Server.RateLimit, v) }},
	{"DATA", func(c *CastgraphConfig, v string) error { c.Data.Path = v; return nil }},
	{"WATCH", func(c *CastgraphConfig, v string) error { return setBool(&c.Data.Watch, v) }},
	{"WORKERS", func(c *CastgraphConfig, v string) error { return setInt(&c.Graph.Workers, v) }},
	{"STRATEGY", func(c *CastgraphConfig, v string) error { c.Graph.Strategy = v; return nil }},
	{"AUTO_REBUILD", func(c *CastgraphConfig, v string) error { return setBool(&c.Graph.AutoRebuild, v) }},
	{"NATS_URL", func(c *CastgraphConfig, v string) error {
		c.NATS.URL = v
		c.NATS.Enabled = v != ""
		return nil
	}},
	{"LOG_LEVEL", func(c *CastgraphConfig, v string) error { c.Logging.Level = strings.ToLower(v); return nil }},
	{"LOG_DIR", func(c *CastgraphConfig, v string) error { c.Logging.Dir = v; return nil }},
	{"LOG_JSON", func(c *CastgraphConfig, v string) error { return setBool(&c.Logging.JSON, v) }},
}

// applyEnv applies every set CASTGRAPH_* variable found through lookup.
func applyEnv(cfg *CastgraphConfig, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
