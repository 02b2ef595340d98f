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
	"log/slog"

	"github.com/AleutianAI/castgraph/cmd/castgraph/config"
	"github.com/AleutianAI/castgraph/pkg/logging"
	"github.com/AleutianAI/castgraph/pkg/ux"
	"github.com/spf13/cobra"
)

var (
	configPath       string
	logLevel         string
	personalityLevel string // output style (standard/minimal/machine)

	// logger is set up by the root PersistentPreRunE and closed after the
	// command finishes.
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "castgraph",
		Short: "Serve and query the actor/movie collaboration graph",
		Long: `castgraph loads actor and movie records, builds a bipartite
collaboration graph from them and answers separation, ranking and
age-group questions over HTTP or from the command line.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setupRoot,
		PersistentPostRunE: teardownRoot,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default ~/.castgraph/castgraph.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "output", "",
		"Output style: standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(exportCmd)
}

// setupRoot loads the config and installs the process logger.
func setupRoot(cmd *cobra.Command, _ []string) error {
	if personalityLevel != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
	} else {
		ux.InitPersonality()
	}

	if err := config.Load(configPath); err != nil {
		return err
	}
	cfg := config.Global

	levelName := cfg.Logging.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}

	logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "castgraph",
		JSON:    cfg.Logging.JSON,
		Writer:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger.Slog())
	return nil
}

func teardownRoot(_ *cobra.Command, _ []string) error {
	if logger != nil {
		return logger.Close()
	}
	return nil
}
