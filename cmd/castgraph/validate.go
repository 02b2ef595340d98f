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
	"fmt"

	"github.com/AleutianAI/castgraph/cmd/castgraph/config"
	"github.com/AleutianAI/castgraph/pkg/ux"
	"github.com/AleutianAI/castgraph/services/castgraph"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dataset]",
	Short: "Check that a dataset file decodes and builds",
	Long: `Decodes the dataset, validates every record and builds the graph
once. Exits non-zero on the first problem.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	printer := ux.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), ux.GetPersonalityLevel())

	var svc *castgraph.Service
	err := printer.WithSpinner("Building graph", func() error {
		var err error
		svc, err = newLocalService(cmd.Context(), config.Global, path)
		return err
	})
	if err != nil {
		return err
	}
	g, err := svc.Snapshot()
	if err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("%d actors, %d movies, %d edges", g.ActorCount(), g.MovieCount(), g.EdgeCount()))
	if svc.Store().Path() != "" {
		printer.Value("Dataset", svc.Store().Path())
	}
	printer.Value("Build", g.Stats().Duration.String())
	return nil
}
