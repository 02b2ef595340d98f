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
	"errors"
	"fmt"

	"github.com/AleutianAI/castgraph/cmd/castgraph/config"
	"github.com/AleutianAI/castgraph/pkg/ux"
	"github.com/AleutianAI/castgraph/services/castgraph"
	"github.com/spf13/cobra"
)

var (
	exportOut string

	exportCmd = &cobra.Command{
		Use:   "export [dataset]",
		Short: "Write a validated, normalized copy of a dataset",
		Long: `Decodes the dataset, builds the graph once to validate it, and writes
the records back out in the [actors, movies] shape with json_class tags.
The output file is replaced atomically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExport,
	}
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (required)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportOut == "" {
		return errors.New("--out is required")
	}
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

	if err := svc.Store().SaveFile(exportOut); err != nil {
		printer.Error(err.Error())
		return fmt.Errorf("exporting dataset: %w", err)
	}
	g, err := svc.Snapshot()
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("wrote %d actors, %d movies to %s", g.ActorCount(), g.MovieCount(), exportOut))
	return nil
}
