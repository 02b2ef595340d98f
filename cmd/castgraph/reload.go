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
	"os"
	"time"

	"github.com/AleutianAI/castgraph/cmd/castgraph/config"
	"github.com/AleutianAI/castgraph/pkg/ux"
	"github.com/AleutianAI/castgraph/services/castgraph/events"
	"github.com/spf13/cobra"
)

var (
	reloadURL     string
	reloadTimeout time.Duration

	reloadCmd = &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to reload its dataset file over NATS",
		Args:  cobra.NoArgs,
		RunE:  runReload,
	}
)

func init() {
	reloadCmd.Flags().StringVar(&reloadURL, "nats", "", "NATS server URL (default: nats.url from the config)")
	reloadCmd.Flags().DurationVar(&reloadTimeout, "timeout", 30*time.Second, "How long to wait for the reply")
}

func runReload(cmd *cobra.Command, _ []string) error {
	url := reloadURL
	if url == "" {
		url = config.Global.NATS.URL
	}
	printer := ux.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), ux.GetPersonalityLevel())

	nc, err := events.Connect(url, "castgraph-cli", logger.Slog())
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), reloadTimeout)
	defer cancel()

	requestedBy, _ := os.Hostname()
	reply, err := events.RequestReload(ctx, nc, events.ReloadRequest{RequestedBy: requestedBy})
	if err != nil {
		return fmt.Errorf("reload request: %w", err)
	}
	if reply.Error != "" {
		printer.Error(reply.Error)
		return errors.New(reply.Error)
	}

	printer.Success(fmt.Sprintf("snapshot %d published (%d actors, %d movies)", reply.Version, reply.Actors, reply.Movies))
	return nil
}
