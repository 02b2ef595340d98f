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
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/castgraph/cmd/castgraph/config"
	"github.com/AleutianAI/castgraph/pkg/ux"
	"github.com/AleutianAI/castgraph/services/castgraph"
	"github.com/AleutianAI/castgraph/services/castgraph/observability"
	"github.com/AleutianAI/castgraph/services/castgraph/records"
	"github.com/spf13/cobra"
)

var (
	queryData string
	queryJSON bool
	queryK    int

	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Build the graph from a dataset file and query it locally",
	}

	distanceCmd = &cobra.Command{
		Use:   "distance <from> <to>",
		Short: "Degrees of separation between two actors (-1 if unreachable)",
		Args:  cobra.ExactArgs(2),
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, args []string) error {
			resp, err := svc.Distance(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return out.value(resp, "Distance", resp.Distance)
		}),
	}

	oldestCmd = &cobra.Command{
		Use:   "oldest",
		Short: "The k oldest actors, oldest last",
		Args:  cobra.NoArgs,
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, _ []string) error {
			resp, err := svc.OldestActors(ctx, queryK)
			if err != nil {
				return err
			}
			rows := make([][]string, len(resp))
			for i, a := range resp {
				rows[i] = []string{a.Name, strconv.Itoa(a.Age)}
			}
			return out.table(resp, []string{"name", "age"}, rows)
		}),
	}

	topGrossingCmd = &cobra.Command{
		Use:   "top-grossing",
		Short: "The k top-grossing actors, highest last",
		Args:  cobra.NoArgs,
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, _ []string) error {
			resp, err := svc.TopGrossingActors(ctx, queryK)
			if err != nil {
				return err
			}
			rows := make([][]string, len(resp))
			for i, a := range resp {
				rows[i] = []string{a.Name, strconv.FormatInt(a.TotalGross, 10)}
			}
			return out.table(resp, []string{"name", "total_gross"}, rows)
		}),
	}

	hubsCmd = &cobra.Command{
		Use:   "hubs",
		Short: "The k actors with the most distinct co-stars, most last",
		Args:  cobra.NoArgs,
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, _ []string) error {
			resp, err := svc.HubActors(ctx, queryK)
			if err != nil {
				return err
			}
			rows := make([][]string, len(resp))
			for i, a := range resp {
				rows[i] = []string{a.Name, strconv.Itoa(a.Connections)}
			}
			return out.table(resp, []string{"name", "connections"}, rows)
		}),
	}

	moviesFromYearCmd = &cobra.Command{
		Use:   "movies-from-year <year>",
		Short: "Movies released in a year",
		Args:  cobra.ExactArgs(1),
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("year %q is not an integer", args[0])
			}
			resp, err := svc.MoviesFromYear(ctx, year)
			if err != nil {
				return err
			}
			return out.names(resp, resp.Names)
		}),
	}

	actorsFromYearCmd = &cobra.Command{
		Use:   "actors-from-year <year>",
		Short: "Actors in movies released in a year",
		Args:  cobra.ExactArgs(1),
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("year %q is not an integer", args[0])
			}
			resp, err := svc.ActorsFromYear(ctx, year)
			if err != nil {
				return err
			}
			return out.names(resp, resp.Names)
		}),
	}

	ageGrossCmd = &cobra.Command{
		Use:   "age-gross <start> <end>",
		Short: "Total gross of actors aged start..end inclusive",
		Args:  cobra.ExactArgs(2),
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, args []string) error {
			start, end, err := parseAgeRange(args)
			if err != nil {
				return err
			}
			resp, err := svc.GrossForAgeGroup(ctx, start, end)
			if err != nil {
				return err
			}
			return out.value(resp, "Gross", resp.Value)
		}),
	}

	ageCountCmd = &cobra.Command{
		Use:   "age-count <start> <end>",
		Short: "Number of actors aged start..end inclusive",
		Args:  cobra.ExactArgs(2),
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, args []string) error {
			start, end, err := parseAgeRange(args)
			if err != nil {
				return err
			}
			resp, err := svc.CountActorsInAgeGroup(ctx, start, end)
			if err != nil {
				return err
			}
			return out.value(resp, "Actors", resp.Value)
		}),
	}

	ageGroupsCmd = &cobra.Command{
		Use:   "age-groups",
		Short: "Actor count and gross per decade of age",
		Args:  cobra.NoArgs,
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, _ []string) error {
			resp, err := svc.AgeGroups(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, len(resp))
			for i, g := range resp {
				rows[i] = []string{
					fmt.Sprintf("%d-%d", g.Start, g.End),
					strconv.Itoa(g.Count),
					strconv.FormatInt(g.Gross, 10),
					strconv.FormatFloat(g.MeanGross, 'f', 2, 64),
				}
			}
			return out.table(resp, []string{"ages", "count", "gross", "mean_gross"}, rows)
		}),
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Graph summary, connection distribution and components",
		Args:  cobra.NoArgs,
		RunE: withLocalService(func(ctx context.Context, svc *castgraph.Service, out queryOutput, _ []string) error {
			resp, err := svc.Stats(ctx)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"actors", strconv.Itoa(resp.Summary.Actors)},
				{"movies", strconv.Itoa(resp.Summary.Movies)},
				{"edges", strconv.Itoa(resp.Summary.Edges)},
				{"components", strconv.Itoa(resp.Components)},
				{"connections_mean", strconv.FormatFloat(resp.Connections.Mean, 'f', 2, 64)},
				{"connections_max", strconv.Itoa(resp.Connections.Max)},
				{"build_duration", resp.Summary.BuildDuration},
			}
			return out.table(resp, []string{"metric", "value"}, rows)
		}),
	}

	filterCmd = &cobra.Command{
		Use:   "filter <actors|movies> <expression>",
		Short: `Filter records, e.g. filter actors 'name="Bruce"|age=61'`,
		Args:  cobra.ExactArgs(2),
		RunE: withLocalService(func(_ context.Context, svc *castgraph.Service, out queryOutput, args []string) error {
			switch args[0] {
			case "actors":
				matches, err := svc.FilterActors(args[1])
				if err != nil {
					return err
				}
				return out.names(matches, sortedNames(matches))
			case "movies":
				matches, err := svc.FilterMovies(args[1])
				if err != nil {
					return err
				}
				return out.names(matches, sortedNames(matches))
			default:
				return fmt.Errorf("unknown collection %q, want actors or movies", args[0])
			}
		}),
	}
)

func init() {
	queryCmd.PersistentFlags().StringVar(&queryData, "data", "", "Dataset file (default: data.path from the config)")
	queryCmd.PersistentFlags().BoolVar(&queryJSON, "json", false, "Print the result as JSON")

	for _, c := range []*cobra.Command{oldestCmd, topGrossingCmd, hubsCmd} {
		c.Flags().IntVarP(&queryK, "count", "k", 10, "Number of actors; 0 or less prints nothing")
	}

	queryCmd.AddCommand(distanceCmd, oldestCmd, topGrossingCmd, hubsCmd,
		moviesFromYearCmd, actorsFromYearCmd, ageGrossCmd, ageCountCmd,
		ageGroupsCmd, statsCmd, filterCmd)
}

// queryFunc runs one query against a freshly built local service.
type queryFunc func(ctx context.Context, svc *castgraph.Service, out queryOutput, args []string) error

// withLocalService loads the dataset, builds the graph and runs fn.
func withLocalService(fn queryFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := newLocalService(cmd.Context(), config.Global, queryData)
		if err != nil {
			return err
		}
		out := queryOutput{
			w:       cmd.OutOrStdout(),
			json:    queryJSON,
			printer: ux.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), ux.GetPersonalityLevel()),
		}
		return fn(cmd.Context(), svc, out, args)
	}
}

// newLocalService opens path (or the configured dataset) and builds one
// snapshot.
func newLocalService(ctx context.Context, cfg config.CastgraphConfig, path string) (*castgraph.Service, error) {
	if path == "" {
		path = cfg.Data.Path
	}
	store, err := records.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	builder, err := newBuilder(cfg.Graph)
	if err != nil {
		return nil, err
	}
	svc := castgraph.NewService(serviceConfig(cfg), store, castgraph.WithBuilder(builder))
	if _, err := svc.Rebuild(ctx, observability.TriggerStartup); err != nil {
		return nil, err
	}
	return svc, nil
}

func parseAgeRange(args []string) (int, int, error) {
	start, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("start %q is not an integer", args[0])
	}
	end, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("end %q is not an integer", args[1])
	}
	return start, end, nil
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// queryOutput prints a result either as JSON or through the ux printer.
type queryOutput struct {
	w       io.Writer
	json    bool
	printer *ux.Printer
}

func (o queryOutput) writeJSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o queryOutput) value(raw any, label string, v any) error {
	if o.json {
		return o.writeJSON(raw)
	}
	o.printer.Value(label, v)
	return nil
}

func (o queryOutput) table(raw any, headers []string, rows [][]string) error {
	if o.json {
		return o.writeJSON(raw)
	}
	o.printer.Table(headers, rows)
	return nil
}

func (o queryOutput) names(raw any, names []string) error {
	if o.json {
		return o.writeJSON(raw)
	}
	if len(names) == 0 {
		o.printer.Warning("no matches")
		return nil
	}
	o.printer.Value("Matches", strings.Join(names, ", "))
	return nil
}
