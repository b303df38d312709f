// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/graphstore"
	"github.com/pdiddy/infobox-kg/internal/secrets"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Upload graph documents to a triple store",
	Long: `Load sends each document listed in the output manifest to the configured
Graph Store Protocol endpoint as its named graph. Documents are checked
against their manifest checksum first.

  --mode replace   PUT: the named graph is replaced (default)
  --mode append    POST: triples are added to the named graph

Basic-auth credentials are read from .secrets/graphstore-user and
.secrets/graphstore-password when present.`,
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.String("mode", string(graphstore.ModeReplace), "replace or append")
	f.StringSlice("graph", nil, "load only these graphs (repeatable)")
	f.String("data-url", "", "Graph Store Protocol endpoint")

	_ = viper.BindPFlag("graph_store.data_url", f.Lookup("data-url"))

	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := graphstore.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	graphFlags, _ := cmd.Flags().GetStringSlice("graph")
	var only []types.GraphName
	for _, g := range graphFlags {
		name, err := types.ParseGraphName(g)
		if err != nil {
			return err
		}
		only = append(only, name)
	}

	client := graphstore.NewClient(cfg.GraphStore, secrets.GraphStore(loadedSecrets))
	results, err := client.LoadDir(cmd.Context(), cfg.Build.OutputDir, mode, only...)
	if err != nil {
		return err
	}

	var loaded, failed, total int
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %s (%v)\n", r.IRI, r.Err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "loaded:  %s (%d triples)\n", r.IRI, r.Triples)
		loaded++
		total += r.Triples
	}
	fmt.Fprintf(os.Stdout, "\nLoad summary: %d loaded, %d failed; %d triples (%s)\n", loaded, failed, total, mode)

	if failed > 0 {
		return fmt.Errorf("%d graph(s) failed to load", failed)
	}
	return nil
}
