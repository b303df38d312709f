// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/build"
	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/triples"
)

var buildCmd = &cobra.Command{
	Use:   "build [titles...]",
	Short: "Generate graph documents for pages",
	Long: `Build fetches each page through the cache, parses its infoboxes and links,
and writes one document per named graph (backbone, infobox, links, labels)
plus a manifest to the output directory.

Pages that cannot be fetched are skipped and reported; the command exits
non-zero after writing the documents of the remaining pages. Titles whose IRIs
would collide abort the build before anything is written.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.String("titles", "", "title file (.yaml from the titles command, or one title per line)")
	f.String("mapping", "", "vocabulary mapping YAML replacing the built-in table")
	f.String("format", "", "document format: ntriples or turtle")
	f.String("language", "", "language tag for labels and text values")
	f.Bool("keep-raw", false, "also emit <field>_raw literals for link-valued fields")
	f.Bool("offline", false, "use cached pages only")
	f.String("metrics-file", "", "write build metrics in Prometheus text format")

	for key, flag := range map[string]string{
		"build.mapping_file":    "mapping",
		"build.format":          "format",
		"build.language":        "language",
		"build.keep_raw_values": "keep-raw",
		"build.metrics_file":    "metrics-file",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	titles, err := titleArgs(cmd, args)
	if err != nil {
		return err
	}
	offline, _ := cmd.Flags().GetBool("offline")

	resolver, err := iri.NewResolver(cfg.Build.BaseIRI)
	if err != nil {
		return err
	}
	mapper, err := newMapper(cfg, resolver)
	if err != nil {
		return err
	}
	cache, err := openCache(cfg, offline)
	if err != nil {
		return err
	}
	defer cache.Close()

	gen := triples.NewGenerator(resolver, mapper, triples.Options{
		Language:      cfg.Build.Language,
		KeepRawValues: cfg.Build.KeepRawValues,
	})
	metrics := build.NewMetrics()
	b := build.NewBuilder(cache, gen,
		build.WithWorkers(cfg.Build.Workers),
		build.WithLogger(logger),
		build.WithMetrics(metrics),
	)

	res, err := b.Run(cmd.Context(), titles, os.Stdout)
	if err != nil {
		return err
	}

	m, err := rdfdoc.Write(cfg.Build.OutputDir, resolver.Base(), res.Dataset, cfg.Build.Format, namespaces(mapper))
	if err != nil {
		return err
	}
	for _, g := range m.Graphs {
		fmt.Fprintf(os.Stdout, "wrote:   %s (%d triples)\n", g.File, g.Triples)
	}

	metrics.ObserveCache(cache.Stats())
	if cfg.Build.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.Build.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if res.Summary.HasFailures() {
		return fmt.Errorf("%d page(s) skipped", res.Summary.Skipped)
	}
	return nil
}
