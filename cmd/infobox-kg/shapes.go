// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/shapes"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

var shapesCmd = &cobra.Command{
	Use:   "shapes",
	Short: "Derive SHACL shapes from built documents",
	Long: `Shapes reads the backbone, infobox and labels graphs of a build and derives
one node shape per entity type. A property becomes required (sh:minCount 1)
when at least --threshold of the type's instances carry it; required at 100%
is a violation, otherwise a warning. The shapes graph is added to the output
directory and its manifest.`,
	RunE: runShapes,
}

func init() {
	f := shapesCmd.Flags()
	f.Float64("threshold", 0, "presence fraction for sh:minCount 1 (default 0.5)")
	f.Bool("max-count", false, "infer sh:maxCount 1 for single-valued properties")
	f.Int("min-instances", 0, "instances needed before maxCount is inferred (default 3)")

	for key, flag := range map[string]string{
		"shapes.presence_threshold": "threshold",
		"shapes.infer_max_count":    "max-count",
		"shapes.min_instances":      "min-instances",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(shapesCmd)
}

func runShapes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Build.OutputDir
	ds, m, err := rdfdoc.ReadDir(dir, types.GraphBackbone, types.GraphInfobox, types.GraphLabels)
	if err != nil {
		return err
	}
	resolver, err := iri.NewResolver(m.BaseIRI)
	if err != nil {
		return err
	}
	mapper, err := newMapper(cfg, resolver)
	if err != nil {
		return err
	}

	d := shapes.NewDeriver(mapper, shapes.Options{
		Threshold:     cfg.Shapes.PresenceThreshold,
		InferMaxCount: cfg.Shapes.InferMaxCount,
		MinInstances:  cfg.Shapes.MinInstances,
	})
	if err := d.Observe(ds); err != nil {
		return err
	}
	if err := d.Aggregate(); err != nil {
		return err
	}
	derived, err := d.Emit()
	if err != nil {
		return err
	}
	g, err := shapes.Graph(derived, resolver)
	if err != nil {
		return err
	}

	for _, s := range derived {
		fmt.Fprintf(os.Stdout, "shape:   %s (%d instances, %d properties)\n", s.Key, s.Instances, len(s.Properties))
	}

	out := triples.NewDataset()
	out.Graph(types.GraphShapes).Merge(g)
	if _, err := rdfdoc.Update(dir, out, namespaces(mapper), types.GraphShapes); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nShapes summary: %d shapes, %d triples written to %s\n", len(derived), g.Len(), dir)
	return nil
}
