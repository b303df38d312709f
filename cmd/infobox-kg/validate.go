// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/container"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/validate"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check built documents against the derived shapes",
	Long: `Validate runs the SHACL engine image under docker or podman on the data
documents of the output directory and its shapes document (run shapes first).
Results are listed per focus node. The command fails when the report contains
violations; warnings alone do not fail it.`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.String("image", "", "validator container image")
	f.Bool("report", false, "print the raw validation report")

	_ = viper.BindPFlag("validation.image", f.Lookup("image"))

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetBool("report")
	dir := cfg.Build.OutputDir

	m, err := rdfdoc.ReadManifest(dir)
	if err != nil {
		return err
	}
	shapesEntry, ok := m.Lookup(types.GraphShapes)
	if !ok {
		return fmt.Errorf("no shapes graph in %s; run shapes first", dir)
	}
	var data []string
	for _, e := range m.Graphs {
		if e.Name == types.GraphShapes {
			continue
		}
		if err := rdfdoc.Verify(dir, e); err != nil {
			return err
		}
		data = append(data, e.Path(dir))
	}

	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	v, err := validate.NewContainerValidator(rt, cfg.Validation.Image)
	if err != nil {
		return err
	}
	logger.Info("validating", "runtime", rt.Name(), "image", cfg.Validation.Image, "documents", len(data))

	report, err := v.Validate(cmd.Context(), data, shapesEntry.Path(dir))
	if err != nil {
		return err
	}
	if raw {
		fmt.Fprintln(os.Stdout, report.Output)
	}
	for _, r := range report.Results {
		fmt.Fprintf(os.Stdout, "%-9s %s %s: %s\n", r.Level()+":", r.Focus, r.Path, r.Message)
	}

	counts := report.Counts()
	fmt.Fprintf(os.Stdout, "\nValidation summary: conforms=%t; %d violations, %d warnings, %d info\n",
		report.Conforms, counts["Violation"], counts["Warning"], counts["Info"])

	if !report.Conforms && counts["Violation"] > 0 {
		return fmt.Errorf("%d shape violation(s)", counts["Violation"])
	}
	return nil
}
