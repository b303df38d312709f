// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/infobox-kg/internal/build"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [titles...]",
	Short: "Fetch pages into the local cache",
	Long: `Fetch downloads the wikitext of each title into the page cache without
generating anything. Titles already cached are skipped, so later builds can
run offline.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("titles", "", "title file (.yaml from the titles command, or one title per line)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	titles, err := titleArgs(cmd, args)
	if err != nil {
		return err
	}

	cache, err := openCache(cfg, false)
	if err != nil {
		return err
	}
	defer cache.Close()

	s, err := build.Warm(cmd.Context(), cache, titles, cfg.Build.Workers, logger, os.Stdout)
	if err != nil {
		return err
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d page(s) failed to fetch", s.Failed)
	}
	return nil
}
