// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/infobox-kg/internal/build"
	"github.com/pdiddy/infobox-kg/internal/mediawiki"
)

var titlesCmd = &cobra.Command{
	Use:   "titles",
	Short: "Enumerate page titles from the wiki into a title file",
	Long: `Titles lists pages through the MediaWiki API and writes them to a YAML
title file that fetch and build accept with --titles.

  --kind allpages     every page in --namespace
  --kind category     members of the category named by --name
  --kind embeddedin   pages that use the template named by --name`,
	RunE: runTitles,
}

func init() {
	titlesCmd.Flags().String("kind", "embeddedin", "enumeration: allpages, category or embeddedin")
	titlesCmd.Flags().String("name", "", "category or template name")
	titlesCmd.Flags().Int("namespace", 0, "namespace to list")
	titlesCmd.Flags().Int("limit", 0, "maximum number of titles (0 = all)")
	titlesCmd.Flags().String("file", "titles.yaml", "title file to write")

	rootCmd.AddCommand(titlesCmd)
}

func runTitles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	kind, _ := cmd.Flags().GetString("kind")
	name, _ := cmd.Flags().GetString("name")
	ns, _ := cmd.Flags().GetInt("namespace")
	limit, _ := cmd.Flags().GetInt("limit")
	path, _ := cmd.Flags().GetString("file")

	client := mediawiki.NewClient(cfg.Source)
	ctx := cmd.Context()

	var titles []string
	switch kind {
	case "allpages":
		titles, err = client.AllPages(ctx, ns, limit)
	case "category", "embeddedin":
		if name == "" {
			return fmt.Errorf("--kind %s needs --name", kind)
		}
		if kind == "category" {
			titles, err = client.CategoryMembers(ctx, name, ns, limit)
		} else {
			titles, err = client.EmbeddedIn(ctx, name, ns, limit)
		}
	default:
		return fmt.Errorf("unknown --kind %q (want allpages, category or embeddedin)", kind)
	}
	if err != nil {
		return fmt.Errorf("listing titles: %w", err)
	}

	src := build.TitleSource{APIURL: cfg.Source.APIURL, Kind: kind, Name: name, Namespace: ns, Limit: limit}
	if err := build.WriteTitleFile(path, src, titles); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %d titles to %s\n", len(titles), path)
	return nil
}
