// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/infobox-kg/internal/build"
	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/mediawiki"
	"github.com/pdiddy/infobox-kg/internal/pagecache"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// openCache opens the page cache. When offline is set, misses are reported
// as pagecache.ErrNotCached instead of being fetched.
func openCache(cfg types.PipelineConfig, offline bool) (*pagecache.Cache, error) {
	var src pagecache.Source
	if !offline {
		src = mediawiki.NewClient(cfg.Source)
	}
	return pagecache.Open(cfg.Cache.Path, src)
}

// newMapper loads the vocabulary mapping, from --mapping or the embedded
// table, with the project namespace bound under the base IRI.
func newMapper(cfg types.PipelineConfig, r *iri.Resolver) (*vocab.Mapper, error) {
	var (
		mc  vocab.Config
		err error
	)
	if cfg.Build.MappingFile != "" {
		mc, err = vocab.LoadConfig(cfg.Build.MappingFile)
	} else {
		mc, err = vocab.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}
	if mc.Namespace == "" {
		mc.Namespace = r.Vocab()
	}
	return vocab.NewMapper(mc)
}

// namespaces returns the Turtle prefix table for written documents.
func namespaces(m *vocab.Mapper) rdfdoc.Options {
	ns := vocab.StandardPrefixes()
	for p, iri := range m.Prefixes() {
		ns[p] = iri
	}
	ns["tg"] = m.Namespace()
	return rdfdoc.Options{Namespaces: ns}
}

// titleArgs collects titles from positional arguments and the --titles file.
func titleArgs(cmd *cobra.Command, args []string) ([]string, error) {
	titles := append([]string(nil), args...)
	if path, _ := cmd.Flags().GetString("titles"); path != "" {
		fromFile, err := build.ReadTitles(path)
		if err != nil {
			return nil, err
		}
		titles = append(titles, fromFile...)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("provide page titles as arguments or with --titles")
	}
	return titles, nil
}
