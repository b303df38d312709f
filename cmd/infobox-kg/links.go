// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/links"
	"github.com/pdiddy/infobox-kg/internal/mediawiki"
	"github.com/pdiddy/infobox-kg/internal/pagecache"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/internal/wikitext"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Link built entities to Wikipedia and a knowledge base",
	Long: `Links finds an external-site identifier for every built entity, first in
the optional side dataset, then in the Wikipedia links of the cached page,
and writes "res schema:sameAs <site>" to the sameas graph. Each site is then
looked up in the SPARQL endpoint (DBpedia by default) and in the YAGO
endpoint, and matches are written as owl:sameAs to the alignments graph;
entities sharing a site are aligned with each other.

Each title is also resolved on a second wiki (the LOTR fandom wiki by
default). Its page is written as owl:sameAs to the crosswiki graph together
with one rdfs:label per language edition. Lookups are memoised in the page
cache.`,
	RunE: runLinks,
}

func init() {
	f := linksCmd.Flags()
	f.String("side-dataset", "", "YAML file mapping titles to external-site URLs")
	f.String("endpoint", "", "SPARQL endpoint for alignment (default https://dbpedia.org/sparql)")
	f.String("yago-endpoint", "", "YAGO SPARQL endpoint (default https://qlever.dev/api/yago-4)")
	f.String("crosswiki-api", "", "api.php of the second wiki (default https://lotr.fandom.com/api.php)")
	f.Bool("no-align", false, "skip knowledge-base alignment")
	f.Bool("no-crosswiki", false, "skip second-wiki links and labels")

	for key, flag := range map[string]string{
		"links.side_dataset":      "side-dataset",
		"links.sparql_endpoint":   "endpoint",
		"links.yago_endpoint":     "yago-endpoint",
		"links.crosswiki_api_url": "crosswiki-api",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(linksCmd)
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	noAlign, _ := cmd.Flags().GetBool("no-align")
	noCross, _ := cmd.Flags().GetBool("no-crosswiki")
	dir := cfg.Build.OutputDir

	ds, m, err := rdfdoc.ReadDir(dir, types.GraphBackbone)
	if err != nil {
		return err
	}
	resolver, err := iri.NewResolver(m.BaseIRI)
	if err != nil {
		return err
	}

	cache, err := openCache(cfg, true)
	if err != nil {
		return err
	}
	defer cache.Close()

	entries, err := builtEntries(cmd.Context(), ds, resolver, cache)
	if err != nil {
		return err
	}

	var chain links.Chain
	if cfg.Links.SideDataset != "" {
		sd, err := links.LoadSideDataset(cfg.Links.SideDataset)
		if err != nil {
			return err
		}
		chain = append(chain, sd)
	}
	chain = append(chain, links.PageWikipedia{})

	opts := []links.Option{links.WithWorkers(cfg.Build.Workers), links.WithLogger(logger)}
	if !noAlign {
		if cfg.Links.SPARQLEndpoint != "" {
			db, err := links.NewDBpedia(cfg.Links.SPARQLEndpoint, cfg.Links.QueryTimeout, cache)
			if err != nil {
				return err
			}
			opts = append(opts, links.WithAlignment(db))
		}
		if cfg.Links.YAGOEndpoint != "" {
			yago, err := links.NewYAGO(cfg.Links.YAGOEndpoint, cfg.Links.QueryTimeout, cache)
			if err != nil {
				return err
			}
			opts = append(opts, links.WithAlignment(yago))
		}
	}
	if !noCross && cfg.Links.CrossWikiAPIURL != "" {
		// Same politeness settings as the source wiki, different endpoint.
		src := cfg.Source
		src.APIURL = cfg.Links.CrossWikiAPIURL
		cw, err := links.NewCrossWiki(mediawiki.NewClient(src), cfg.Links.CrossWikiPageBase, cache)
		if err != nil {
			return err
		}
		opts = append(opts, links.WithCrossWiki(cw))
	}

	out, stats, err := links.NewResolver(resolver, chain, opts...).Resolve(cmd.Context(), entries)
	if err != nil {
		return err
	}
	mapper, err := newMapper(cfg, resolver)
	if err != nil {
		return err
	}
	if _, err := rdfdoc.Update(dir, out, namespaces(mapper), types.GraphSameAs, types.GraphAlignments, types.GraphCrossWiki); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Links summary: %d entities, %d site links, %d aligned, %d shared-site alignments, %d cross-wiki pages (%d labels), %d failed lookups\n",
		stats.Entries, stats.Sites, stats.Aligned, stats.Shared, stats.CrossWiki, stats.Labels, stats.Failed)
	return nil
}

// builtEntries recovers the built titles from the backbone graph and parses
// their cached pages. A page missing from the cache still gets an entry so
// the side dataset can resolve it.
func builtEntries(ctx context.Context, ds *triples.Dataset, r *iri.Resolver, cache *pagecache.Cache) ([]links.Entry, error) {
	backbone, ok := ds.Lookup(types.GraphBackbone)
	if !ok || backbone.Len() == 0 {
		return nil, fmt.Errorf("no backbone graph in output directory; run build first")
	}

	seen := make(map[string]bool)
	var titles []string
	for _, t := range backbone.Triples() {
		if t.Pred.String() != vocab.SchemaAbout {
			continue
		}
		title, ok := r.TitleFromResource(t.Obj.String())
		if !ok || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	sort.Strings(titles)

	entries := make([]links.Entry, 0, len(titles))
	for _, title := range titles {
		e := links.Entry{Title: title}
		text, err := cache.Get(ctx, title)
		switch {
		case err == nil:
			e.Doc = wikitext.Parse(text)
		case errors.Is(err, pagecache.ErrNotCached):
			logger.Debug("page not cached", "title", title)
		default:
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
