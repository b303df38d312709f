// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package links emits identity links for built entities.
//
// For every entry a SiteResolver may find one external-site identifier
// (usually a Wikipedia article). That becomes "res schema:sameAs <site>" in
// the sameas graph. Independently, an AlignmentSource may map the site to a
// knowledge-base resource, written as "res owl:sameAs <kb>" in the
// alignments graph, and resources that share a site identifier are aligned
// with each other. Entries without an identifier contribute nothing.
//
// A CrossWiki adds the entry's page on a second wiki to the crosswiki graph
// as owl:sameAs, with one rdfs:label per language edition of that page.
package links

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// Stats summarizes one resolution run.
type Stats struct {
	Entries int
	Sites   int
	Aligned int
	// Shared counts resources aligned through a shared site identifier.
	Shared int
	// CrossWiki counts entries found on the second wiki; Labels counts the
	// language labels written for them.
	CrossWiki int
	Labels    int
	// Failed counts alignment and cross-wiki lookups that returned an error.
	Failed int
}

// Resolver produces the sameas and alignments graphs.
type Resolver struct {
	iris    *iri.Resolver
	sites   SiteResolver
	align   []AlignmentSource
	cross   *CrossWiki
	workers int
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAlignment adds an alignment source. Every source is consulted for
// every site. Without one only site links and shared-site alignments are
// emitted.
func WithAlignment(a AlignmentSource) Option {
	return func(r *Resolver) { r.align = append(r.align, a) }
}

// WithCrossWiki enables the crosswiki graph.
func WithCrossWiki(c *CrossWiki) Option {
	return func(r *Resolver) { r.cross = c }
}

// WithWorkers bounds concurrent lookups.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger for per-entry lookup failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver.
func NewResolver(iris *iri.Resolver, sites SiteResolver, opts ...Option) *Resolver {
	r := &Resolver{iris: iris, sites: sites, workers: 1, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// resolved holds one entry's lookups. kb and failures are indexed by
// alignment source; a miss is "".
type resolved struct {
	resource  string
	site      string
	kb        []string
	failures  []bool
	cross     *CrossWikiPage
	crossFail bool
}

// Resolve emits identity triples for entries. A failed lookup is logged and
// counted; it does not fail the run. Only cancellation does.
func (r *Resolver) Resolve(ctx context.Context, entries []Entry) (*triples.Dataset, Stats, error) {
	stats := Stats{Entries: len(entries)}
	results := make([]resolved, len(entries))

	for i, e := range entries {
		site, err := r.sites.Site(ctx, e)
		if err != nil {
			return nil, stats, err
		}
		results[i] = resolved{
			resource: r.iris.Resolve(e.Title).Resource,
			site:     site,
			kb:       make([]string, len(r.align)),
			failures: make([]bool, len(r.align)),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range results {
		if results[i].site != "" {
			for j, src := range r.align {
				g.Go(func() error {
					kb, err := src.Align(gctx, results[i].site)
					if err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						r.logger.Warn("alignment lookup failed", "title", entries[i].Title, "site", results[i].site, "error", err)
						results[i].failures[j] = true
						return nil
					}
					results[i].kb[j] = kb
					return nil
				})
			}
		}
		if r.cross != nil {
			g.Go(func() error {
				page, err := r.cross.Page(gctx, entries[i].Title)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					r.logger.Warn("cross-wiki lookup failed", "title", entries[i].Title, "error", err)
					results[i].crossFail = true
					return nil
				}
				results[i].cross = page
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	ds := triples.NewDataset()
	bySite := make(map[string][]string)

	for i, res := range results {
		for _, f := range res.failures {
			if f {
				stats.Failed++
			}
		}
		if res.crossFail {
			stats.Failed++
		}
		if res.cross != nil {
			r.emitCrossWiki(ds.Graph(types.GraphCrossWiki), res.resource, res.cross, &stats)
		}
		if res.site == "" {
			continue
		}
		if t, err := triples.Link(res.resource, vocab.SchemaSameAs, res.site); err == nil {
			ds.Graph(types.GraphSameAs).Add(t)
			stats.Sites++
		} else {
			r.logger.Warn("skipping site link", "title", entries[i].Title, "site", res.site, "error", err)
			continue
		}
		bySite[res.site] = append(bySite[res.site], res.resource)
		for _, kb := range res.kb {
			if kb == "" {
				continue
			}
			if t, err := triples.Link(res.resource, vocab.OWLSameAs, kb); err == nil && ds.Graph(types.GraphAlignments).Add(t) {
				stats.Aligned++
			}
		}
	}

	for _, resources := range bySite {
		resources = uniqueSorted(resources)
		for _, other := range resources[1:] {
			if t, err := triples.Link(other, vocab.OWLSameAs, resources[0]); err == nil {
				ds.Graph(types.GraphAlignments).Add(t)
				stats.Shared++
			}
		}
	}
	return ds, stats, nil
}

func (r *Resolver) emitCrossWiki(g *triples.Graph, resource string, page *CrossWikiPage, stats *Stats) {
	t, err := triples.Link(resource, vocab.OWLSameAs, page.URL)
	if err != nil {
		r.logger.Warn("skipping cross-wiki link", "resource", resource, "page", page.URL, "error", err)
		return
	}
	g.Add(t)
	stats.CrossWiki++
	for _, ll := range page.Labels {
		lit, err := triples.Literal(ll.Title, ll.Lang)
		if err != nil {
			continue
		}
		if t, err := triples.Triple(resource, vocab.RDFSLabel, lit); err == nil && g.Add(t) {
			stats.Labels++
		}
	}
}

func uniqueSorted(ss []string) []string {
	sort.Strings(ss)
	out := ss[:0]
	for _, s := range ss {
		if len(out) == 0 || s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
