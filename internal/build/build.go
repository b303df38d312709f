// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package build drives extraction: for each title it obtains the page text
// through the cache, parses it and generates triples, with a bounded worker
// pool. Per-title failures are isolated; the merged dataset is assembled in
// title order so the output does not depend on scheduling.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/pagecache"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/wikitext"
)

// PageSource returns page text for a title. *pagecache.Cache implements it.
type PageSource interface {
	Get(ctx context.Context, title string) (string, error)
}

// Outcome classifies the result of one title.
type Outcome int

const (
	Built Outcome = iota
	Partial
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Built:
		return "built"
	case Partial:
		return "partial"
	default:
		return "skipped"
	}
}

// PageResult is the outcome of one title.
type PageResult struct {
	Title   string
	Outcome Outcome
	Page    *triples.Page
	Doc     *wikitext.Document
	Err     error
}

// Summary counts the outcomes of a run.
type Summary struct {
	Built     int
	Partial   int
	Skipped   int
	Fallbacks int
	Warnings  int
}

// Total returns the number of titles processed.
func (s Summary) Total() int { return s.Built + s.Partial + s.Skipped }

// HasFailures reports whether any title was skipped.
func (s Summary) HasFailures() bool { return s.Skipped > 0 }

// Result is the outcome of a run.
type Result struct {
	Dataset *triples.Dataset
	Pages   []PageResult
	Summary Summary
}

// Builder runs the fetch, parse and generate stages.
type Builder struct {
	src     PageSource
	gen     *triples.Generator
	workers int
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds the number of titles processed concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder creates a Builder.
func NewBuilder(src PageSource, gen *triples.Generator, opts ...Option) *Builder {
	b := &Builder{src: src, gen: gen, workers: 1, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run builds every title and writes one status line per title followed by a
// summary to w. Exact duplicate titles are dropped and the rest checked for
// IRI collisions before any work starts; a collision fails the whole run.
// Titles are built under their canonical form ("arwen" as "Arwen"), the form
// the page cache and link targets use.
// Individual fetch or generation failures skip that title only. The returned
// error is non-nil only for a collision or cancellation.
func (b *Builder) Run(ctx context.Context, titles []string, w io.Writer) (*Result, error) {
	titles = Dedupe(titles)
	if err := iri.CheckCollisionsBy(titles, wikitext.CanonicalTitle); err != nil {
		return nil, err
	}
	for i, t := range titles {
		titles[i] = wikitext.CanonicalTitle(t)
	}

	pages := make([]PageResult, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, title := range titles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			pages[i] = b.buildOne(gctx, title)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if b.metrics != nil {
				pr := pages[i]
				var fallbacks, warnings int
				if pr.Page != nil {
					fallbacks, warnings = len(pr.Page.Fallbacks), len(pr.Page.Warnings)
				}
				b.metrics.ObservePage(pr.Outcome, time.Since(start).Seconds(), fallbacks, warnings)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Dataset: triples.NewDataset(), Pages: pages}
	for _, pr := range pages {
		switch pr.Outcome {
		case Skipped:
			res.Summary.Skipped++
			fmt.Fprintf(w, "skipped: %s (%v)\n", pr.Title, pr.Err)
			continue
		case Partial:
			res.Summary.Partial++
			fmt.Fprintf(w, "partial: %s (%d triples, %s)\n", pr.Title, pr.Page.Dataset.Len(), warningText(pr.Page.Warnings))
		default:
			res.Summary.Built++
			fmt.Fprintf(w, "built:   %s (%d triples)\n", pr.Title, pr.Page.Dataset.Len())
		}
		res.Summary.Fallbacks += len(pr.Page.Fallbacks)
		res.Summary.Warnings += len(pr.Page.Warnings)
		res.Dataset.Merge(pr.Page.Dataset)
	}
	if b.metrics != nil {
		b.metrics.ObserveDataset(res.Dataset)
	}

	s := res.Summary
	fmt.Fprintf(w, "\nBuild summary: %d built, %d partial, %d skipped (total: %d); %d fallback mappings, %d parse warnings\n",
		s.Built, s.Partial, s.Skipped, s.Total(), s.Fallbacks, s.Warnings)
	return res, nil
}

func (b *Builder) buildOne(ctx context.Context, title string) PageResult {
	pr := PageResult{Title: title}
	text, err := b.src.Get(ctx, title)
	if err != nil {
		pr.Outcome, pr.Err = Skipped, err
		var fe *pagecache.FetchError
		if errors.As(err, &fe) {
			b.logger.Warn("fetch failed", "title", title, "error", fe.Err)
		} else {
			b.logger.Warn("page unavailable", "title", title, "error", err)
		}
		return pr
	}

	doc := wikitext.Parse(text)
	page, err := b.gen.Generate(title, doc)
	if err != nil {
		pr.Outcome, pr.Err = Skipped, err
		b.logger.Warn("generation failed", "title", title, "error", err)
		return pr
	}
	pr.Page, pr.Doc = page, doc

	for _, w := range page.Warnings {
		b.logger.Info("parse warning", "title", title, "template", w.Template, "offset", w.Offset, "message", w.Message)
	}
	for _, f := range page.Fallbacks {
		b.logger.Debug("mapping fallback used", "title", title, "detail", f.String())
	}
	for _, sf := range page.SkippedFields {
		b.logger.Debug("field skipped", "title", title, "template", sf.Template, "field", sf.Field, "reason", sf.Reason)
	}
	if page.SuppressedLabels > 0 {
		b.logger.Debug("untagged labels suppressed", "title", title, "count", page.SuppressedLabels)
	}

	pr.Outcome = Built
	if page.Partial {
		pr.Outcome = Partial
	}
	return pr
}

func warningText(ws []wikitext.ParseWarning) string {
	if len(ws) == 0 {
		return "partial parse"
	}
	msgs := make([]string, 0, len(ws))
	for _, w := range ws {
		msgs = append(msgs, w.Error())
	}
	return strings.Join(msgs, "; ")
}

// Dedupe trims titles, drops blanks and removes exact duplicates, keeping
// the first occurrence. Spelling variants of one page are left in place so
// the collision check can report them.
func Dedupe(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
