// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Cache is the page store consulted by Warm.
type Cache interface {
	PageSource
	Has(ctx context.Context, title string) (bool, error)
}

// FetchSummary counts the outcomes of a Warm run.
type FetchSummary struct {
	Fetched int
	Cached  int
	Failed  int
}

// Total returns the number of titles processed.
func (s FetchSummary) Total() int { return s.Fetched + s.Cached + s.Failed }

// Warm fills the cache for titles without generating anything, so that later
// builds run offline. It prints one line per title and a summary.
func Warm(ctx context.Context, cache Cache, titles []string, workers int, logger *slog.Logger, w io.Writer) (FetchSummary, error) {
	titles = Dedupe(titles)
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	type outcome struct {
		cached bool
		err    error
	}
	outcomes := make([]outcome, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, title := range titles {
		g.Go(func() error {
			has, err := cache.Has(gctx, title)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			if has {
				outcomes[i].cached = true
				return nil
			}
			if _, err := cache.Get(gctx, title); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("fetch failed", "title", title, "error", err)
				outcomes[i].err = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FetchSummary{}, err
	}

	var s FetchSummary
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			s.Failed++
			fmt.Fprintf(w, "failed:  %s (%v)\n", titles[i], o.err)
		case o.cached:
			s.Cached++
			fmt.Fprintf(w, "cached:  %s\n", titles[i])
		default:
			s.Fetched++
			fmt.Fprintf(w, "fetched: %s\n", titles[i])
		}
	}
	fmt.Fprintf(w, "\nFetch summary: %d fetched, %d cached, %d failed (total: %d)\n",
		s.Fetched, s.Cached, s.Failed, s.Total())
	return s, nil
}
