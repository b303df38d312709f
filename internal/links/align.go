// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package links

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/knakk/rdf"
	"github.com/knakk/sparql"
)

//go:embed queries.rq
var queries []byte

var queryBank = sparql.LoadBank(bytes.NewReader(queries))

// AlignmentSource maps an external-site URL to zero or one knowledge-base
// identifier. An empty string means no identifier.
type AlignmentSource interface {
	Align(ctx context.Context, siteURL string) (string, error)
}

// Memoizer caches lookups across runs. *pagecache.Cache implements it.
type Memoizer interface {
	Memo(ctx context.Context, kind, key string, fn func(context.Context) (string, error)) (string, error)
}

// SPARQLSource aligns site URLs against a SPARQL endpoint. It tries its
// queries in order and the first one with results wins.
type SPARQLSource struct {
	endpoint string
	tags     []string
	repo     *sparql.Repo
	memo     Memoizer
}

// NewDBpedia creates an alignment source that matches resources through
// foaf:isPrimaryTopicOf. memo may be nil.
func NewDBpedia(endpoint string, timeout time.Duration, memo Memoizer) (*SPARQLSource, error) {
	return newSPARQLSource(endpoint, timeout, memo, "primary-topic")
}

// NewYAGO creates an alignment source for a YAGO 4 endpoint. YAGO publishes
// the Wikipedia link under several predicates; they are tried as
// schema:sameAs, owl:sameAs, foaf:isPrimaryTopicOf, schema:about.
func NewYAGO(endpoint string, timeout time.Duration, memo Memoizer) (*SPARQLSource, error) {
	return newSPARQLSource(endpoint, timeout, memo, "schema-sameas", "owl-sameas", "primary-topic", "schema-about")
}

func newSPARQLSource(endpoint string, timeout time.Duration, memo Memoizer, tags ...string) (*SPARQLSource, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	repo, err := sparql.NewRepo(endpoint, sparql.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("creating SPARQL repository for %s: %w", endpoint, err)
	}
	return &SPARQLSource{endpoint: endpoint, tags: tags, repo: repo, memo: memo}, nil
}

// Endpoint returns the SPARQL endpoint URL.
func (s *SPARQLSource) Endpoint() string { return s.endpoint }

// Align implements AlignmentSource. Results are memoised per endpoint, known
// misses included.
func (s *SPARQLSource) Align(ctx context.Context, siteURL string) (string, error) {
	if strings.ContainsAny(siteURL, "<>\" {}|\\^`") {
		return "", fmt.Errorf("cannot embed %q in a query", siteURL)
	}
	lookup := func(ctx context.Context) (string, error) {
		return s.lookup(ctx, siteURL)
	}
	if s.memo == nil {
		return lookup(ctx)
	}
	return s.memo.Memo(ctx, "align:"+s.endpoint, siteURL, lookup)
}

// lookup runs the queries in order. A query that fails does not stop the
// rest, but a miss is only reported when every query answered.
func (s *SPARQLSource) lookup(ctx context.Context, siteURL string) (string, error) {
	var firstErr error
	for _, tag := range s.tags {
		id, err := s.query(ctx, tag, siteURL)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if id != "" {
			return id, nil
		}
	}
	return "", firstErr
}

func (s *SPARQLSource) query(ctx context.Context, tag, siteURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q, err := queryBank.Prepare(tag, struct{ URL string }{siteURL})
	if err != nil {
		return "", fmt.Errorf("preparing %s query: %w", tag, err)
	}
	res, err := s.repo.Query(q)
	if err != nil {
		return "", fmt.Errorf("%s query for %s: %w", tag, siteURL, err)
	}
	var ids []string
	for _, sol := range res.Solutions() {
		if t, ok := sol["s"]; ok && t.Type() == rdf.TermIRI {
			ids = append(ids, t.String())
		}
	}
	if len(ids) == 0 {
		return "", nil
	}
	sort.Strings(ids)
	return ids[0], nil
}
