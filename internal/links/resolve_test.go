// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package links

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

type fakeAlign struct {
	mu    sync.Mutex
	ids   map[string]string
	fail  map[string]bool
	calls int
}

func (f *fakeAlign) Align(_ context.Context, site string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[site] {
		return "", errors.New("endpoint unavailable")
	}
	return f.ids[site], nil
}

type mapMemo struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *mapMemo) Memo(ctx context.Context, kind, key string, fn func(context.Context) (string, error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[kind+"|"+key]; ok {
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return "", err
	}
	m.values[kind+"|"+key] = v
	return v, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func objectsOf(g *triples.Graph, subj, pred string) []string {
	var out []string
	for _, t := range g.Triples() {
		if t.Subj.String() == subj && t.Pred.String() == pred {
			out = append(out, t.Obj.String())
		}
	}
	return out
}

func TestResolve(t *testing.T) {
	r, err := iri.NewResolver("http://localhost:8000")
	require.NoError(t, err)
	sd, err := ParseSideDataset([]byte(
		"Elrond: https://en.wikipedia.org/wiki/Elrond\n" +
			"Elrond Half-elven: https://en.wikipedia.org/wiki/Elrond\n" +
			"Arwen: https://en.wikipedia.org/wiki/Arwen\n" +
			"Smaug: https://en.wikipedia.org/wiki/Smaug\n"))
	require.NoError(t, err)

	align := &fakeAlign{
		ids: map[string]string{
			"http://en.wikipedia.org/wiki/Elrond": "http://dbpedia.org/resource/Elrond",
		},
		fail: map[string]bool{"http://en.wikipedia.org/wiki/Smaug": true},
	}
	res := NewResolver(r, sd, WithAlignment(align), WithWorkers(4), WithLogger(quietLogger()))

	entries := []Entry{{Title: "Elrond Half-elven"}, {Title: "Elrond"}, {Title: "Arwen"}, {Title: "Smaug"}, {Title: "Bilbo"}}
	ds, stats, err := res.Resolve(context.Background(), entries)
	require.NoError(t, err)

	elrond := r.Resolve("Elrond").Resource
	halfElven := r.Resolve("Elrond Half-elven").Resource

	sameAs, ok := ds.Lookup(types.GraphSameAs)
	require.True(t, ok)
	assert.Equal(t, []string{"http://en.wikipedia.org/wiki/Elrond"}, objectsOf(sameAs, elrond, vocab.SchemaSameAs))
	assert.Equal(t, []string{"http://en.wikipedia.org/wiki/Arwen"}, objectsOf(sameAs, r.Resolve("Arwen").Resource, vocab.SchemaSameAs))
	assert.Empty(t, objectsOf(sameAs, r.Resolve("Bilbo").Resource, vocab.SchemaSameAs))

	alignments, ok := ds.Lookup(types.GraphAlignments)
	require.True(t, ok)
	assert.Equal(t, []string{"http://dbpedia.org/resource/Elrond"}, objectsOf(alignments, elrond, vocab.OWLSameAs))
	// Both Elrond pages share a site; the later IRI in sort order points at the first.
	first, second := elrond, halfElven
	if second < first {
		first, second = second, first
	}
	assert.Contains(t, objectsOf(alignments, second, vocab.OWLSameAs), first)
	assert.NotContains(t, objectsOf(alignments, first, vocab.OWLSameAs), second)

	assert.Equal(t, Stats{Entries: 5, Sites: 4, Aligned: 2, Shared: 1, Failed: 1}, stats)
}

func TestResolve_NoIdentifiersNoTriples(t *testing.T) {
	r, err := iri.NewResolver("http://localhost:8000")
	require.NoError(t, err)
	res := NewResolver(r, PageWikipedia{}, WithLogger(quietLogger()))

	ds, stats, err := res.Resolve(context.Background(), []Entry{{Title: "Bilbo"}})
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
	assert.Empty(t, ds.Names())
	assert.Equal(t, 1, stats.Entries)
}

func TestResolve_Cancelled(t *testing.T) {
	r, err := iri.NewResolver("http://localhost:8000")
	require.NoError(t, err)
	sd, err := ParseSideDataset([]byte("Elrond: https://en.wikipedia.org/wiki/Elrond\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewResolver(r, sd, WithAlignment(AlignFunc(func(ctx context.Context, _ string) (string, error) {
		return "", ctx.Err()
	})), WithLogger(quietLogger()))

	_, _, err = res.Resolve(ctx, []Entry{{Title: "Elrond"}})
	assert.ErrorIs(t, err, context.Canceled)
}

// AlignFunc adapts a function to AlignmentSource in tests.
type AlignFunc func(ctx context.Context, site string) (string, error)

func (f AlignFunc) Align(ctx context.Context, site string) (string, error) { return f(ctx, site) }

func sparqlServer(t *testing.T, bindings map[string][]string, calls *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		q := r.FormValue("query")
		assert.Contains(t, q, "foaf:isPrimaryTopicOf")

		var rows []string
		for site, ids := range bindings {
			if !strings.Contains(q, "<"+site+">") {
				continue
			}
			for _, id := range ids {
				rows = append(rows, fmt.Sprintf(`{"s":{"type":"uri","value":%q}}`, id))
			}
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		fmt.Fprintf(w, `{"head":{"vars":["s"]},"results":{"bindings":[%s]}}`, strings.Join(rows, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDBpedia_Align(t *testing.T) {
	var calls int
	srv := sparqlServer(t, map[string][]string{
		"http://en.wikipedia.org/wiki/Elrond": {"http://dbpedia.org/resource/Elrond_(Middle-earth)", "http://dbpedia.org/resource/Elrond"},
	}, &calls)

	memo := &mapMemo{values: map[string]string{}}
	db, err := NewDBpedia(srv.URL, 5*time.Second, memo)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := db.Align(ctx, "http://en.wikipedia.org/wiki/Elrond")
	require.NoError(t, err)
	assert.Equal(t, "http://dbpedia.org/resource/Elrond", id, "lexicographically first")

	id, err = db.Align(ctx, "http://en.wikipedia.org/wiki/Elrond")
	require.NoError(t, err)
	assert.Equal(t, "http://dbpedia.org/resource/Elrond", id)

	none, err := db.Align(ctx, "http://en.wikipedia.org/wiki/Nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = db.Align(ctx, "http://en.wikipedia.org/wiki/Nobody")
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "hits and known misses are memoised")
}

func TestDBpedia_RejectsUnsafeURL(t *testing.T) {
	db, err := NewDBpedia("http://localhost:1/sparql", time.Second, nil)
	require.NoError(t, err)
	_, err = db.Align(context.Background(), "http://x/> } DROP ALL {")
	assert.Error(t, err)
}

func TestYAGO_PredicateOrder(t *testing.T) {
	const site = "http://en.wikipedia.org/wiki/Elrond"
	tests := []struct {
		name    string
		answers map[string][]string
		want    string
		queries int
	}{
		{
			name:    "schema sameAs wins",
			answers: map[string][]string{"schema.org/sameAs": {"http://yago-knowledge.org/resource/Elrond"}, "owl#sameAs": {"http://yago-knowledge.org/resource/Other"}},
			want:    "http://yago-knowledge.org/resource/Elrond",
			queries: 1,
		},
		{
			name:    "falls through to primary topic",
			answers: map[string][]string{"foaf:isPrimaryTopicOf": {"http://yago-knowledge.org/resource/Elrond_Q1"}, "schema.org/about": {"http://yago-knowledge.org/resource/Z"}},
			want:    "http://yago-knowledge.org/resource/Elrond_Q1",
			queries: 3,
		},
		{
			name:    "schema about last",
			answers: map[string][]string{"schema.org/about": {"http://yago-knowledge.org/resource/Elrond"}},
			want:    "http://yago-knowledge.org/resource/Elrond",
			queries: 4,
		},
		{
			name:    "no match",
			answers: map[string][]string{},
			want:    "",
			queries: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var seen []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.FormValue("query")
				assert.Contains(t, q, "<"+site+">")
				assert.Contains(t, q, "LIMIT 20")
				var rows []string
				for marker, ids := range tt.answers {
					if !strings.Contains(q, marker) {
						continue
					}
					mu.Lock()
					seen = append(seen, marker)
					mu.Unlock()
					for _, id := range ids {
						rows = append(rows, fmt.Sprintf(`{"s":{"type":"uri","value":%q}}`, id))
					}
				}
				mu.Lock()
				if len(rows) == 0 {
					seen = append(seen, "miss")
				}
				mu.Unlock()
				w.Header().Set("Content-Type", "application/sparql-results+json")
				fmt.Fprintf(w, `{"head":{"vars":["s"]},"results":{"bindings":[%s]}}`, strings.Join(rows, ","))
			}))
			t.Cleanup(srv.Close)

			yago, err := NewYAGO(srv.URL, 5*time.Second, nil)
			require.NoError(t, err)
			id, err := yago.Align(context.Background(), site)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.Len(t, seen, tt.queries)
		})
	}
}

func TestYAGO_FailedQueryDoesNotHideLaterMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.FormValue("query")
		if strings.Contains(q, "schema.org/sameAs") {
			http.Error(w, "timeout", http.StatusServiceUnavailable)
			return
		}
		var rows string
		if strings.Contains(q, "owl#sameAs") {
			rows = `{"s":{"type":"uri","value":"http://yago-knowledge.org/resource/Elrond"}}`
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		fmt.Fprintf(w, `{"head":{"vars":["s"]},"results":{"bindings":[%s]}}`, rows)
	}))
	t.Cleanup(srv.Close)

	memo := &mapMemo{values: map[string]string{}}
	yago, err := NewYAGO(srv.URL, 5*time.Second, memo)
	require.NoError(t, err)
	id, err := yago.Align(context.Background(), "http://en.wikipedia.org/wiki/Elrond")
	require.NoError(t, err)
	assert.Equal(t, "http://yago-knowledge.org/resource/Elrond", id)
	assert.Contains(t, memo.values, "align:"+srv.URL+"|http://en.wikipedia.org/wiki/Elrond")
}

func TestYAGO_AllQueriesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	memo := &mapMemo{values: map[string]string{}}
	yago, err := NewYAGO(srv.URL, 5*time.Second, memo)
	require.NoError(t, err)
	_, err = yago.Align(context.Background(), "http://en.wikipedia.org/wiki/Elrond")
	assert.Error(t, err)
	assert.Empty(t, memo.values, "errors are not memoised")
}

func TestResolve_SeveralAlignmentSources(t *testing.T) {
	r, err := iri.NewResolver("http://localhost:8000")
	require.NoError(t, err)
	sd, err := ParseSideDataset([]byte("Elrond: https://en.wikipedia.org/wiki/Elrond\nSmaug: https://en.wikipedia.org/wiki/Smaug\n"))
	require.NoError(t, err)

	dbpedia := &fakeAlign{ids: map[string]string{
		"http://en.wikipedia.org/wiki/Elrond": "http://dbpedia.org/resource/Elrond",
		"http://en.wikipedia.org/wiki/Smaug":  "http://dbpedia.org/resource/Smaug",
	}}
	yago := &fakeAlign{
		ids:  map[string]string{"http://en.wikipedia.org/wiki/Elrond": "http://yago-knowledge.org/resource/Elrond"},
		fail: map[string]bool{"http://en.wikipedia.org/wiki/Smaug": true},
	}
	res := NewResolver(r, sd, WithAlignment(dbpedia), WithAlignment(yago), WithWorkers(2), WithLogger(quietLogger()))

	ds, stats, err := res.Resolve(context.Background(), []Entry{{Title: "Elrond"}, {Title: "Smaug"}})
	require.NoError(t, err)

	alignments, ok := ds.Lookup(types.GraphAlignments)
	require.True(t, ok)
	assert.ElementsMatch(t,
		[]string{"http://dbpedia.org/resource/Elrond", "http://yago-knowledge.org/resource/Elrond"},
		objectsOf(alignments, r.Resolve("Elrond").Resource, vocab.OWLSameAs))
	assert.Equal(t, []string{"http://dbpedia.org/resource/Smaug"}, objectsOf(alignments, r.Resolve("Smaug").Resource, vocab.OWLSameAs))
	assert.Equal(t, Stats{Entries: 2, Sites: 2, Aligned: 3, Failed: 1}, stats)
	assert.Equal(t, 2, dbpedia.calls)
	assert.Equal(t, 2, yago.calls)
}
