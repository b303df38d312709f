// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package build

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/pagecache"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

const base = "http://localhost:8000"

var wiki = map[string]string{
	"Elrond": `{{Infobox character
| name = Elrond
| affiliation = [[Rivendell]], [[White Council]]
| spouse = [[Celebrían]]
}}
'''Elrond''' was the Lord of [[Rivendell]].
[[de:Elrond]]`,
	"Arwen": `{{Infobox character
| name = Arwen
| affiliation = [[Rivendell]]
}}`,
	"Broken": `{{Infobox character
| name = Broken
| affiliation = [[Rivendell]]`,
	"Rivendell": `{{Infobox location
| name = Rivendell
| realm = [[Eriador]]
}}`,
}

type mapSource struct {
	mu    sync.Mutex
	pages map[string]string
	calls atomic.Int32
}

func (m *mapSource) FetchWikitext(_ context.Context, title string) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.pages[title]
	if !ok {
		return "", errors.New("missingtitle: The page you specified doesn't exist")
	}
	return text, nil
}

func newGenerator(t *testing.T) *triples.Generator {
	t.Helper()
	r, err := iri.NewResolver(base)
	require.NoError(t, err)
	cfg, err := vocab.DefaultConfig()
	require.NoError(t, err)
	cfg.Namespace = r.Vocab()
	m, err := vocab.NewMapper(cfg)
	require.NoError(t, err)
	return triples.NewGenerator(r, m, triples.Options{Language: "en"})
}

func openCache(t *testing.T, path string, src pagecache.Source) *pagecache.Cache {
	t.Helper()
	c, err := pagecache.Open(path, src)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun(t *testing.T) {
	src := &mapSource{pages: wiki}
	cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	metrics := NewMetrics()
	b := NewBuilder(cache, newGenerator(t), WithWorkers(3), WithLogger(quiet()), WithMetrics(metrics))

	var out bytes.Buffer
	res, err := b.Run(context.Background(), []string{"Elrond", "Missing", "Broken", "Arwen", "Elrond", " "}, &out)
	require.NoError(t, err)

	assert.Equal(t, Summary{Built: 2, Partial: 1, Skipped: 1, Warnings: 1}, res.Summary)
	require.Len(t, res.Pages, 4)
	assert.Equal(t, []string{"Elrond", "Missing", "Broken", "Arwen"}, []string{
		res.Pages[0].Title, res.Pages[1].Title, res.Pages[2].Title, res.Pages[3].Title,
	}, "results keep title order")

	var fe *pagecache.FetchError
	assert.ErrorAs(t, res.Pages[1].Err, &fe)
	assert.Equal(t, Skipped, res.Pages[1].Outcome)
	assert.Equal(t, Partial, res.Pages[2].Outcome)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "built:   Elrond ("))
	assert.True(t, strings.HasPrefix(lines[1], "skipped: Missing ("))
	assert.True(t, strings.HasPrefix(lines[2], "partial: Broken ("))
	assert.True(t, strings.HasPrefix(lines[3], "built:   Arwen ("))
	assert.Contains(t, out.String(), "Build summary: 2 built, 1 partial, 1 skipped (total: 4)")

	// Elrond and Arwen share an affiliation target; the dataset holds it once per subject.
	infobox, ok := res.Dataset.Lookup(types.GraphInfobox)
	require.True(t, ok)
	assert.Positive(t, infobox.Len())
	for _, name := range []types.GraphName{types.GraphBackbone, types.GraphLabels, types.GraphLinks} {
		_, ok := res.Dataset.Lookup(name)
		assert.True(t, ok, name)
	}

	var metricsOut bytes.Buffer
	mfs, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		metricsOut.WriteString(mf.GetName() + "\n")
	}
	assert.Contains(t, metricsOut.String(), "infobox_kg_build_pages_total")
	assert.Contains(t, metricsOut.String(), "infobox_kg_build_triples")
}

func TestRun_Deterministic(t *testing.T) {
	titles := []string{"Rivendell", "Arwen", "Elrond"}
	var sums []string
	for _, workers := range []int{1, 4} {
		src := &mapSource{pages: wiki}
		cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
		b := NewBuilder(cache, newGenerator(t), WithWorkers(workers), WithLogger(quiet()))
		res, err := b.Run(context.Background(), titles, io.Discard)
		require.NoError(t, err)

		dir := t.TempDir()
		m, err := rdfdoc.Write(dir, base, res.Dataset, types.FormatNTriples, rdfdoc.Options{})
		require.NoError(t, err)
		var parts []string
		for _, g := range m.Graphs {
			parts = append(parts, string(g.Name)+"="+g.SHA256)
		}
		sums = append(sums, strings.Join(parts, ","))
	}
	assert.Equal(t, sums[0], sums[1], "worker count does not change output")
}

func TestRun_OfflineRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	src := &mapSource{pages: wiki}
	cache, err := pagecache.Open(path, src)
	require.NoError(t, err)
	first, err := NewBuilder(cache, newGenerator(t), WithLogger(quiet())).Run(context.Background(), []string{"Elrond", "Arwen"}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	offline := openCache(t, path, nil)
	second, err := NewBuilder(offline, newGenerator(t), WithLogger(quiet())).Run(context.Background(), []string{"Elrond", "Arwen"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, first.Dataset.Counts(), second.Dataset.Counts())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRun_CollisionFailsBeforeWork(t *testing.T) {
	src := &mapSource{pages: wiki}
	cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	b := NewBuilder(cache, newGenerator(t), WithLogger(quiet()))

	var out bytes.Buffer
	_, err := b.Run(context.Background(), []string{"Minas Tirith", "Minas_Tirith", "Elrond"}, &out)
	var col *iri.SlugCollisionError
	require.ErrorAs(t, err, &col)
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Empty(t, out.String())
}

func TestRun_CaseVariantsCollide(t *testing.T) {
	src := &mapSource{pages: wiki}
	cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	b := NewBuilder(cache, newGenerator(t), WithLogger(quiet()))

	_, err := b.Run(context.Background(), []string{"Arwen", "arwen"}, io.Discard)
	var col *iri.SlugCollisionError
	require.ErrorAs(t, err, &col)
	require.Len(t, col.Collisions, 1)
	assert.Equal(t, "Arwen", col.Collisions[0].Slug)
	assert.Equal(t, []string{"Arwen", "arwen"}, col.Collisions[0].Titles)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestRun_BuildsCanonicalTitle(t *testing.T) {
	src := &mapSource{pages: wiki}
	cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	b := NewBuilder(cache, newGenerator(t), WithLogger(quiet()))

	var out bytes.Buffer
	res, err := b.Run(context.Background(), []string{"arwen"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "built:   Arwen (")

	backbone, ok := res.Dataset.Lookup(types.GraphBackbone)
	require.True(t, ok)
	var subjects []string
	for _, tr := range backbone.Triples() {
		subjects = append(subjects, tr.Subj.String())
	}
	assert.Contains(t, subjects, base+"/resource/Arwen")
	assert.NotContains(t, subjects, base+"/resource/arwen")
}

func TestRun_Cancelled(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), &mapSource{pages: wiki})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(cache, newGenerator(t), WithLogger(quiet())).Run(ctx, []string{"Elrond"}, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWarm(t *testing.T) {
	src := &mapSource{pages: wiki}
	cache := openCache(t, filepath.Join(t.TempDir(), "pages.db"), src)
	ctx := context.Background()
	_, err := cache.Get(ctx, "Elrond")
	require.NoError(t, err)

	var out bytes.Buffer
	s, err := Warm(ctx, cache, []string{"Elrond", "Arwen", "Nowhere", "Arwen"}, 2, quiet(), &out)
	require.NoError(t, err)
	assert.Equal(t, FetchSummary{Fetched: 1, Cached: 1, Failed: 1}, s)
	assert.Equal(t, "cached:  Elrond\nfetched: Arwen\n", out.String()[:len("cached:  Elrond\nfetched: Arwen\n")])
	assert.Contains(t, out.String(), "Fetch summary: 1 fetched, 1 cached, 1 failed (total: 3)")
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"Elrond", "Minas_Tirith", "Minas Tirith"},
		Dedupe([]string{" Elrond ", "", "Elrond", "Minas_Tirith", "Minas Tirith"}))
}

func TestTitleFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "lists", "titles.yaml")
	src := TitleSource{APIURL: "https://tolkiengateway.net/w/api.php", Kind: "category", Name: "Elves", Limit: 10}
	require.NoError(t, WriteTitleFile(yamlPath, src, []string{"Elrond", "Arwen"}))

	titles, err := ReadTitles(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Elrond", "Arwen"}, titles)

	txtPath := filepath.Join(dir, "titles.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("# elves\nElrond\n\n  Arwen  \n"), 0o644))
	titles, err = ReadTitles(txtPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Elrond", "Arwen"}, titles)

	_, err = ReadTitles(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestMetricsWriteFile(t *testing.T) {
	m := NewMetrics()
	m.ObservePage(Built, 0.01, 2, 0)
	m.ObserveCache(pagecache.Stats{Hits: 3, Misses: 1})
	path := filepath.Join(t.TempDir(), "build.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `infobox_kg_build_pages_total{outcome="built"} 1`)
	assert.Contains(t, string(data), "infobox_kg_build_mapping_fallbacks_total 2")
	assert.Contains(t, string(data), `infobox_kg_cache_lookups{result="hit"} 3`)
}
