// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rdfdoc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

const base = "http://localhost:8000"

func sampleDataset(t *testing.T) *triples.Dataset {
	t.Helper()
	ds := triples.NewDataset()
	res := base + "/resource/Elrond"
	doc := base + "/page/Elrond"

	link, err := triples.Link(doc, vocab.RDFType, vocab.SchemaWebPage)
	require.NoError(t, err)
	ds.Graph(types.GraphBackbone).Add(link)
	link, err = triples.Link(doc, vocab.SchemaAbout, res)
	require.NoError(t, err)
	ds.Graph(types.GraphBackbone).Add(link)

	lbl, err := triples.Literal("Elrond", "en")
	require.NoError(t, err)
	tr, err := triples.Triple(res, vocab.RDFSLabel, lbl)
	require.NoError(t, err)
	ds.Graph(types.GraphLabels).Add(tr)

	pages, err := triples.TypedLiteral("310", vocab.XSDInteger)
	require.NoError(t, err)
	tr, err = triples.Triple(res, base+"/vocab/pages", pages)
	require.NoError(t, err)
	ds.Graph(types.GraphInfobox).Add(tr)
	return ds
}

func TestWriteAndReadDir(t *testing.T) {
	dir := t.TempDir()
	ds := sampleDataset(t)

	m, err := Write(dir, base+"/", ds, types.FormatNTriples, Options{})
	require.NoError(t, err)
	assert.Equal(t, base, m.BaseIRI)
	assert.NotEmpty(t, m.RunID)

	var names []types.GraphName
	for _, g := range m.Graphs {
		names = append(names, g.Name)
	}
	assert.Equal(t, []types.GraphName{types.GraphBackbone, types.GraphInfobox, types.GraphLabels}, names)

	backbone, ok := m.Lookup(types.GraphBackbone)
	require.True(t, ok)
	assert.Equal(t, "backbone.nt", backbone.File)
	assert.Equal(t, base+"/graph/backbone", backbone.IRI)
	assert.Equal(t, 2, backbone.Triples)
	assert.Len(t, backbone.SHA256, 64)
	_, err = os.Stat(filepath.Join(dir, "links.nt"))
	assert.True(t, os.IsNotExist(err), "empty graphs are not written")

	back, m2, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, m2.RunID)
	assert.Equal(t, ds.Counts(), back.Counts())
	for _, name := range ds.Names() {
		want, _ := ds.Lookup(name)
		got, ok := back.Lookup(name)
		require.True(t, ok, name)
		for _, tr := range want.Triples() {
			assert.True(t, got.Has(tr), "%s missing %s", name, tr.Serialize(rdf.NTriples))
		}
	}

	only, _, err := ReadDir(dir, types.GraphLabels)
	require.NoError(t, err)
	assert.Equal(t, []types.GraphName{types.GraphLabels}, only.Names())
}

func TestWrite_Deterministic(t *testing.T) {
	a, err := Write(t.TempDir(), base, sampleDataset(t), types.FormatNTriples, Options{})
	require.NoError(t, err)
	b, err := Write(t.TempDir(), base, sampleDataset(t), types.FormatNTriples, Options{})
	require.NoError(t, err)

	require.Len(t, b.Graphs, len(a.Graphs))
	for i := range a.Graphs {
		assert.Equal(t, a.Graphs[i].SHA256, b.Graphs[i].SHA256, a.Graphs[i].Name)
	}
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestWrite_NTriplesLines(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, base, sampleDataset(t), types.FormatNTriples, Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "labels.nt"))
	require.NoError(t, err)
	assert.Equal(t, `<http://localhost:8000/resource/Elrond> <http://www.w3.org/2000/01/rdf-schema#label> "Elrond"@en .`,
		strings.TrimSpace(string(data)))
}

func TestWrite_RemovesStaleDocuments(t *testing.T) {
	dir := t.TempDir()
	ds := sampleDataset(t)
	_, err := Write(dir, base, ds, types.FormatNTriples, Options{})
	require.NoError(t, err)

	smaller := triples.NewDataset()
	bb, _ := ds.Lookup(types.GraphBackbone)
	smaller.Graph(types.GraphBackbone).Merge(bb)
	m, err := Write(dir, base, smaller, types.FormatNTriples, Options{})
	require.NoError(t, err)
	assert.Len(t, m.Graphs, 1)
	_, err = os.Stat(filepath.Join(dir, "labels.nt"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	first, err := Write(dir, base, sampleDataset(t), types.FormatNTriples, Options{})
	require.NoError(t, err)

	extra := triples.NewDataset()
	link, err := triples.Link(base+"/resource/Elrond", vocab.SchemaSameAs, "http://en.wikipedia.org/wiki/Elrond")
	require.NoError(t, err)
	extra.Graph(types.GraphSameAs).Add(link)

	m, err := Update(dir, extra, Options{}, types.GraphSameAs, types.GraphAlignments)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, m.RunID)
	require.Len(t, m.Graphs, 4)
	assert.Equal(t, types.GraphSameAs, m.Graphs[3].Name)

	labels, ok := m.Lookup(types.GraphLabels)
	require.True(t, ok)
	orig, _ := first.Lookup(types.GraphLabels)
	assert.Equal(t, orig, labels, "untouched graphs keep their entries")

	// An empty listed graph is dropped.
	m, err = Update(dir, triples.NewDataset(), Options{}, types.GraphSameAs)
	require.NoError(t, err)
	_, ok = m.Lookup(types.GraphSameAs)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "sameas.nt"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdate_NoManifest(t *testing.T) {
	_, err := Update(t.TempDir(), triples.NewDataset(), Options{}, types.GraphShapes)
	assert.Error(t, err)
}

func TestReadDir_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, base, sampleDataset(t), types.FormatNTriples, Options{})
	require.NoError(t, err)
	f, err := os.OpenFile(filepath.Join(dir, "backbone.nt"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, _, err = ReadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestTurtle(t *testing.T) {
	dir := t.TempDir()
	ds := sampleDataset(t)
	m, err := Write(dir, base, ds, types.FormatTurtle, Options{Namespaces: vocab.StandardPrefixes()})
	require.NoError(t, err)

	entry, ok := m.Lookup(types.GraphBackbone)
	require.True(t, ok)
	assert.Equal(t, "backbone.ttl", entry.File)

	g, err := Read(entry.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	// Switching format replaces the other serialization.
	_, err = Write(dir, base, ds, types.FormatNTriples, Options{})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "backbone.ttl"))
	assert.True(t, os.IsNotExist(err))
}

func TestRead_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nt")
	require.NoError(t, os.WriteFile(path, []byte("<http://a> <http://b> .\n"), 0o644))
	_, err := Read(path)
	assert.Error(t, err)
}
