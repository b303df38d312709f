// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rdfdoc writes named graphs to triple documents and reads them back.
//
// A build output directory holds one document per non-empty named graph
// (<name>.nt or <name>.ttl) and a manifest.yaml describing the run: the base
// IRI, the format, and for each graph its IRI, file, triple count and SHA-256.
// Documents are self-contained and their triple order is deterministic, so
// rebuilding from the same cache produces byte-identical files.
package rdfdoc

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knakk/rdf"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// ManifestFile is the name of the manifest inside an output directory.
const ManifestFile = "manifest.yaml"

// Manifest describes the documents of one output directory.
type Manifest struct {
	RunID     string               `yaml:"run_id"`
	BaseIRI   string               `yaml:"base_iri"`
	Format    types.DocumentFormat `yaml:"format"`
	CreatedAt time.Time            `yaml:"created_at"`
	Graphs    []GraphEntry         `yaml:"graphs"`
}

// GraphEntry describes one written document.
type GraphEntry struct {
	Name    types.GraphName `yaml:"name"`
	IRI     string          `yaml:"iri"`
	File    string          `yaml:"file"`
	Triples int             `yaml:"triples"`
	SHA256  string          `yaml:"sha256"`
}

// Lookup returns the entry for a graph.
func (m *Manifest) Lookup(name types.GraphName) (GraphEntry, bool) {
	for _, g := range m.Graphs {
		if g.Name == name {
			return g, true
		}
	}
	return GraphEntry{}, false
}

// Path returns the document path of an entry relative to dir.
func (g GraphEntry) Path(dir string) string { return filepath.Join(dir, g.File) }

// Options controls serialization.
type Options struct {
	// Namespaces maps prefix to namespace IRI. Turtle output abbreviates
	// IRIs under these namespaces; N-Triples ignores them.
	Namespaces map[string]string
}

// Write replaces the contents of dir with one document per non-empty graph
// of ds and a fresh manifest. Documents of graphs absent from ds are removed.
func Write(dir, base string, ds *triples.Dataset, format types.DocumentFormat, opts Options) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	m := &Manifest{
		RunID:     uuid.NewString(),
		BaseIRI:   strings.TrimRight(base, "/"),
		Format:    format,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	for _, name := range types.AllGraphs() {
		g, ok := ds.Lookup(name)
		if !ok {
			if err := removeDocuments(dir, name); err != nil {
				return nil, err
			}
			continue
		}
		entry, err := writeGraph(dir, m.BaseIRI, name, g, format, opts)
		if err != nil {
			return nil, err
		}
		m.Graphs = append(m.Graphs, entry)
	}
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Update writes the named graphs of ds into an existing output directory and
// updates its manifest, keeping every other entry. A listed graph that is
// empty in ds loses its document and entry. The manifest's base IRI and
// format are used.
func Update(dir string, ds *triples.Dataset, opts Options, names ...types.GraphName) (*Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	replace := make(map[types.GraphName]bool, len(names))
	for _, n := range names {
		replace[n] = true
	}

	var kept []GraphEntry
	for _, e := range m.Graphs {
		if !replace[e.Name] {
			kept = append(kept, e)
		}
	}
	for _, name := range names {
		g, ok := ds.Lookup(name)
		if !ok {
			if err := removeDocuments(dir, name); err != nil {
				return nil, err
			}
			continue
		}
		entry, err := writeGraph(dir, m.BaseIRI, name, g, m.Format, opts)
		if err != nil {
			return nil, err
		}
		kept = append(kept, entry)
	}
	sortEntries(kept)
	m.Graphs = kept
	m.RunID = uuid.NewString()
	m.CreatedAt = time.Now().UTC().Truncate(time.Second)
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

func sortEntries(entries []GraphEntry) {
	order := make(map[types.GraphName]int)
	for i, n := range types.AllGraphs() {
		order[n] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return order[entries[i].Name] < order[entries[j].Name]
	})
}

func removeDocuments(dir string, name types.GraphName) error {
	for _, f := range []types.DocumentFormat{types.FormatNTriples, types.FormatTurtle} {
		path := filepath.Join(dir, string(name)+f.Ext())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale document %s: %w", path, err)
		}
	}
	return nil
}

func writeGraph(dir, base string, name types.GraphName, g *triples.Graph, format types.DocumentFormat, opts Options) (GraphEntry, error) {
	file := string(name) + format.Ext()
	path := filepath.Join(dir, file)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return GraphEntry{}, fmt.Errorf("creating %s: %w", file, err)
	}
	h := sha256.New()
	if err := Encode(io.MultiWriter(f, h), g.Triples(), format, opts); err != nil {
		f.Close()
		os.Remove(tmp)
		return GraphEntry{}, fmt.Errorf("writing %s: %w", file, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return GraphEntry{}, fmt.Errorf("closing %s: %w", file, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return GraphEntry{}, fmt.Errorf("renaming %s: %w", file, err)
	}
	// A format switch must not leave the other serialization behind.
	for _, other := range []types.DocumentFormat{types.FormatNTriples, types.FormatTurtle} {
		if other != format {
			os.Remove(filepath.Join(dir, string(name)+other.Ext()))
		}
	}

	return GraphEntry{
		Name:    name,
		IRI:     name.IRI(base),
		File:    file,
		Triples: g.Len(),
		SHA256:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Encode serializes ts to w in the given format.
func Encode(w io.Writer, ts []rdf.Triple, format types.DocumentFormat, opts Options) error {
	bw := bufio.NewWriter(w)
	enc := rdf.NewTripleEncoder(bw, rdfFormat(format))
	if format == types.FormatTurtle && len(opts.Namespaces) > 0 {
		// The encoder keys its table by namespace.
		ns := make(map[string]string, len(opts.Namespaces))
		for prefix, iri := range opts.Namespaces {
			ns[iri] = prefix
		}
		enc.Namespaces = ns
	}
	if err := enc.EncodeAll(ts); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

func rdfFormat(f types.DocumentFormat) rdf.Format {
	if f == types.FormatTurtle {
		return rdf.Turtle
	}
	return rdf.NTriples
}

func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest of an output directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Format == "" {
		m.Format = types.FormatNTriples
	}
	return &m, nil
}

// Read decodes one document. The format follows the file extension.
func Read(path string) (*triples.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	format := types.FormatNTriples
	if filepath.Ext(path) == types.FormatTurtle.Ext() {
		format = types.FormatTurtle
	}
	g := triples.NewGraph()
	dec := rdf.NewTripleDecoder(bufio.NewReader(f), rdfFormat(format))
	for {
		t, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		g.Add(t)
	}
	return g, nil
}

// ReadDir loads every document listed in the manifest of dir, optionally
// restricted to the given graphs, and verifies each checksum.
func ReadDir(dir string, only ...types.GraphName) (*triples.Dataset, *Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}
	want := make(map[types.GraphName]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	ds := triples.NewDataset()
	for _, e := range m.Graphs {
		if len(want) > 0 && !want[e.Name] {
			continue
		}
		if err := Verify(dir, e); err != nil {
			return nil, nil, err
		}
		g, err := Read(e.Path(dir))
		if err != nil {
			return nil, nil, err
		}
		ds.Graph(e.Name).Merge(g)
	}
	return ds, m, nil
}

// Verify checks a document against its manifest checksum.
func Verify(dir string, e GraphEntry) error {
	f, err := os.Open(e.Path(dir))
	if err != nil {
		return fmt.Errorf("opening %s: %w", e.File, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing %s: %w", e.File, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != e.SHA256 {
		return fmt.Errorf("%s: checksum mismatch (manifest %s, file %s)", e.File, e.SHA256, got)
	}
	return nil
}
