// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triples

import (
	"fmt"
	"sort"

	"github.com/knakk/rdf"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// Graph is a set of triples. Adding a triple twice has no effect, and
// Triples returns a stable order so regenerated output compares equal.
type Graph struct {
	set map[string]rdf.Triple
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{set: make(map[string]rdf.Triple)}
}

// Add inserts t and reports whether it was new.
func (g *Graph) Add(t rdf.Triple) bool {
	key := t.Serialize(rdf.NTriples)
	if _, ok := g.set[key]; ok {
		return false
	}
	g.set[key] = t
	return true
}

// Has reports whether t is in the graph.
func (g *Graph) Has(t rdf.Triple) bool {
	_, ok := g.set[t.Serialize(rdf.NTriples)]
	return ok
}

// Len returns the number of distinct triples.
func (g *Graph) Len() int { return len(g.set) }

// Triples returns the triples ordered by their N-Triples serialization.
func (g *Graph) Triples() []rdf.Triple {
	keys := make([]string, 0, len(g.set))
	for k := range g.set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]rdf.Triple, len(keys))
	for i, k := range keys {
		out[i] = g.set[k]
	}
	return out
}

// Merge adds every triple of o to g.
func (g *Graph) Merge(o *Graph) {
	for k, t := range o.set {
		g.set[k] = t
	}
}

// Dataset partitions triples into named graphs.
type Dataset struct {
	graphs map[types.GraphName]*Graph
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{graphs: make(map[types.GraphName]*Graph)}
}

// Graph returns the named graph, creating it when absent.
func (d *Dataset) Graph(name types.GraphName) *Graph {
	g, ok := d.graphs[name]
	if !ok {
		g = NewGraph()
		d.graphs[name] = g
	}
	return g
}

// Lookup returns the named graph if it holds any triples.
func (d *Dataset) Lookup(name types.GraphName) (*Graph, bool) {
	g, ok := d.graphs[name]
	if !ok || g.Len() == 0 {
		return nil, false
	}
	return g, true
}

// Names returns the non-empty graph names in load order.
func (d *Dataset) Names() []types.GraphName {
	var out []types.GraphName
	for _, n := range types.AllGraphs() {
		if _, ok := d.Lookup(n); ok {
			out = append(out, n)
		}
	}
	return out
}

// Merge adds every graph of o into d.
func (d *Dataset) Merge(o *Dataset) {
	for name, g := range o.graphs {
		d.Graph(name).Merge(g)
	}
}

// Len returns the total number of triples across graphs.
func (d *Dataset) Len() int {
	n := 0
	for _, g := range d.graphs {
		n += g.Len()
	}
	return n
}

// Counts returns the triple count per non-empty graph.
func (d *Dataset) Counts() map[types.GraphName]int {
	out := make(map[types.GraphName]int)
	for _, n := range d.Names() {
		out[n] = d.graphs[n].Len()
	}
	return out
}

// Term constructors. knakk/rdf validates IRIs, so every constructor returns
// an error for input that cannot appear in a document.

// IRI builds an IRI term.
func IRI(s string) (rdf.IRI, error) {
	i, err := rdf.NewIRI(s)
	if err != nil {
		return rdf.IRI{}, fmt.Errorf("invalid IRI %q: %w", s, err)
	}
	return i, nil
}

// Literal builds a literal, language-tagged when lang is set.
func Literal(text, lang string) (rdf.Literal, error) {
	if lang == "" {
		return rdf.NewLiteral(text)
	}
	return rdf.NewLangLiteral(text, lang)
}

// TypedLiteral builds a literal with an explicit datatype.
func TypedLiteral(text, datatype string) (rdf.Literal, error) {
	dt, err := IRI(datatype)
	if err != nil {
		return rdf.Literal{}, err
	}
	return rdf.NewTypedLiteral(text, dt), nil
}

// Triple builds a triple from an IRI subject and predicate.
func Triple(subj, pred string, obj rdf.Object) (rdf.Triple, error) {
	s, err := IRI(subj)
	if err != nil {
		return rdf.Triple{}, err
	}
	p, err := IRI(pred)
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.Triple{Subj: s, Pred: p, Obj: obj}, nil
}

// Link builds a triple whose object is an IRI.
func Link(subj, pred, obj string) (rdf.Triple, error) {
	o, err := IRI(obj)
	if err != nil {
		return rdf.Triple{}, err
	}
	return Triple(subj, pred, o)
}
