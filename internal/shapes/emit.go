// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shapes

import (
	"strconv"

	"github.com/knakk/rdf"

	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
)

// IRI returns the node shape IRI of s.
func (s Shape) IRI(r *iri.Resolver) string { return r.Shape(s.Key) }

// PropertyIRI returns the IRI of the property shape for pc within s.
func (s Shape) PropertyIRI(r *iri.Resolver, pc PropertyConstraint) string {
	return r.Shape(s.Key + "." + pc.Key)
}

// Triples renders s as SHACL. The node shape always targets and requires its
// class; each constraint becomes an sh:property node.
func (s Shape) Triples(r *iri.Resolver) ([]rdf.Triple, error) {
	node := s.IRI(r)
	var out []rdf.Triple
	add := func(subj, pred, obj string) error {
		t, err := triples.Link(subj, pred, obj)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}
	addLit := func(subj, pred string, obj rdf.Literal) error {
		t, err := triples.Triple(subj, pred, obj)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}

	if err := add(node, vocab.RDFType, vocab.SHNodeShape); err != nil {
		return nil, err
	}
	if err := add(node, vocab.SHTargetClass, s.Type); err != nil {
		return nil, err
	}
	if err := add(node, vocab.SHClass, s.Type); err != nil {
		return nil, err
	}

	for _, pc := range s.Properties {
		prop := s.PropertyIRI(r, pc)
		spo := [][3]string{
			{node, vocab.SHProperty, prop},
			{prop, vocab.RDFType, vocab.SHPropertyShape},
			{prop, vocab.SHPath, pc.Path},
		}
		if pc.Severity != "" {
			spo = append(spo, [3]string{prop, vocab.SHSeverity, pc.Severity})
		}
		switch {
		case pc.IRIValued:
			spo = append(spo, [3]string{prop, vocab.SHNodeKind, vocab.SHIRI})
		case pc.Datatype != "":
			spo = append(spo, [3]string{prop, vocab.SHDatatype, pc.Datatype})
		}
		for _, t := range spo {
			if err := add(t[0], t[1], t[2]); err != nil {
				return nil, err
			}
		}

		counts := []struct {
			pred string
			n    int
		}{
			{vocab.SHMinCount, pc.MinCount},
			{vocab.SHMaxCount, pc.MaxCount},
		}
		for _, c := range counts {
			if c.n == 0 {
				continue
			}
			lit, err := triples.TypedLiteral(strconv.Itoa(c.n), vocab.XSDInteger)
			if err != nil {
				return nil, err
			}
			if err := addLit(prop, c.pred, lit); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Graph renders every shape into one graph.
func Graph(shapes []Shape, r *iri.Resolver) (*triples.Graph, error) {
	g := triples.NewGraph()
	for _, s := range shapes {
		ts, err := s.Triples(r)
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			g.Add(t)
		}
	}
	return g, nil
}
