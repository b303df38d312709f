// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// GraphName identifies one logical partition of the generated triples. Each
// named graph is written to its own document and loaded independently.
type GraphName string

const (
	GraphBackbone   GraphName = "backbone"
	GraphInfobox    GraphName = "infobox"
	GraphLinks      GraphName = "links"
	GraphLabels     GraphName = "labels"
	GraphSameAs     GraphName = "sameas"
	GraphAlignments GraphName = "alignments"
	GraphCrossWiki  GraphName = "crosswiki"
	GraphShapes     GraphName = "shapes"
)

// AllGraphs returns every graph name in load order.
func AllGraphs() []GraphName {
	return []GraphName{
		GraphBackbone,
		GraphInfobox,
		GraphLinks,
		GraphLabels,
		GraphSameAs,
		GraphAlignments,
		GraphCrossWiki,
		GraphShapes,
	}
}

// IRI returns the named-graph IRI under base.
func (g GraphName) IRI(base string) string {
	return strings.TrimRight(base, "/") + "/graph/" + string(g)
}

// ParseGraphName converts a string to a known GraphName.
func ParseGraphName(s string) (GraphName, error) {
	for _, g := range AllGraphs() {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown graph %q", s)
}
