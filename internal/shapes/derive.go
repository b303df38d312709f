// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package shapes derives SHACL shapes from generated triples.
//
// A Deriver runs in three phases. While Scanning it observes datasets and
// records which subjects carry which properties and what kind of values they
// hold. Aggregate groups those observations per entity type. Emit then
// produces exactly one Shape per known or observed type; a property whose
// presence reaches the threshold becomes a minCount constraint. Calling a
// method out of phase returns ErrPhase.
package shapes

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knakk/rdf"

	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
)

// ErrPhase is returned when a Deriver method is called in the wrong phase.
var ErrPhase = errors.New("shape deriver called out of phase")

// Phase is a Deriver state.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseAggregating
	PhaseEmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseAggregating:
		return "aggregating"
	case PhaseEmitting:
		return "emitting"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Vocabulary supplies the types that must receive a shape and the prefixes
// used to name shapes. *vocab.Mapper implements it.
type Vocabulary interface {
	KnownTypes() []string
	Prefixes() map[string]string
}

// Options tunes constraint derivation.
type Options struct {
	// Threshold is the presence fraction at or above which a property gets
	// sh:minCount 1.
	Threshold float64
	// InferMaxCount adds sh:maxCount 1 when every carrying instance had a
	// single value.
	InferMaxCount bool
	// MinInstances is the sample size below which maxCount is not inferred.
	MinInstances int
}

// value kinds recorded per observed object.
const (
	kindIRI   = "iri"
	kindBlank = "blank"
)

type subject struct {
	types map[string]bool
	// props maps property → serialized value → value kind.
	props map[string]map[string]string
}

type propStats struct {
	carriers int
	maxVals  int
	kinds    map[string]bool
}

type typeStats struct {
	instances int
	props     map[string]*propStats
}

// Deriver accumulates observations and emits shapes. It is not safe for
// concurrent use; feed it from one goroutine after generation completes.
type Deriver struct {
	phase    Phase
	opts     Options
	known    []string
	prefixes map[string]string

	subjects map[string]*subject
	stats    map[string]*typeStats
}

// NewDeriver creates a Deriver in the scanning phase.
func NewDeriver(v Vocabulary, opts Options) *Deriver {
	if opts.MinInstances < 1 {
		opts.MinInstances = 1
	}
	return &Deriver{
		opts:     opts,
		known:    v.KnownTypes(),
		prefixes: v.Prefixes(),
		subjects: make(map[string]*subject),
	}
}

// Phase returns the current phase.
func (d *Deriver) Phase() Phase { return d.phase }

func (d *Deriver) require(p Phase, op string) error {
	if d.phase != p {
		return fmt.Errorf("%w: %s requires %s, deriver is %s", ErrPhase, op, p, d.phase)
	}
	return nil
}

// Observe records every triple of ds.
func (d *Deriver) Observe(ds *triples.Dataset) error {
	if err := d.require(PhaseScanning, "Observe"); err != nil {
		return err
	}
	for _, name := range ds.Names() {
		g, _ := ds.Lookup(name)
		d.observe(g.Triples())
	}
	return nil
}

// ObserveTriples records triples read back from documents.
func (d *Deriver) ObserveTriples(ts []rdf.Triple) error {
	if err := d.require(PhaseScanning, "ObserveTriples"); err != nil {
		return err
	}
	d.observe(ts)
	return nil
}

func (d *Deriver) observe(ts []rdf.Triple) {
	for _, t := range ts {
		s := t.Subj.String()
		subj, ok := d.subjects[s]
		if !ok {
			subj = &subject{types: make(map[string]bool), props: make(map[string]map[string]string)}
			d.subjects[s] = subj
		}
		p := t.Pred.String()
		if p == vocab.RDFType {
			subj.types[t.Obj.String()] = true
			continue
		}
		if subj.props[p] == nil {
			subj.props[p] = make(map[string]string)
		}
		subj.props[p][t.Obj.Serialize(rdf.NTriples)] = objectKind(t.Obj)
	}
}

// objectKind is the hint category of an object: an IRI, a blank node, or
// the datatype of a literal (rdf:langString when tagged).
func objectKind(o rdf.Object) string {
	switch o.Type() {
	case rdf.TermIRI:
		return kindIRI
	case rdf.TermBlank:
		return kindBlank
	}
	lit, ok := o.(rdf.Literal)
	if !ok {
		return kindBlank
	}
	if lit.Lang() != "" {
		return vocab.RDFLangString
	}
	if dt := lit.DataType.String(); dt != "" {
		return dt
	}
	return vocab.XSDString
}

// Aggregate groups observations by type and moves to the aggregating phase.
func (d *Deriver) Aggregate() error {
	if err := d.require(PhaseScanning, "Aggregate"); err != nil {
		return err
	}
	d.stats = make(map[string]*typeStats)
	for _, subj := range d.subjects {
		for typ := range subj.types {
			ts, ok := d.stats[typ]
			if !ok {
				ts = &typeStats{props: make(map[string]*propStats)}
				d.stats[typ] = ts
			}
			ts.instances++
			for p, values := range subj.props {
				ps, ok := ts.props[p]
				if !ok {
					ps = &propStats{kinds: make(map[string]bool)}
					ts.props[p] = ps
				}
				ps.carriers++
				ps.maxVals = max(ps.maxVals, len(values))
				for _, k := range values {
					ps.kinds[k] = true
				}
			}
		}
	}
	d.subjects = nil
	d.phase = PhaseAggregating
	return nil
}

// Shape is the derived constraint set of one entity type.
type Shape struct {
	Type       string
	Key        string
	Instances  int
	Properties []PropertyConstraint
}

// PropertyConstraint is one sh:property of a shape.
type PropertyConstraint struct {
	Path     string
	Key      string
	Presence float64
	MinCount int
	MaxCount int
	Severity string
	// Datatype is set when every value was a literal of one datatype.
	Datatype string
	// IRIValued is set when every value was an IRI.
	IRIValued bool
}

// Emit returns one shape per known or observed type, sorted by type IRI.
// It may be called repeatedly once aggregation has run.
func (d *Deriver) Emit() ([]Shape, error) {
	if d.phase == PhaseAggregating {
		d.phase = PhaseEmitting
	}
	if err := d.require(PhaseEmitting, "Emit"); err != nil {
		return nil, err
	}

	typeSet := make(map[string]bool)
	for _, t := range d.known {
		typeSet[t] = true
	}
	for t := range d.stats {
		typeSet[t] = true
	}
	typesSorted := make([]string, 0, len(typeSet))
	for t := range typeSet {
		typesSorted = append(typesSorted, t)
	}
	sort.Strings(typesSorted)

	out := make([]Shape, 0, len(typesSorted))
	for _, typ := range typesSorted {
		shape := Shape{Type: typ, Key: d.compact(typ)}
		ts, ok := d.stats[typ]
		if ok && ts.instances > 0 {
			shape.Instances = ts.instances
			shape.Properties = d.constraints(ts)
		}
		out = append(out, shape)
	}
	return out, nil
}

func (d *Deriver) constraints(ts *typeStats) []PropertyConstraint {
	paths := make([]string, 0, len(ts.props))
	for p := range ts.props {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []PropertyConstraint
	for _, p := range paths {
		ps := ts.props[p]
		presence := float64(ps.carriers) / float64(ts.instances)
		if presence < d.opts.Threshold || presence == 0 {
			continue
		}
		pc := PropertyConstraint{
			Path:     p,
			Key:      d.compact(p),
			Presence: presence,
			MinCount: 1,
			Severity: vocab.SHWarning,
		}
		if ps.carriers == ts.instances {
			pc.Severity = vocab.SHViolation
		}
		if len(ps.kinds) == 1 {
			for k := range ps.kinds {
				switch k {
				case kindIRI:
					pc.IRIValued = true
				case kindBlank:
				default:
					pc.Datatype = k
				}
			}
		}
		if d.opts.InferMaxCount && ts.instances >= d.opts.MinInstances && ps.maxVals == 1 {
			pc.MaxCount = 1
		}
		out = append(out, pc)
	}
	return out
}

// compact names an IRI as prefix_local using the longest matching
// namespace, or its last path segment when no prefix matches.
func (d *Deriver) compact(iri string) string {
	bestPrefix, bestNS := "", ""
	for p, ns := range d.prefixes {
		if strings.HasPrefix(iri, ns) && len(ns) > len(bestNS) {
			bestPrefix, bestNS = p, ns
		}
	}
	if bestNS != "" && len(iri) > len(bestNS) {
		return bestPrefix + "_" + iri[len(bestNS):]
	}
	local := strings.TrimRight(iri, "/#")
	if i := strings.LastIndexAny(local, "/#"); i >= 0 {
		local = local[i+1:]
	}
	return local
}
