// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package triples turns parsed pages into RDF triples partitioned by named
// graph: backbone (document/entity pair and types), infobox (field values),
// links (page mentions and external references) and labels.
//
// All IRIs come from the iri.Resolver. Internal links are resolved by title,
// never by looking up what has already been generated, so a page may point
// at entities that are built later or not at all.
package triples

import (
	"fmt"
	"slices"
	"strings"

	"github.com/knakk/rdf"
	"github.com/pdiddy/infobox-kg/internal/iri"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/internal/wikitext"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// Options controls generation.
type Options struct {
	// Language tags the title label and lang-literal values. Empty leaves
	// them untagged.
	Language string

	// KeepRawValues also emits "<field>_raw" with the raw wikitext of fields
	// that produced link triples.
	KeepRawValues bool
}

// SkippedField records a field that produced no triple and why.
type SkippedField struct {
	Template string
	Field    string
	Reason   string
}

// Page is the generation result for one title.
type Page struct {
	Title   string
	IRIs    iri.IRIs
	Types   []string
	Dataset *Dataset

	Fallbacks     []vocab.MappingFallbackUsed
	Warnings      []wikitext.ParseWarning
	Partial       bool
	SkippedFields []SkippedField

	// SuppressedLabels counts untagged labels dropped because a tagged label
	// with the same text exists for the subject.
	SuppressedLabels int
}

// Generator emits triples for parsed pages. It holds no per-page state and is
// safe for concurrent use.
type Generator struct {
	resolver *iri.Resolver
	mapper   *vocab.Mapper
	opts     Options
}

// NewGenerator creates a Generator.
func NewGenerator(resolver *iri.Resolver, mapper *vocab.Mapper, opts Options) *Generator {
	return &Generator{resolver: resolver, mapper: mapper, opts: opts}
}

type label struct {
	subject string
	text    string
	lang    string
}

// Generate builds the triples of one page. The only errors are a blank title
// or IRIs that cannot be minted; field-level problems are recorded in
// Page.SkippedFields and never fail the page.
func (g *Generator) Generate(title string, doc *wikitext.Document) (*Page, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, iri.ErrEmptyTitle
	}
	ids := g.resolver.Resolve(title)
	page := &Page{
		Title:    title,
		IRIs:     ids,
		Dataset:  NewDataset(),
		Warnings: doc.Warnings,
		Partial:  doc.Partial,
	}

	contributing := g.contributing(page, doc)

	for _, tpl := range contributing {
		typ, _ := g.mapper.MapTemplate(tpl.Name)
		if !slices.Contains(page.Types, typ) {
			page.Types = append(page.Types, typ)
		}
	}
	if len(page.Types) == 0 {
		page.Types = []string{g.mapper.DefaultType()}
	}

	backbone := [][3]string{
		{ids.Document, vocab.RDFType, vocab.SchemaWebPage},
		{ids.Document, vocab.SchemaAbout, ids.Resource},
	}
	for _, typ := range page.Types {
		backbone = append(backbone, [3]string{ids.Resource, vocab.RDFType, typ})
	}
	for _, spo := range backbone {
		t, err := Link(spo[0], spo[1], spo[2])
		if err != nil {
			return nil, fmt.Errorf("minting backbone for %q: %w", title, err)
		}
		page.Dataset.Graph(types.GraphBackbone).Add(t)
	}
	for _, tpl := range contributing {
		t, err := Link(ids.Resource, g.mapper.Namespace()+vocab.LocalInfoboxTemplate, g.resolver.Template(tpl.Key()))
		if err != nil {
			page.SkippedFields = append(page.SkippedFields, SkippedField{Template: tpl.Name, Reason: err.Error()})
			continue
		}
		page.Dataset.Graph(types.GraphInfobox).Add(t)
	}

	labels := []label{
		{ids.Document, title, g.opts.Language},
		{ids.Resource, title, g.opts.Language},
	}
	for _, ll := range doc.LangLinks {
		labels = append(labels, label{ids.Resource, ll.Title, ll.Lang})
	}

	for _, tpl := range contributing {
		labels = append(labels, g.fields(page, tpl)...)
	}
	g.emitLabels(page, labels)
	g.emitLinks(page, doc)
	return page, nil
}

// contributing selects the templates whose fields describe the entity.
// Truncated templates are excluded: their field set is incomplete.
func (g *Generator) contributing(page *Page, doc *wikitext.Document) []wikitext.Template {
	var out []wikitext.Template
	for _, tpl := range doc.Templates {
		switch {
		case !g.mapper.Contributes(tpl.Name) || tpl.NamedFields() == 0:
		case tpl.Truncated:
			page.SkippedFields = append(page.SkippedFields, SkippedField{Template: tpl.Name, Reason: "template truncated"})
		default:
			out = append(out, tpl)
		}
	}
	return out
}

// fields emits the infobox triples of one template and returns the label
// values it found.
func (g *Generator) fields(page *Page, tpl wikitext.Template) []label {
	res := page.IRIs.Resource
	var labels []label
	skip := func(field, reason string) {
		page.SkippedFields = append(page.SkippedFields, SkippedField{Template: tpl.Name, Field: field, Reason: reason})
	}

	for _, f := range tpl.Fields {
		if f.Positional {
			skip(f.Name, "positional argument")
			continue
		}
		fm := g.mapper.MapField(tpl.Name, f.Name)
		isLabel := fm.Property == vocab.RDFSLabel
		if isLabel {
			// Labels are always text.
			switch {
			case fm.Kind == vocab.KindList && fm.ItemKind != vocab.KindLiteral:
				fm.ItemKind = vocab.KindLangLiteral
			case fm.Kind != vocab.KindList && fm.Kind != vocab.KindLiteral:
				fm.Kind = vocab.KindLangLiteral
			}
		}

		values := Classify(fm, f.Value)
		if len(values) == 0 {
			if strings.TrimSpace(f.Value) == "" {
				skip(f.Name, "empty value")
			} else {
				skip(f.Name, fmt.Sprintf("no %s value", fm.Kind))
			}
			continue
		}
		if fm.Source == vocab.MatchFallback {
			page.Fallbacks = append(page.Fallbacks, vocab.MappingFallbackUsed{
				Template: tpl.Name, Field: f.Name, Property: fm.Property,
			})
		}

		linked := false
		for _, v := range values {
			if isLabel && (v.Kind == vocab.KindLiteral || v.Kind == vocab.KindLangLiteral) {
				lang := ""
				if v.Kind == vocab.KindLangLiteral {
					lang = g.opts.Language
				}
				labels = append(labels, label{res, v.Text, lang})
				continue
			}
			obj, err := g.object(v)
			if err != nil {
				skip(f.Name, err.Error())
				continue
			}
			t, err := Triple(res, fm.Property, obj)
			if err != nil {
				skip(f.Name, err.Error())
				continue
			}
			page.Dataset.Graph(types.GraphInfobox).Add(t)
			linked = linked || v.Kind == vocab.KindInternalLink
		}

		if linked && g.opts.KeepRawValues {
			raw, err := Literal(f.Value, g.opts.Language)
			if err == nil {
				var t rdf.Triple
				t, err = Triple(res, g.mapper.Namespace()+vocab.LocalName(f.Name)+vocab.RawSuffix, raw)
				if err == nil {
					page.Dataset.Graph(types.GraphInfobox).Add(t)
				}
			}
			if err != nil {
				skip(f.Name+vocab.RawSuffix, err.Error())
			}
		}
	}
	return labels
}

func (g *Generator) object(v Value) (rdf.Object, error) {
	switch v.Kind {
	case vocab.KindInternalLink:
		o, err := IRI(g.resolver.Resolve(v.Text).Resource)
		return o, err
	case vocab.KindExternalLink:
		o, err := IRI(v.Text)
		return o, err
	case vocab.KindLangLiteral:
		o, err := Literal(v.Text, g.opts.Language)
		return o, err
	case vocab.KindLiteral:
		if v.Datatype != "" {
			o, err := TypedLiteral(v.Text, v.Datatype)
			return o, err
		}
		o, err := Literal(v.Text, "")
		return o, err
	}
	return nil, fmt.Errorf("unresolved value kind %s", v.Kind)
}

// emitLabels writes label triples. An untagged label is kept only when its
// text differs from every tagged label of the same subject.
func (g *Generator) emitLabels(page *Page, labels []label) {
	tagged := make(map[string]map[string]bool)
	for _, l := range labels {
		if l.lang == "" {
			continue
		}
		if tagged[l.subject] == nil {
			tagged[l.subject] = make(map[string]bool)
		}
		tagged[l.subject][l.text] = true
	}

	graph := page.Dataset.Graph(types.GraphLabels)
	for _, l := range labels {
		if l.lang == "" && tagged[l.subject][l.text] {
			page.SuppressedLabels++
			continue
		}
		lit, err := Literal(l.text, l.lang)
		if err != nil {
			page.SkippedFields = append(page.SkippedFields, SkippedField{Field: "label", Reason: err.Error()})
			continue
		}
		t, err := Triple(l.subject, vocab.RDFSLabel, lit)
		if err != nil {
			continue
		}
		graph.Add(t)
	}
}

// emitLinks writes page-level references: mentions of other entities,
// external URLs and embedded files.
func (g *Generator) emitLinks(page *Page, doc *wikitext.Document) {
	graph := page.Dataset.Graph(types.GraphLinks)
	docIRI := page.IRIs.Document
	for _, target := range doc.Links {
		if t, err := Link(docIRI, vocab.SchemaMentions, g.resolver.Resolve(target).Resource); err == nil {
			graph.Add(t)
		}
	}
	for _, v := range urlValues(doc.ExternalLinks) {
		if t, err := Link(docIRI, vocab.SchemaRelatedLink, v.Text); err == nil {
			graph.Add(t)
		}
	}
	for _, file := range doc.Files {
		lit, err := Literal(file, "")
		if err != nil {
			continue
		}
		if t, err := Triple(docIRI, vocab.SchemaImage, lit); err == nil {
			graph.Add(t)
		}
	}
}
