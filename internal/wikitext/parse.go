// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package wikitext extracts templates and links from raw wiki markup.
//
// The parser is an explicit-stack scanner over the {{ }}, {{{ }}} and [[ ]]
// delimiters. It tracks nesting so an inner template never terminates an
// outer one, splits top-level template bodies on the pipes that belong to
// them, and never fails a page: an unterminated template keeps the fields
// completed before the truncation point and marks the document partial.
// Field values are not parsed recursively; nested templates inside a value
// are kept as opaque text.
package wikitext

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field is one name/value pair of a template occurrence. Positional fields
// are named "1", "2", ... counting only unnamed arguments.
type Field struct {
	Name       string
	Value      string
	Positional bool
}

// Template is one top-level template occurrence, fields in source order.
type Template struct {
	Name      string
	Fields    []Field
	Truncated bool
	Offset    int
}

// Key returns the lookup key of the template name: lowercase with spaces
// replaced by underscores ("Infobox character" -> "infobox_character").
func (t Template) Key() string {
	return TemplateKey(t.Name)
}

// NamedFields counts fields given as name=value.
func (t Template) NamedFields() int {
	n := 0
	for _, f := range t.Fields {
		if !f.Positional {
			n++
		}
	}
	return n
}

// Get returns the value of the first field called name.
func (t Template) Get(name string) (string, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// TemplateKey normalizes a template name to its lookup key.
func TemplateKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(normalizeTemplateName(name)), " ", "_")
}

// LangLink is an interlanguage link such as [[fr:Elrond]].
type LangLink struct {
	Lang  string
	Title string
}

// Document is the structured result of parsing one page.
type Document struct {
	// Links are main-namespace link targets in order of first appearance.
	Links []string
	// Templates are top-level template occurrences in source order.
	Templates []Template
	// LangLinks are interlanguage links in order of appearance.
	LangLinks []LangLink
	// Interwiki holds Wikipedia titles linked through w:, wp: or wikipedia:.
	Interwiki []string
	// ExternalLinks are absolute URLs in order of first appearance.
	ExternalLinks []string
	Categories    []string
	Files         []string

	// Partial is set when a template was truncated by end of input.
	Partial  bool
	Warnings []ParseWarning
}

// ParseWarning reports a recoverable markup problem. The page is still
// usable; the affected template contributes only what was complete.
type ParseWarning struct {
	Offset   int
	Template string
	Message  string
}

func (w ParseWarning) Error() string {
	if w.Template == "" {
		return fmt.Sprintf("offset %d: %s", w.Offset, w.Message)
	}
	return fmt.Sprintf("offset %d: template %q: %s", w.Offset, w.Template, w.Message)
}

type frameKind int

const (
	frameTemplate frameKind = iota
	frameParam
	frameLink
)

// frame is one open delimiter. pipes and eqs only record characters seen
// while this frame was innermost; eqs[k] is the first '=' after pipes[k].
type frame struct {
	kind  frameKind
	start int
	pipes []int
	eqs   []int
}

type parser struct {
	src   string
	stack []*frame
	doc   *Document
	seen  map[string]bool
}

// Parse parses raw page text. It never fails; problems are reported as
// Document.Warnings.
func Parse(text string) *Document {
	p := &parser{
		src:  preprocess(text),
		doc:  &Document{},
		seen: make(map[string]bool),
	}
	p.scan()
	p.doc.ExternalLinks = URLs(p.src)
	return p.doc
}

// scan runs the delimiter scanner to the end of input. An unterminated
// top-level "{{" that cannot open a template is literal text: the page is
// rescanned with that opener ignored, so the templates that follow it are
// still top-level.
func (p *parser) scan() {
	var literal []int
	for {
		p.doc, p.seen, p.stack = &Document{}, make(map[string]bool), nil
		p.scanText(literal)
		f := p.openTemplate()
		if f == nil || p.templateName(f) != "" {
			break
		}
		literal = append(literal, f.start)
	}
	sort.Ints(literal)
	for _, at := range literal {
		p.doc.Warnings = append(p.doc.Warnings, ParseWarning{
			Offset:  at,
			Message: `unmatched "{{" treated as text`,
		})
	}
	p.finish()
}

// scanText scans the whole input. Template openers at the literal offsets
// are plain text.
func (p *parser) scanText(literal []int) {
	s := p.src
	skip := make(map[int]bool, len(literal))
	for _, at := range literal {
		skip[at] = true
	}
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{{"):
			p.push(frameParam, i)
			i += 3
		case strings.HasPrefix(s[i:], "{{") && skip[i]:
			i += 2
		case strings.HasPrefix(s[i:], "{{"):
			p.push(frameTemplate, i)
			i += 2
		case strings.HasPrefix(s[i:], "[["):
			p.push(frameLink, i)
			i += 2
		case strings.HasPrefix(s[i:], "}}}") && p.innermost(frameParam):
			p.stack = p.stack[:len(p.stack)-1]
			i += 3
		case strings.HasPrefix(s[i:], "}}") && p.closeTemplate(i):
			i += 2
		case strings.HasPrefix(s[i:], "]]") && p.innermost(frameLink):
			p.closeLink(i)
			i += 2
		case s[i] == '|' && len(p.stack) > 0:
			f := p.stack[len(p.stack)-1]
			f.pipes = append(f.pipes, i)
			f.eqs = append(f.eqs, -1)
			i++
		case s[i] == '=' && len(p.stack) > 0:
			f := p.stack[len(p.stack)-1]
			if f.kind == frameTemplate && len(f.eqs) > 0 && f.eqs[len(f.eqs)-1] < 0 {
				f.eqs[len(f.eqs)-1] = i
			}
			i++
		default:
			i++
		}
	}
}

// openTemplate returns the unterminated top-level template frame, if any.
// Only links can sit below it, so there is at most one.
func (p *parser) openTemplate() *frame {
	for k, f := range p.stack {
		if f.kind == frameTemplate && p.outermostTemplate(k) {
			return f
		}
	}
	return nil
}

// templateName returns the normalized name of f, or "" when the text after
// "{{" cannot be a template name: empty, a parser function, or running over
// a line break or into another "{{".
func (p *parser) templateName(f *frame) string {
	end := len(p.src)
	if len(f.pipes) > 0 {
		end = f.pipes[0]
	}
	raw := p.src[f.start+2 : end]
	if strings.Contains(strings.TrimSpace(raw), "\n") {
		return ""
	}
	name := normalizeTemplateName(raw)
	if name == "" || strings.HasPrefix(name, "#") || strings.Contains(name, "{{") {
		return ""
	}
	return name
}

func (p *parser) push(kind frameKind, at int) {
	p.stack = append(p.stack, &frame{kind: kind, start: at})
}

func (p *parser) innermost(kind frameKind) bool {
	return len(p.stack) > 0 && p.stack[len(p.stack)-1].kind == kind
}

// closeTemplate closes the nearest open template. Unclosed links or
// parameters above it are abandoned as literal text. It reports false when no
// template is open, in which case "}}" is literal.
func (p *parser) closeTemplate(end int) bool {
	k := len(p.stack) - 1
	for k >= 0 && p.stack[k].kind != frameTemplate {
		k--
	}
	if k < 0 {
		return false
	}
	f := p.stack[k]
	topLevel := p.outermostTemplate(k)
	p.stack = p.stack[:k]
	if topLevel {
		p.record(f, end, false)
	}
	return true
}

// outermostTemplate reports whether no template or parameter encloses stack[k].
func (p *parser) outermostTemplate(k int) bool {
	for _, f := range p.stack[:k] {
		if f.kind != frameLink {
			return false
		}
	}
	return true
}

func (p *parser) closeLink(end int) {
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	targetEnd := end
	if len(f.pipes) > 0 {
		targetEnd = f.pipes[0]
	}
	p.addLink(p.src[f.start+2 : targetEnd])
}

func (p *parser) finish() {
	if f := p.openTemplate(); f != nil {
		p.record(f, len(p.src), true)
	}
	p.stack = nil
}

// record converts a closed (or truncated) frame into a Template. For a
// truncated template the trailing segment is dropped because its end was
// never seen.
func (p *parser) record(f *frame, end int, truncated bool) {
	bounds := append([]int{f.start + 1}, f.pipes...)
	bounds = append(bounds, end)

	name := normalizeTemplateName(p.src[f.start+2 : bounds[1]])
	if name == "" || strings.HasPrefix(name, "#") || strings.Contains(name, "{{") {
		return
	}

	tpl := Template{Name: name, Offset: f.start, Truncated: truncated}
	last := len(bounds) - 1
	if truncated {
		last--
	}
	pos := 0
	for j := 1; j < last; j++ {
		segStart, segEnd := bounds[j]+1, bounds[j+1]
		if eq := f.eqs[j-1]; eq >= 0 && eq < segEnd {
			if fname := strings.TrimSpace(p.src[segStart:eq]); fname != "" {
				tpl.Fields = append(tpl.Fields, Field{
					Name:  fname,
					Value: strings.TrimSpace(p.src[eq+1 : segEnd]),
				})
				continue
			}
		}
		pos++
		tpl.Fields = append(tpl.Fields, Field{
			Name:       strconv.Itoa(pos),
			Value:      strings.TrimSpace(p.src[segStart:segEnd]),
			Positional: true,
		})
	}

	if truncated {
		p.doc.Partial = true
		p.doc.Warnings = append(p.doc.Warnings, ParseWarning{
			Offset:   f.start,
			Template: name,
			Message:  fmt.Sprintf("unterminated template, kept %d complete fields", len(tpl.Fields)),
		})
	}
	p.doc.Templates = append(p.doc.Templates, tpl)
}

func normalizeTemplateName(raw string) string {
	name := strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " ")
	if i := strings.IndexByte(name, ':'); i >= 0 && strings.EqualFold(strings.TrimSpace(name[:i]), "template") {
		name = strings.TrimSpace(name[i+1:])
	}
	return name
}
