// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vocab maps template names to entity types and template fields to
// vocabulary properties.
//
// A Mapper is compiled once from a Config and never changes afterwards, so
// builds with different vocabularies can run side by side in one process.
// Field lookup goes exact (template, field) rule, then the "*" template's
// rule, then the template's default namespace, then the global fallback
// property under the project namespace. Nothing is dropped for lack of a
// rule.
package vocab

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/infobox-kg/internal/wikitext"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// WildcardTemplate holds field rules shared by every template.
const WildcardTemplate = "*"

// MatchSource records which lookup step produced a FieldMapping.
type MatchSource int

const (
	MatchExact MatchSource = iota
	MatchWildcard
	MatchTemplateDefault
	MatchFallback
)

func (s MatchSource) String() string {
	switch s {
	case MatchExact:
		return "exact"
	case MatchWildcard:
		return "wildcard"
	case MatchTemplateDefault:
		return "template-default"
	default:
		return "fallback"
	}
}

// FieldMapping is the resolved rule for one (template, field) pair.
type FieldMapping struct {
	Property string
	Kind     ValueKind
	// ItemKind classifies list elements when Kind is KindList.
	ItemKind ValueKind
	// Datatype, when set, types literal values.
	Datatype string
	Source   MatchSource
}

// MappingFallbackUsed notes that a field had no rule and went to the
// fallback property. It is informational and tracks mapping coverage.
type MappingFallbackUsed struct {
	Template string
	Field    string
	Property string
}

func (m MappingFallbackUsed) String() string {
	return fmt.Sprintf("template %q field %q -> %s (fallback)", m.Template, m.Field, m.Property)
}

type templateEntry struct {
	typ       string
	namespace string
	fields    map[string]FieldMapping
}

// pattern matches a run of whole words of a template key, so "war" matches
// war_infobox but not award or steward.
type pattern struct {
	words []string
	typ   string
}

func (p pattern) match(key string) bool {
	words := strings.Split(key, "_")
	for i := 0; i+len(p.words) <= len(words); i++ {
		if slices.Equal(words[i:i+len(p.words)], p.words) {
			return true
		}
	}
	return false
}

// Mapper is an immutable compiled mapping table. It is safe for concurrent use.
type Mapper struct {
	namespace   string
	defaultType string
	prefixes    map[string]string
	templates   map[string]templateEntry
	wildcard    map[string]FieldMapping
	patterns    []pattern
	ignore      []string
}

// NewMapper compiles cfg. CURIEs are expanded against the standard prefixes,
// cfg.Prefixes and "tg" bound to cfg.Namespace. Unknown prefixes and value
// kinds are errors.
func NewMapper(cfg Config) (*Mapper, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("mapping namespace is required")
	}
	m := &Mapper{
		namespace: cfg.Namespace,
		prefixes:  StandardPrefixes(),
		templates: make(map[string]templateEntry),
		wildcard:  make(map[string]FieldMapping),
	}
	for p, ns := range cfg.Prefixes {
		m.prefixes[p] = ns
	}
	m.prefixes["tg"] = cfg.Namespace

	var err error
	defaultType := cfg.DefaultType
	if defaultType == "" {
		defaultType = "schema:Thing"
	}
	if m.defaultType, err = m.Expand(defaultType); err != nil {
		return nil, fmt.Errorf("default_type: %w", err)
	}

	for name, rule := range cfg.Templates {
		fields, err := m.compileFields(rule.Fields)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		if name == WildcardTemplate {
			m.wildcard = fields
			continue
		}
		entry := templateEntry{fields: fields, namespace: rule.DefaultNamespace}
		if rule.Type != "" {
			if entry.typ, err = m.Expand(rule.Type); err != nil {
				return nil, fmt.Errorf("template %q type: %w", name, err)
			}
		}
		if entry.namespace != "" {
			if entry.namespace, err = m.Expand(entry.namespace); err != nil {
				return nil, fmt.Errorf("template %q default_namespace: %w", name, err)
			}
		}
		m.templates[wikitext.TemplateKey(name)] = entry
	}

	for _, p := range cfg.Patterns {
		typ, err := m.Expand(p.Type)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Contains, err)
		}
		words := wikitext.TemplateKey(p.Contains)
		if words == "" {
			return nil, fmt.Errorf("pattern for %s: empty contains", p.Type)
		}
		m.patterns = append(m.patterns, pattern{words: strings.Split(words, "_"), typ: typ})
	}
	for _, ig := range cfg.IgnoreTemplates {
		m.ignore = append(m.ignore, wikitext.TemplateKey(ig))
	}
	return m, nil
}

func (m *Mapper) compileFields(rules map[string]FieldRule) (map[string]FieldMapping, error) {
	out := make(map[string]FieldMapping, len(rules))
	for field, r := range rules {
		prop, err := m.Expand(r.Property)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		kind, err := ParseValueKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		item, err := ParseValueKind(r.Item)
		if err != nil {
			return nil, fmt.Errorf("field %q item: %w", field, err)
		}
		if item == KindList {
			return nil, fmt.Errorf("field %q: list items cannot be lists", field)
		}
		fm := FieldMapping{Property: prop, Kind: kind, ItemKind: item, Source: MatchExact}
		if r.Datatype != "" {
			if fm.Datatype, err = m.Expand(r.Datatype); err != nil {
				return nil, fmt.Errorf("field %q datatype: %w", field, err)
			}
		}
		out[LocalName(field)] = fm
	}
	return out, nil
}

// Expand turns a CURIE such as "schema:Person" into a full IRI. Values that
// already contain "://" are returned unchanged.
func (m *Mapper) Expand(curie string) (string, error) {
	if curie == "" {
		return "", fmt.Errorf("empty IRI")
	}
	if strings.Contains(curie, "://") {
		return curie, nil
	}
	prefix, local, ok := strings.Cut(curie, ":")
	if !ok {
		return "", fmt.Errorf("%q is neither an IRI nor a CURIE", curie)
	}
	ns, ok := m.prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("unknown prefix %q in %q", prefix, curie)
	}
	return ns + local, nil
}

// Namespace returns the project vocabulary namespace.
func (m *Mapper) Namespace() string { return m.namespace }

// DefaultType returns the type given to entities without a mapped template.
func (m *Mapper) DefaultType() string { return m.defaultType }

// Prefixes returns a copy of the prefix table, for serializers.
func (m *Mapper) Prefixes() map[string]string {
	out := make(map[string]string, len(m.prefixes))
	for k, v := range m.prefixes {
		out[k] = v
	}
	return out
}

// MapTemplate returns the entity type for a template name. matched is false
// when neither an exact rule nor a pattern applied and the default type was
// returned.
func (m *Mapper) MapTemplate(name string) (typeIRI string, matched bool) {
	key := wikitext.TemplateKey(name)
	if e, ok := m.templates[key]; ok && e.typ != "" {
		return e.typ, true
	}
	for _, p := range m.patterns {
		if p.match(key) {
			return p.typ, true
		}
	}
	return m.defaultType, false
}

// Contributes reports whether fields of the named template describe the page
// entity. Ignored templates (quotes, citations, navigation) do not.
func (m *Mapper) Contributes(name string) bool {
	key := wikitext.TemplateKey(name)
	for _, ig := range m.ignore {
		if prefix, ok := strings.CutSuffix(ig, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return false
			}
			continue
		}
		if key == ig {
			return false
		}
	}
	return true
}

// MapField resolves the property and value kind for a field of a template.
func (m *Mapper) MapField(template, field string) FieldMapping {
	local := LocalName(field)
	entry, hasEntry := m.templates[wikitext.TemplateKey(template)]
	if hasEntry {
		if fm, ok := entry.fields[local]; ok {
			return fm
		}
	}
	if fm, ok := m.wildcard[local]; ok {
		fm.Source = MatchWildcard
		return fm
	}
	if hasEntry && entry.namespace != "" {
		return FieldMapping{Property: entry.namespace + local, Source: MatchTemplateDefault}
	}
	return FieldMapping{Property: m.namespace + local, Source: MatchFallback}
}

// KnownTypes lists every type the table can produce, sorted.
func (m *Mapper) KnownTypes() []string {
	set := map[string]bool{m.defaultType: true}
	for _, e := range m.templates {
		if e.typ != "" {
			set[e.typ] = true
		}
	}
	for _, p := range m.patterns {
		set[p.typ] = true
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LocalName sanitizes a field name into a property local name: accents
// removed, lower-case, anything outside [a-z0-9_] replaced by an underscore,
// runs collapsed and ends trimmed. An empty result becomes "param".
func LocalName(field string) string {
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	s, _, err := transform.String(stripMarks, strings.ToLower(strings.TrimSpace(field)))
	if err != nil {
		s = strings.ToLower(strings.TrimSpace(field))
	}
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "param"
	}
	return out
}
