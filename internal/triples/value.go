// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package triples

import (
	"strconv"
	"strings"

	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/internal/wikitext"
)

// Value is one classified field value. Kind is always concrete: literal,
// lang-literal, internal-link or external-link. Text holds the literal text,
// the linked title or the URL.
type Value struct {
	Kind     vocab.ValueKind
	Text     string
	Datatype string
}

// Classify turns a raw field value into the values its mapping asks for.
// List mappings split first and classify every item with the item kind. An
// empty result means the field is unclassifiable and is skipped.
func Classify(fm vocab.FieldMapping, raw string) []Value {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if fm.Kind != vocab.KindList {
		return classifyScalar(fm.Kind, fm.Datatype, raw)
	}
	var out []Value
	for _, item := range wikitext.SplitList(raw) {
		out = append(out, classifyScalar(fm.ItemKind, fm.Datatype, item)...)
	}
	return out
}

func classifyScalar(kind vocab.ValueKind, datatype, raw string) []Value {
	switch kind {
	case vocab.KindInternalLink:
		return linkValues(raw)
	case vocab.KindExternalLink:
		return urlValues(wikitext.URLs(raw))
	case vocab.KindLiteral:
		return literalValue(vocab.KindLiteral, datatype, raw)
	case vocab.KindLangLiteral:
		return literalValue(vocab.KindLangLiteral, "", raw)
	}

	// Auto: links win, then a value that is nothing but a URL, then text.
	if vs := linkValues(raw); len(vs) > 0 {
		return vs
	}
	if urls := wikitext.URLs(raw); len(urls) == 1 && isBareURL(raw, urls[0]) {
		return urlValues(urls)
	}
	if datatype != "" {
		return literalValue(vocab.KindLiteral, datatype, raw)
	}
	return literalValue(vocab.KindLangLiteral, "", raw)
}

func linkValues(raw string) []Value {
	var out []Value
	for _, t := range wikitext.LinkTargets(raw) {
		out = append(out, Value{Kind: vocab.KindInternalLink, Text: t})
	}
	return out
}

func urlValues(urls []string) []Value {
	var out []Value
	for _, u := range urls {
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		out = append(out, Value{Kind: vocab.KindExternalLink, Text: u})
	}
	return out
}

func literalValue(kind vocab.ValueKind, datatype, raw string) []Value {
	text := wikitext.CleanText(raw)
	if text == "" {
		return nil
	}
	if datatype == vocab.XSDInteger {
		n, err := strconv.Atoi(strings.ReplaceAll(text, ",", ""))
		if err != nil {
			// Not a number after all; keep the text untyped.
			return []Value{{Kind: vocab.KindLiteral, Text: text}}
		}
		text = strconv.Itoa(n)
	}
	return []Value{{Kind: kind, Text: text, Datatype: datatype}}
}

// isBareURL reports whether raw is just the URL, optionally in external-link
// brackets with a caption.
func isBareURL(raw, u string) bool {
	v := strings.TrimSpace(raw)
	if v == u {
		return true
	}
	return strings.HasPrefix(v, "["+u) && strings.HasSuffix(v, "]") && strings.Count(v, "[") == 1
}
