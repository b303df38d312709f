// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package wikitext

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wikiLinkPattern matches [[Target]], [[Target#Section]] and [[Target|text]].
// It is the lightweight field-value classifier; page-level links come from
// the scanner.
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|#]+)(?:#[^\]|]+)?(?:\|[^\]]+)?\]\]`)

var (
	urlPattern         = regexp.MustCompile(`(?i)\bhttps?://[^\s\[\]<>"{}|]+`)
	relativeURLPattern = regexp.MustCompile(`\[(//[^\s\[\]<>"{}|]+)`)
)

// namespaces are link prefixes that leave the main article namespace.
var namespaces = map[string]bool{
	"media": true, "special": true, "talk": true, "user": true, "project": true,
	"file": true, "image": true, "mediawiki": true, "template": true, "help": true,
	"category": true, "portal": true, "module": true, "forum": true,
	"tolkien gateway": true, "tg": true,
}

// languageCodes are the interlanguage prefixes recognised on wiki pages.
var languageCodes = map[string]bool{
	"ar": true, "bg": true, "ca": true, "cs": true, "cy": true, "da": true,
	"de": true, "el": true, "en": true, "eo": true, "es": true, "et": true,
	"eu": true, "fa": true, "fi": true, "fr": true, "ga": true, "gl": true,
	"he": true, "hr": true, "hu": true, "id": true, "is": true, "it": true,
	"ja": true, "ko": true, "la": true, "lt": true, "lv": true, "nl": true,
	"no": true, "pl": true, "pt": true, "ro": true, "ru": true, "sk": true,
	"sl": true, "sr": true, "sv": true, "th": true, "tr": true, "uk": true,
	"vi": true, "zh": true,
}

var wikipediaPrefixes = map[string]bool{"w": true, "wp": true, "wikipedia": true}

type linkClass int

const (
	linkNone linkClass = iota
	linkMain
	linkCategory
	linkFile
	linkLang
	linkWikipedia
)

// classifyLink sorts a raw link target. For linkLang the returned prefix is
// the language code; target is the canonical title in every case.
func classifyLink(raw string) (class linkClass, prefix, target string) {
	t := strings.TrimSpace(raw)
	if t == "" || len(t) > 255 || strings.ContainsAny(t, "\n{}[]<>") {
		return linkNone, "", ""
	}
	colon := strings.HasPrefix(t, ":")
	t = strings.TrimSpace(strings.TrimPrefix(t, ":"))

	if i := strings.IndexByte(t, ':'); i > 0 {
		ns := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(t[:i], "_", " ")), " "))
		rest := CanonicalTitle(stripFragment(t[i+1:]))
		switch {
		case ns == "category":
			if colon || rest == "" {
				return linkNone, "", ""
			}
			return linkCategory, ns, rest
		case ns == "file" || ns == "image":
			if colon || rest == "" {
				return linkNone, "", ""
			}
			return linkFile, ns, rest
		case wikipediaPrefixes[ns]:
			if rest == "" {
				return linkNone, "", ""
			}
			return linkWikipedia, ns, rest
		case languageCodes[ns]:
			if colon || rest == "" {
				return linkNone, "", ""
			}
			return linkLang, ns, strings.TrimSpace(t[i+1:])
		case namespaces[ns] || strings.HasSuffix(ns, " talk"):
			return linkNone, "", ""
		}
	}

	title := CanonicalTitle(stripFragment(t))
	if title == "" {
		return linkNone, "", ""
	}
	return linkMain, "", title
}

func (p *parser) addLink(raw string) {
	class, prefix, target := classifyLink(raw)
	if class == linkNone {
		return
	}
	key := string(rune('0'+class)) + prefix + "|" + target
	if p.seen[key] {
		return
	}
	p.seen[key] = true

	switch class {
	case linkMain:
		p.doc.Links = append(p.doc.Links, target)
	case linkCategory:
		p.doc.Categories = append(p.doc.Categories, target)
	case linkFile:
		p.doc.Files = append(p.doc.Files, target)
	case linkLang:
		p.doc.LangLinks = append(p.doc.LangLinks, LangLink{Lang: prefix, Title: target})
	case linkWikipedia:
		p.doc.Interwiki = append(p.doc.Interwiki, target)
	}
}

func stripFragment(t string) string {
	if i := strings.IndexByte(t, '#'); i >= 0 {
		return t[:i]
	}
	return t
}

// CanonicalTitle normalizes a link target the way the wiki does: underscores
// become spaces, runs of whitespace collapse and the first letter is
// upper-cased.
func CanonicalTitle(t string) string {
	t = strings.Join(strings.Fields(strings.ReplaceAll(t, "_", " ")), " ")
	if t == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(t)
	if unicode.IsLower(r) {
		return string(unicode.ToUpper(r)) + t[size:]
	}
	return t
}

// LinkTargets returns the main-namespace titles linked from a field value,
// in order, without duplicates. Section anchors and display text are
// dropped; namespaced targets such as File: or Category: are excluded.
func LinkTargets(value string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range wikiLinkPattern.FindAllStringSubmatch(value, -1) {
		class, _, title := classifyLink(m[1])
		if class != linkMain || seen[title] {
			continue
		}
		seen[title] = true
		out = append(out, title)
	}
	return out
}

// IsSingleLink reports whether value consists of exactly one internal link
// and nothing else.
func IsSingleLink(value string) bool {
	v := strings.TrimSpace(value)
	loc := wikiLinkPattern.FindStringSubmatchIndex(v)
	if loc == nil || loc[0] != 0 || loc[1] != len(v) {
		return false
	}
	class, _, _ := classifyLink(v[loc[2]:loc[3]])
	return class == linkMain
}

// URLs finds absolute and protocol-relative URLs in order of first
// appearance, without duplicates.
func URLs(src string) []string {
	type hit struct {
		at  int
		url string
	}
	var hits []hit
	for _, loc := range urlPattern.FindAllStringIndex(src, -1) {
		hits = append(hits, hit{loc[0], trimURL(src[loc[0]:loc[1]])})
	}
	for _, loc := range relativeURLPattern.FindAllStringSubmatchIndex(src, -1) {
		hits = append(hits, hit{loc[2], trimURL(src[loc[2]:loc[3]])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })

	var out []string
	seen := make(map[string]bool)
	for _, h := range hits {
		if h.url == "" || seen[h.url] {
			continue
		}
		seen[h.url] = true
		out = append(out, h.url)
	}
	return out
}

// trimURL removes punctuation that ends a sentence rather than the URL. A
// closing parenthesis is kept when the URL opened one.
func trimURL(u string) string {
	for u != "" {
		last := u[len(u)-1]
		switch {
		case strings.IndexByte(".,;:!?'", last) >= 0:
			u = u[:len(u)-1]
		case last == ')' && strings.Count(u, "(") < strings.Count(u, ")"):
			u = u[:len(u)-1]
		default:
			return u
		}
	}
	return u
}
