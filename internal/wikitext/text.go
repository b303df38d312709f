// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package wikitext

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// maskedDelimiters replaces markup characters inside <nowiki> and <pre> so
// the scanner treats them as text. CleanText turns the entities back.
var maskedDelimiters = strings.NewReplacer(
	"{", "&#123;",
	"}", "&#125;",
	"[", "&#91;",
	"]", "&#93;",
	"|", "&#124;",
	"=", "&#61;",
)

// preprocess removes comments and masks verbatim sections.
func preprocess(text string) string {
	text = stripComments(text)
	for _, tag := range []string{"nowiki", "pre"} {
		text = maskElement(text, tag)
	}
	return text
}

func stripComments(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "<!--")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		j := strings.Index(s[i+4:], "-->")
		if j < 0 {
			return b.String()
		}
		s = s[i+4+j+3:]
	}
}

func maskElement(s, tag string) string {
	lower := asciiLower(s)
	open, closeTag := "<"+tag, "</"+tag+">"
	var b strings.Builder
	for {
		i := strings.Index(lower, open)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		gt := strings.IndexByte(lower[i:], '>')
		if gt < 0 {
			b.WriteString(s)
			return b.String()
		}
		bodyStart := i + gt + 1
		if lower[bodyStart-2] == '/' {
			// Self-closing <nowiki/>.
			b.WriteString(s[:bodyStart])
			s, lower = s[bodyStart:], lower[bodyStart:]
			continue
		}
		j := strings.Index(lower[bodyStart:], closeTag)
		if j < 0 {
			b.WriteString(s[:bodyStart])
			b.WriteString(maskedDelimiters.Replace(s[bodyStart:]))
			return b.String()
		}
		bodyEnd := bodyStart + j
		b.WriteString(s[:bodyStart])
		b.WriteString(maskedDelimiters.Replace(s[bodyStart:bodyEnd]))
		b.WriteString(s[bodyEnd : bodyEnd+len(closeTag)])
		s, lower = s[bodyEnd+len(closeTag):], lower[bodyEnd+len(closeTag):]
	}
}

// asciiLower lower-cases ASCII letters only, keeping byte offsets aligned
// with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

var (
	breakPattern    = regexp.MustCompile(`(?i)<br\s*/?>`)
	bulletPattern   = regexp.MustCompile(`(?m)^\s*[*#]+\s*`)
	emphasisPattern = regexp.MustCompile(`'{2,}`)
)

// SplitList splits a field value into list items on <br> tags, line breaks,
// bullets and semicolons. Separators inside links or nested templates do not
// split. Empty items are dropped; a value with no separator yields one item.
func SplitList(value string) []string {
	v := breakPattern.ReplaceAllString(value, "\n")
	v = bulletPattern.ReplaceAllString(v, "\n")

	var items []string
	depth, start := 0, 0
	flush := func(end int) {
		if item := strings.TrimSpace(v[start:end]); item != "" {
			items = append(items, item)
		}
	}
	for i := 0; i < len(v); i++ {
		switch {
		case strings.HasPrefix(v[i:], "{{") || strings.HasPrefix(v[i:], "[["):
			depth++
			i++
		case (strings.HasPrefix(v[i:], "}}") || strings.HasPrefix(v[i:], "]]")) && depth > 0:
			depth--
			i++
		case depth == 0 && (v[i] == '\n' || v[i] == ';'):
			flush(i)
			start = i + 1
		}
	}
	flush(len(v))
	return items
}

// CleanText renders a field value as plain text: references and HTML tags
// are removed, entities are decoded, links are replaced by their display
// text and bold/italic quotes are dropped. Nested templates stay as opaque
// text. Whitespace is collapsed.
func CleanText(value string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(value))
	skipDepth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				b.Write(z.Raw())
			}
			break
		}
		if tt == html.TextToken {
			if skipDepth == 0 {
				b.Write(z.Text())
			}
			continue
		}
		name, _ := z.TagName()
		switch {
		case tt == html.StartTagToken && string(name) == "ref":
			skipDepth++
		case tt == html.EndTagToken && string(name) == "ref" && skipDepth > 0:
			skipDepth--
		case string(name) == "br" && tt != html.EndTagToken && skipDepth == 0:
			b.WriteByte(' ')
		}
	}

	text := wikiLinkDisplay(b.String())
	text = emphasisPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// displayLinkPattern captures the display part of [[target|display]].
var displayLinkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]*))?\]\]`)

func wikiLinkDisplay(s string) string {
	return displayLinkPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := displayLinkPattern.FindStringSubmatch(m)
		if strings.TrimSpace(sub[2]) != "" {
			return sub[2]
		}
		return strings.TrimPrefix(strings.TrimSpace(stripFragment(sub[1])), ":")
	})
}
