// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package links

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/infobox-kg/internal/wikitext"
)

// WikipediaBase is the canonical prefix every Wikipedia link is normalized to.
const WikipediaBase = "http://en.wikipedia.org/wiki/"

// Entry is one built page offered to the resolver. Doc may be nil when only
// a side dataset is consulted.
type Entry struct {
	Title string
	Doc   *wikitext.Document
}

// SiteResolver finds the external-site identifier of an entry. An empty
// string means the entry has none.
type SiteResolver interface {
	Site(ctx context.Context, e Entry) (string, error)
}

// Chain tries resolvers in order and returns the first identifier found.
type Chain []SiteResolver

// Site implements SiteResolver.
func (c Chain) Site(ctx context.Context, e Entry) (string, error) {
	for _, r := range c {
		site, err := r.Site(ctx, e)
		if err != nil {
			return "", err
		}
		if site != "" {
			return site, nil
		}
	}
	return "", nil
}

// SideDataset maps canonical titles to external-site URLs, loaded from a YAML
// mapping of title to URL.
type SideDataset struct {
	sites map[string]string
}

// LoadSideDataset reads a side dataset file.
func LoadSideDataset(path string) (*SideDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading side dataset: %w", err)
	}
	return ParseSideDataset(data)
}

// ParseSideDataset parses side dataset YAML. Every value must be an absolute
// http(s) URL.
func ParseSideDataset(data []byte) (*SideDataset, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing side dataset: %w", err)
	}
	sd := &SideDataset{sites: make(map[string]string, len(raw))}
	for title, site := range raw {
		u, err := url.Parse(strings.TrimSpace(site))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("side dataset entry %q: %q is not an absolute URL", title, site)
		}
		if n, ok := NormalizeWikipediaURL(u.String()); ok {
			sd.sites[wikitext.CanonicalTitle(title)] = n
			continue
		}
		sd.sites[wikitext.CanonicalTitle(title)] = u.String()
	}
	return sd, nil
}

// Len returns the number of entries.
func (s *SideDataset) Len() int { return len(s.sites) }

// Site implements SiteResolver.
func (s *SideDataset) Site(_ context.Context, e Entry) (string, error) {
	return s.sites[wikitext.CanonicalTitle(e.Title)], nil
}

// PageWikipedia finds Wikipedia links in the parsed page: external URLs on a
// Wikipedia host and w:/wp:/wikipedia: interwiki links. When a page has
// several, the lexicographically first normalized URL is used.
type PageWikipedia struct{}

// Site implements SiteResolver.
func (PageWikipedia) Site(_ context.Context, e Entry) (string, error) {
	if e.Doc == nil {
		return "", nil
	}
	var found []string
	for _, u := range e.Doc.ExternalLinks {
		if n, ok := NormalizeWikipediaURL(u); ok {
			found = append(found, n)
		}
	}
	for _, title := range e.Doc.Interwiki {
		if t := strings.TrimSpace(title); t != "" {
			found = append(found, WikipediaBase+escapeTitle(t))
		}
	}
	if len(found) == 0 {
		return "", nil
	}
	sort.Strings(found)
	return found[0], nil
}

// NormalizeWikipediaURL maps a Wikipedia article URL to WikipediaBase+Title.
// It accepts protocol-relative URLs, /wiki/Title paths and
// /w/index.php?title=Title queries on any *.wikipedia.org host, and drops
// fragments. Anything else is rejected.
func NormalizeWikipediaURL(raw string) (string, bool) {
	if strings.HasPrefix(raw, "//") {
		raw = "http:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), "wikipedia.org") {
		return "", false
	}

	path := u.EscapedPath()
	if title, ok := strings.CutPrefix(path, "/wiki/"); ok && title != "" {
		return WikipediaBase + strings.ReplaceAll(title, " ", "_"), true
	}
	if strings.HasSuffix(path, "/w/index.php") || strings.HasSuffix(path, "/w/index.php/") {
		if title := u.Query().Get("title"); title != "" {
			return WikipediaBase + escapeTitle(title), true
		}
	}
	return "", false
}

// escapeTitle turns a title into a URL path segment: spaces become
// underscores and bytes outside the unreserved set plus "/:()" are
// percent-encoded.
func escapeTitle(title string) string {
	title = strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	var b strings.Builder
	for i := 0; i < len(title); i++ {
		c := title[i]
		if isTitleSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isTitleSafe(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~/:()", c) >= 0
}
