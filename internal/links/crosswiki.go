// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package links

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/infobox-kg/internal/mediawiki"
)

// WikiClient is the part of mediawiki.Client a CrossWiki needs.
type WikiClient interface {
	ResolveTitle(ctx context.Context, title string) (string, error)
	LangLinks(ctx context.Context, title string) ([]mediawiki.LangLink, error)
}

// CrossWikiPage is an entry's page on the second wiki. Labels holds one
// title per language, "en" being the resolved title.
type CrossWikiPage struct {
	URL    string
	Labels []mediawiki.LangLink
}

// CrossWiki finds the page for a title on a second wiki that covers the same
// subject, together with that page's interlanguage titles.
type CrossWiki struct {
	client   WikiClient
	pageBase string
	memo     Memoizer
}

// NewCrossWiki creates a CrossWiki whose pages live under pageBase. memo may
// be nil.
func NewCrossWiki(client WikiClient, pageBase string, memo Memoizer) (*CrossWiki, error) {
	u, err := url.Parse(pageBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("cross-wiki page base %q is not an absolute URL", pageBase)
	}
	return &CrossWiki{client: client, pageBase: pageBase, memo: memo}, nil
}

// Page returns the cross-wiki page for title, or nil when the wiki has none.
func (c *CrossWiki) Page(ctx context.Context, title string) (*CrossWikiPage, error) {
	resolved, err := c.memoized(ctx, "crosswiki-title:"+c.pageBase, title, func(ctx context.Context) (string, error) {
		return c.client.ResolveTitle(ctx, title)
	})
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", title, err)
	}
	if resolved == "" {
		return nil, nil
	}

	raw, err := c.memoized(ctx, "crosswiki-langlinks:"+c.pageBase, resolved, func(ctx context.Context) (string, error) {
		lls, err := c.client.LangLinks(ctx, resolved)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(lls)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	if err != nil {
		return nil, fmt.Errorf("language links of %q: %w", resolved, err)
	}
	var lls []mediawiki.LangLink
	if err := json.Unmarshal([]byte(raw), &lls); err != nil {
		return nil, fmt.Errorf("decoding memoised language links of %q: %w", resolved, err)
	}

	page := &CrossWikiPage{URL: c.PageURL(resolved)}
	seen := map[string]bool{"en": true}
	page.Labels = append(page.Labels, mediawiki.LangLink{Lang: "en", Title: resolved})
	for _, ll := range lls {
		if seen[ll.Lang] {
			continue
		}
		seen[ll.Lang] = true
		page.Labels = append(page.Labels, ll)
	}
	sort.Slice(page.Labels, func(i, j int) bool { return page.Labels[i].Lang < page.Labels[j].Lang })
	return page, nil
}

// PageURL returns the page IRI of title: spaces become underscores and the
// rest is percent-encoded, keeping slashes.
func (c *CrossWiki) PageURL(title string) string {
	escaped := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	return c.pageBase + strings.ReplaceAll(escaped, "%2F", "/")
}

func (c *CrossWiki) memoized(ctx context.Context, kind, key string, fn func(context.Context) (string, error)) (string, error) {
	if c.memo == nil {
		return fn(ctx)
	}
	return c.memo.Memo(ctx, kind, key, fn)
}
