// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mediawiki talks to a MediaWiki api.php endpoint: it fetches the
// wikitext of pages and enumerates titles by namespace, category or
// embedded template.
//
// Every request goes through one shared rate.Limiter so the politeness budget
// is global across workers, and through httputil.DoWithRetry so 429, 5xx and
// transient network failures are retried with backoff.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/infobox-kg/internal/httputil"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// maxBatch is the largest list limit MediaWiki grants to ordinary clients.
const maxBatch = 500

// APIError is an error payload returned by the API with HTTP 200, such as
// "missingtitle". It is not transient and is never retried.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediawiki: %s: %s", e.Code, e.Info)
}

// Client is a MediaWiki API client. It is safe for concurrent use.
type Client struct {
	apiURL     string
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
}

// NewClient creates a client for cfg.APIURL. Requests are spaced by
// cfg.RequestInterval with cfg.Burst back-to-back requests allowed.
func NewClient(cfg types.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = types.DefaultUserAgent
	}
	return &Client{
		apiURL:     cfg.APIURL,
		http:       &http.Client{Timeout: timeout},
		limiter:    NewLimiter(cfg.RequestInterval, cfg.Burst),
		userAgent:  userAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// NewLimiter returns a limiter allowing one request per interval with the
// given burst. A zero interval disables limiting.
func NewLimiter(interval time.Duration, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(interval), burst)
}

// get issues one GET with params and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.http, c.limiter, req, c.maxRetries)
	if err != nil {
		return fmt.Errorf("MediaWiki API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("MediaWiki API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing MediaWiki response: %w", err)
	}
	return nil
}

type parseResponse struct {
	Error *APIError `json:"error"`
	Parse struct {
		Title    string `json:"title"`
		Wikitext struct {
			Text string `json:"*"`
		} `json:"wikitext"`
	} `json:"parse"`
}

// FetchWikitext returns the raw wikitext of title, following redirects.
func (c *Client) FetchWikitext(ctx context.Context, title string) (string, error) {
	var pr parseResponse
	err := c.get(ctx, url.Values{
		"action":    {"parse"},
		"page":      {title},
		"prop":      {"wikitext"},
		"redirects": {"1"},
	}, &pr)
	if err != nil {
		return "", err
	}
	if pr.Error != nil {
		return "", pr.Error
	}
	return pr.Parse.Wikitext.Text, nil
}

type listResponse struct {
	Error    *APIError                  `json:"error"`
	Continue map[string]any             `json:"continue"`
	Query    map[string]json.RawMessage `json:"query"`
}

type pageRef struct {
	Title string `json:"title"`
}

// AllPages lists titles in namespace ns. A limit of 0 or less lists every page.
func (c *Client) AllPages(ctx context.Context, ns, limit int) ([]string, error) {
	return c.list(ctx, "allpages", "ap", url.Values{
		"apnamespace": {strconv.Itoa(ns)},
	}, limit)
}

// CategoryMembers lists titles in category (the "Category:" prefix is added
// when missing), restricted to namespace ns.
func (c *Client) CategoryMembers(ctx context.Context, category string, ns, limit int) ([]string, error) {
	return c.list(ctx, "categorymembers", "cm", url.Values{
		"cmtitle":     {withPrefix("Category:", category)},
		"cmnamespace": {strconv.Itoa(ns)},
	}, limit)
}

// EmbeddedIn lists titles that transclude template (the "Template:" prefix
// is added when missing), restricted to namespace ns.
func (c *Client) EmbeddedIn(ctx context.Context, template string, ns, limit int) ([]string, error) {
	return c.list(ctx, "embeddedin", "ei", url.Values{
		"eititle":     {withPrefix("Template:", template)},
		"einamespace": {strconv.Itoa(ns)},
	}, limit)
}

// list pages through a list=<module> query, passing every continuation
// parameter back until the server stops sending one or limit is reached.
func (c *Client) list(ctx context.Context, module, prefix string, base url.Values, limit int) ([]string, error) {
	var titles []string
	cont := map[string]string{}
	for {
		batch := maxBatch
		if limit > 0 {
			remaining := limit - len(titles)
			if remaining <= 0 {
				break
			}
			batch = min(batch, remaining)
		}

		params := url.Values{
			"action":        {"query"},
			"list":          {module},
			prefix + "limit": {strconv.Itoa(batch)},
		}
		for k, v := range base {
			params[k] = v
		}
		for k, v := range cont {
			params.Set(k, v)
		}

		var lr listResponse
		if err := c.get(ctx, params, &lr); err != nil {
			return titles, err
		}
		if lr.Error != nil {
			return titles, lr.Error
		}
		if raw, ok := lr.Query[module]; ok {
			var refs []pageRef
			if err := json.Unmarshal(raw, &refs); err != nil {
				return titles, fmt.Errorf("parsing %s list: %w", module, err)
			}
			for _, r := range refs {
				if r.Title != "" {
					titles = append(titles, r.Title)
				}
			}
		}

		if len(lr.Continue) == 0 {
			break
		}
		cont = map[string]string{}
		for k, v := range lr.Continue {
			cont[k] = fmt.Sprint(v)
		}
	}
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

type pagesResponse struct {
	Error    *APIError      `json:"error"`
	Continue map[string]any `json:"continue"`
	Query    struct {
		Pages map[string]struct {
			Title     string     `json:"title"`
			Missing   *string    `json:"missing"`
			Invalid   *string    `json:"invalid"`
			LangLinks []langLink `json:"langlinks"`
		} `json:"pages"`
	} `json:"query"`
}

type langLink struct {
	Lang  string `json:"lang"`
	Title string `json:"*"`
}

// LangLink is the title of a page in another language edition.
type LangLink struct {
	Lang  string
	Title string
}

// ResolveTitle returns the title title resolves to after normalization and
// redirects, or "" when no such page exists.
func (c *Client) ResolveTitle(ctx context.Context, title string) (string, error) {
	var pr pagesResponse
	err := c.get(ctx, url.Values{
		"action":    {"query"},
		"titles":    {title},
		"redirects": {"1"},
	}, &pr)
	if err != nil {
		return "", err
	}
	if pr.Error != nil {
		return "", pr.Error
	}
	for _, p := range pr.Query.Pages {
		if p.Missing != nil || p.Invalid != nil {
			return "", nil
		}
		return p.Title, nil
	}
	return "", nil
}

// LangLinks lists the interlanguage links of title, following continuation
// until every language has been returned.
func (c *Client) LangLinks(ctx context.Context, title string) ([]LangLink, error) {
	var out []LangLink
	cont := map[string]string{}
	for {
		params := url.Values{
			"action":  {"query"},
			"prop":    {"langlinks"},
			"titles":  {title},
			"lllimit": {strconv.Itoa(maxBatch)},
		}
		for k, v := range cont {
			params.Set(k, v)
		}

		var pr pagesResponse
		if err := c.get(ctx, params, &pr); err != nil {
			return out, err
		}
		if pr.Error != nil {
			return out, pr.Error
		}
		for _, p := range pr.Query.Pages {
			for _, ll := range p.LangLinks {
				if ll.Lang != "" && ll.Title != "" {
					out = append(out, LangLink{Lang: ll.Lang, Title: ll.Title})
				}
			}
		}

		if len(pr.Continue) == 0 {
			break
		}
		cont = map[string]string{}
		for k, v := range pr.Continue {
			cont[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func withPrefix(prefix, title string) string {
	if strings.HasPrefix(title, prefix) {
		return title
	}
	return prefix + title
}
