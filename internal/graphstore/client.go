// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphstore loads triple documents into a triple store over the SPARQL
// 1.1 Graph Store HTTP Protocol and runs read-only queries against it.
package graphstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knakk/sparql"

	"github.com/pdiddy/infobox-kg/internal/httputil"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/secrets"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// Mode selects how a document is loaded into its named graph.
type Mode string

const (
	// ModeReplace swaps the named graph's content (HTTP PUT).
	ModeReplace Mode = "replace"
	// ModeAppend adds to the named graph (HTTP POST).
	ModeAppend Mode = "append"
)

// ParseMode converts a flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeAppend:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown load mode %q (want replace or append)", s)
}

// Client talks to one triple store.
type Client struct {
	dataURL    string
	queryURL   string
	http       *http.Client
	userAgent  string
	maxRetries int
	creds      secrets.Credentials
	timeout    time.Duration
}

// NewClient creates a Client. Credentials are sent as HTTP basic auth on
// graph store requests when set.
func NewClient(cfg types.GraphStoreConfig, creds secrets.Credentials) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	return &Client{
		dataURL:    cfg.DataURL,
		queryURL:   cfg.QueryURL,
		http:       &http.Client{Timeout: timeout},
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		creds:      creds,
		timeout:    timeout,
	}
}

// Replace sets the content of graphIRI to doc.
func (c *Client) Replace(ctx context.Context, graphIRI string, format types.DocumentFormat, doc []byte) error {
	return c.send(ctx, http.MethodPut, graphIRI, format, doc)
}

// Append adds doc to graphIRI.
func (c *Client) Append(ctx context.Context, graphIRI string, format types.DocumentFormat, doc []byte) error {
	return c.send(ctx, http.MethodPost, graphIRI, format, doc)
}

func (c *Client) send(ctx context.Context, method, graphIRI string, format types.DocumentFormat, doc []byte) error {
	if c.dataURL == "" {
		return fmt.Errorf("graph store data URL is not configured")
	}
	u, err := url.Parse(c.dataURL)
	if err != nil {
		return fmt.Errorf("parsing data URL: %w", err)
	}
	q := u.Query()
	q.Set("graph", graphIRI)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", format.MediaType())
	req.Header.Set("User-Agent", c.userAgent)
	if !c.creds.Empty() {
		req.SetBasicAuth(c.creds.User, c.creds.Password)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, nil, req, c.maxRetries)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, graphIRI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: graph store returned HTTP %d: %s",
			method, graphIRI, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// LoadResult reports one loaded document.
type LoadResult struct {
	Graph   types.GraphName
	IRI     string
	Triples int
	Err     error
}

// LoadDir loads every document listed in the manifest of dir, optionally
// restricted to the given graphs. Each document is verified against its
// checksum before upload. A failed graph does not stop the others.
func (c *Client) LoadDir(ctx context.Context, dir string, mode Mode, only ...types.GraphName) ([]LoadResult, error) {
	m, err := rdfdoc.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	want := make(map[types.GraphName]bool, len(only))
	for _, n := range only {
		want[n] = true
	}

	var results []LoadResult
	for _, e := range m.Graphs {
		if len(want) > 0 && !want[e.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := LoadResult{Graph: e.Name, IRI: e.IRI, Triples: e.Triples}
		r.Err = c.loadEntry(ctx, dir, m.Format, e, mode)
		results = append(results, r)
	}
	return results, nil
}

func (c *Client) loadEntry(ctx context.Context, dir string, format types.DocumentFormat, e rdfdoc.GraphEntry, mode Mode) error {
	if err := rdfdoc.Verify(dir, e); err != nil {
		return err
	}
	doc, err := os.ReadFile(e.Path(dir))
	if err != nil {
		return fmt.Errorf("reading %s: %w", e.File, err)
	}
	if mode == ModeAppend {
		return c.Append(ctx, e.IRI, format, doc)
	}
	return c.Replace(ctx, e.IRI, format, doc)
}

// Rows is a tabular query result.
type Rows struct {
	Vars      []string
	Solutions []map[string]string
}

var updateKeyword = regexp.MustCompile(`(?i)\b(INSERT|DELETE|LOAD|CLEAR|CREATE|DROP|COPY|MOVE|ADD)\b`)

// Query runs a read-only SELECT against the query endpoint. Update
// operations are refused.
func (c *Client) Query(ctx context.Context, query string) (*Rows, error) {
	if c.queryURL == "" {
		return nil, fmt.Errorf("graph store query URL is not configured")
	}
	if updateKeyword.MatchString(stripIRIsAndStrings(query)) {
		return nil, fmt.Errorf("refusing update operation on the query endpoint")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := sparql.NewRepo(c.queryURL, sparql.Timeout(c.timeout))
	if err != nil {
		return nil, fmt.Errorf("creating SPARQL repository: %w", err)
	}
	res, err := repo.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	rows := &Rows{Vars: res.Head.Vars}
	for _, sol := range res.Solutions() {
		row := make(map[string]string, len(sol))
		for k, v := range sol {
			row[k] = v.String()
		}
		rows.Solutions = append(rows.Solutions, row)
	}
	return rows, nil
}

var iriOrString = regexp.MustCompile(`<[^>\s]*>|"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|#[^\n]*`)

// stripIRIsAndStrings blanks out IRIs, string literals and comments so that
// keywords inside them are not mistaken for operations.
func stripIRIsAndStrings(q string) string {
	return iriOrString.ReplaceAllString(q, " ")
}
