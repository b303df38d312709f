// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package iri mints the identifiers used throughout the graph. Every page
// title maps to a slug and to a document/resource IRI pair under a fixed
// base. Derivation is a pure function of the title, so forward references to
// pages that have not been built yet resolve without any lookup.
package iri

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrEmptyTitle is returned when a blank title reaches the resolver.
var ErrEmptyTitle = errors.New("empty page title")

// IRIs holds the identifiers derived from one title.
type IRIs struct {
	Slug     string
	Document string
	Resource string
}

// Resolver derives IRIs under a base such as "http://localhost:8000".
type Resolver struct {
	base string
}

// NewResolver validates base and returns a Resolver. A trailing slash on base
// is ignored.
func NewResolver(base string) (*Resolver, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base IRI %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base IRI %q must be absolute", base)
	}
	return &Resolver{base: base}, nil
}

// Base returns the base IRI without a trailing slash.
func (r *Resolver) Base() string { return r.base }

// Resolve maps a title to its slug, document IRI and resource IRI.
func (r *Resolver) Resolve(title string) IRIs {
	s := Slug(title)
	return IRIs{
		Slug:     s,
		Document: r.base + "/page/" + s,
		Resource: r.base + "/resource/" + s,
	}
}

// Vocab returns the project vocabulary namespace.
func (r *Resolver) Vocab() string { return r.base + "/vocab/" }

// Template returns the IRI that identifies an infobox template by key.
func (r *Resolver) Template(key string) string { return r.base + "/template/" + Slug(key) }

// Shape returns the node shape IRI for a class local name.
func (r *Resolver) Shape(key string) string { return r.base + "/shape/" + Slug(key) }

// Graph returns a named-graph IRI.
func (r *Resolver) Graph(name string) string { return r.base + "/graph/" + Slug(name) }

// TitleFromResource inverts Resolve for resource IRIs. The second result is
// false when iri is not a resource IRI under this base. Underscores come back
// as spaces, which is the canonical wiki form.
func (r *Resolver) TitleFromResource(iri string) (string, bool) {
	rest, ok := strings.CutPrefix(iri, r.base+"/resource/")
	if !ok || rest == "" {
		return "", false
	}
	t, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return strings.ReplaceAll(t, "_", " "), true
}

// Slug trims title, replaces spaces with underscores and percent-encodes
// every byte outside [A-Za-z0-9-._~:]. Case is preserved.
func Slug(title string) string {
	t := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	var b strings.Builder
	b.Grow(len(t))
	for i := 0; i < len(t); i++ {
		c := t[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~:", c) >= 0
}

// Collision records two or more distinct titles that share a slug.
type Collision struct {
	Slug   string   `json:"slug" yaml:"slug"`
	Titles []string `json:"titles" yaml:"titles"`
}

// SlugCollisionError reports every slug claimed by more than one title. It
// is a run-level failure: writing either title's triples would merge two
// entities under one identifier.
type SlugCollisionError struct {
	Collisions []Collision
}

func (e *SlugCollisionError) Error() string {
	parts := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		parts = append(parts, fmt.Sprintf("%s <- %q", c.Slug, c.Titles))
	}
	return fmt.Sprintf("slug collision (%d): %s", len(e.Collisions), strings.Join(parts, "; "))
}

// CheckCollisions checks a full title set before anything is generated.
// Exact duplicate titles are the same page and do not collide. Blank titles
// are rejected with ErrEmptyTitle.
func CheckCollisions(titles []string) error {
	return CheckCollisionsBy(titles, nil)
}

// CheckCollisionsBy is CheckCollisions with each title first mapped through
// canon, the normalization the page source applies to titles. Two distinct
// titles with the same canonical form would be minted as one entity, so they
// collide. A nil canon leaves titles as given.
func CheckCollisionsBy(titles []string, canon func(string) string) error {
	bySlug := make(map[string][]string)
	seen := make(map[string]bool)
	for _, t := range titles {
		if strings.TrimSpace(t) == "" {
			return ErrEmptyTitle
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		c := t
		if canon != nil {
			c = canon(t)
		}
		s := Slug(c)
		bySlug[s] = append(bySlug[s], t)
	}

	var cols []Collision
	for s, ts := range bySlug {
		if len(ts) < 2 {
			continue
		}
		sort.Strings(ts)
		cols = append(cols, Collision{Slug: s, Titles: ts})
	}
	if len(cols) == 0 {
		return nil
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Slug < cols[j].Slug })
	return &SlugCollisionError{Collisions: cols}
}
