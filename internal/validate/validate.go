// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks built documents against derived shapes with an
// external SHACL engine run as a container image.
package validate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knakk/rdf"

	"github.com/pdiddy/infobox-kg/internal/container"
	"github.com/pdiddy/infobox-kg/internal/rdfdoc"
	"github.com/pdiddy/infobox-kg/internal/triples"
	"github.com/pdiddy/infobox-kg/internal/vocab"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// Validator checks data documents against a shapes document.
type Validator interface {
	Validate(ctx context.Context, dataFiles []string, shapesFile string) (*Report, error)
}

// Result is one sh:ValidationResult of a report.
type Result struct {
	Focus    string
	Path     string
	Severity string
	Message  string
}

// Level is the local name of the severity: Violation, Warning or Info.
func (r Result) Level() string { return localName(r.Severity) }

// Report is the outcome of one validation.
type Report struct {
	Conforms bool
	Results  []Result
	// Output is the raw report as printed by the engine.
	Output string
}

// Counts returns the number of results per severity local name
// (Violation, Warning, Info).
func (r *Report) Counts() map[string]int {
	out := make(map[string]int)
	for _, res := range r.Results {
		out[res.Level()]++
	}
	return out
}

const mountPoint = "/data"

// ContainerValidator runs the TopBraid SHACL command-line image.
type ContainerValidator struct {
	rt    container.Runtime
	image string
}

// NewContainerValidator creates a validator and checks that the image is
// present locally.
func NewContainerValidator(rt container.Runtime, image string) (*ContainerValidator, error) {
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("validator image unavailable (pull %s first): %w", image, err)
	}
	return &ContainerValidator{rt: rt, image: image}, nil
}

// Validate merges dataFiles into one N-Triples document, stages it with the
// shapes in a scratch directory mounted into the container, and parses the
// report the engine prints.
func (v *ContainerValidator) Validate(ctx context.Context, dataFiles []string, shapesFile string) (*Report, error) {
	work, err := os.MkdirTemp("", "infobox-kg-validate-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(work)

	if err := stage(filepath.Join(work, "data.nt"), dataFiles...); err != nil {
		return nil, err
	}
	if err := stage(filepath.Join(work, "shapes.nt"), shapesFile); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	err = v.rt.Run(ctx, container.RunSpec{
		Image: v.image,
		Args: []string{"validate",
			"-datafile", mountPoint + "/data.nt",
			"-shapesfile", mountPoint + "/shapes.nt"},
		Mounts: []container.Mount{{Source: work, Target: mountPoint, ReadOnly: true}},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseReport(stdout.Bytes())
}

func stage(dst string, sources ...string) error {
	g := triples.NewGraph()
	for _, src := range sources {
		part, err := rdfdoc.Read(src)
		if err != nil {
			return err
		}
		g.Merge(part)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("staging %s: %w", filepath.Base(dst), err)
	}
	if err := rdfdoc.Encode(f, g.Triples(), types.FormatNTriples, rdfdoc.Options{}); err != nil {
		f.Close()
		return fmt.Errorf("staging %s: %w", filepath.Base(dst), err)
	}
	return f.Close()
}

// ParseReport reads a Turtle validation report.
func ParseReport(out []byte) (*Report, error) {
	dec := rdf.NewTripleDecoder(bytes.NewReader(out), rdf.Turtle)
	ts, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("parsing validation report: %w", err)
	}

	bySubject := make(map[string]map[string]string)
	var conforms *bool
	var results []string
	for _, t := range ts {
		subj := t.Subj.String()
		pred := t.Pred.String()
		obj := t.Obj.String()
		switch pred {
		case vocab.SHConforms:
			c := obj == "true"
			conforms = &c
		case vocab.SHResult:
			results = append(results, obj)
		}
		if bySubject[subj] == nil {
			bySubject[subj] = make(map[string]string)
		}
		bySubject[subj][pred] = obj
	}
	if conforms == nil {
		return nil, fmt.Errorf("validation report has no sh:conforms")
	}

	r := &Report{Conforms: *conforms, Output: string(out)}
	for _, id := range results {
		props := bySubject[id]
		r.Results = append(r.Results, Result{
			Focus:    props[vocab.SHFocusNode],
			Path:     props[vocab.SHResultPath],
			Severity: props[vocab.SHResultSeverity],
			Message:  props[vocab.SHResultMessage],
		})
	}
	sort.Slice(r.Results, func(i, j int) bool {
		a, b := r.Results[i], r.Results[j]
		if a.Focus != b.Focus {
			return a.Focus < b.Focus
		}
		return a.Path < b.Path
	})
	return r, nil
}

func localName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 {
		return iri[i+1:]
	}
	return iri
}
