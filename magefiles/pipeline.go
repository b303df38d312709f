//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups the end-to-end knowledge-graph targets. Each one builds
// the binary first and honours INFOBOX_KG_* environment overrides.
type Pipeline mg.Namespace

// Titles enumerates infobox pages. TEMPLATE names the infobox template
// (default Infobox character).
func (Pipeline) Titles() error {
	mg.Deps(Build)
	tpl := os.Getenv("TEMPLATE")
	if tpl == "" {
		tpl = "Infobox character"
	}
	return sh.RunV(binPath(), "titles", "--kind", "embeddedin", "--name", tpl, "--file", "titles.yaml")
}

// Fetch warms the page cache from titles.yaml.
func (Pipeline) Fetch() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "fetch", "--titles", "titles.yaml")
}

// KG builds documents offline from the cache, then derives shapes and links.
func (Pipeline) KG() error {
	mg.Deps(Build)
	steps := [][]string{
		{"build", "--titles", "titles.yaml", "--offline", "--metrics-file", "metrics/build.prom"},
		{"shapes"},
		{"links"},
	}
	for _, args := range steps {
		if err := sh.RunV(binPath(), args...); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs the SHACL engine over the built documents.
func (Pipeline) Validate() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "validate")
}

// Load replaces the named graphs in the configured triple store.
func (Pipeline) Load() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "load", "--mode", "replace")
}
