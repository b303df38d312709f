// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vocab

import (
	_ "embed"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

//go:embed default_mapping.yaml
var defaultMapping []byte

// FieldRule maps one field to a property. Property and Datatype accept CURIEs.
type FieldRule struct {
	Property string `yaml:"property"`
	Kind     string `yaml:"kind,omitempty"`
	Item     string `yaml:"item,omitempty"`
	Datatype string `yaml:"datatype,omitempty"`
}

// TemplateRule describes one template: its entity type, explicit field
// rules and an optional namespace for its unmapped fields.
type TemplateRule struct {
	Type             string               `yaml:"type,omitempty"`
	DefaultNamespace string               `yaml:"default_namespace,omitempty"`
	Fields           map[string]FieldRule `yaml:"fields,omitempty"`
}

// PatternRule assigns Type to templates whose key contains the words of
// Contains ("video game" or "video_game") as whole words.
type PatternRule struct {
	Contains string `yaml:"contains"`
	Type     string `yaml:"type"`
}

// Config is the YAML mapping table. It is plain data; NewMapper compiles it
// into an immutable Mapper.
type Config struct {
	// Namespace is the project vocabulary namespace bound to the "tg" prefix
	// and used for fallback properties.
	Namespace       string                  `yaml:"namespace,omitempty"`
	DefaultType     string                  `yaml:"default_type"`
	Prefixes        map[string]string       `yaml:"prefixes,omitempty"`
	Templates       map[string]TemplateRule `yaml:"templates,omitempty"`
	Patterns        []PatternRule           `yaml:"patterns,omitempty"`
	IgnoreTemplates []string                `yaml:"ignore_templates,omitempty"`
}

// DefaultConfig returns the embedded mapping table.
func DefaultConfig() (Config, error) {
	return ParseConfig(defaultMapping)
}

// LoadConfig reads a mapping table from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading mapping %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("mapping %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a mapping table.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing mapping yaml: %w", err)
	}
	return cfg, nil
}
