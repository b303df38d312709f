// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests. Wiki operators
	// ask for a descriptive identity with a contact address.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent" validate:"required"`

	// MaxRetries bounds retries of transient failures (429, 5xx, timeouts).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
}

// SourceConfig holds settings for the page-source API.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// APIURL is the MediaWiki api.php endpoint.
	APIURL string `json:"api_url" yaml:"api_url" mapstructure:"api_url" validate:"required,url"`

	// RequestInterval is the minimum spacing between requests, shared by all
	// workers (default 500ms).
	RequestInterval time.Duration `json:"request_interval" yaml:"request_interval" mapstructure:"request_interval" validate:"gte=0"`

	// Burst is the number of requests allowed back to back before the interval applies.
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=1"`
}

// CacheConfig holds settings for the page cache.
type CacheConfig struct {
	// Path is the SQLite database file holding fetched page text.
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required"`
}

// DocumentFormat selects the serialization of written triple documents.
type DocumentFormat string

const (
	FormatNTriples DocumentFormat = "ntriples"
	FormatTurtle   DocumentFormat = "turtle"
)

// Ext returns the file extension for the format.
func (f DocumentFormat) Ext() string {
	if f == FormatTurtle {
		return ".ttl"
	}
	return ".nt"
}

// MediaType returns the HTTP content type for the format.
func (f DocumentFormat) MediaType() string {
	if f == FormatTurtle {
		return "text/turtle"
	}
	return "application/n-triples"
}

// BuildConfig holds settings for the extraction build.
type BuildConfig struct {
	// BaseIRI is the fixed base under which page, resource, vocabulary and
	// graph IRIs are minted (e.g. "http://localhost:8000").
	BaseIRI string `json:"base_iri" yaml:"base_iri" mapstructure:"base_iri" validate:"required,url"`

	// Language tags title labels and lang-literal values. Empty means untagged.
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	// Workers bounds concurrent fetch+parse+generate units.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=64"`

	// MappingFile replaces the embedded vocabulary mapping table when set.
	MappingFile string `json:"mapping_file,omitempty" yaml:"mapping_file,omitempty" mapstructure:"mapping_file"`

	// OutputDir receives one triple document per named graph plus a manifest.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir" validate:"required"`

	// Format is the document serialization: ntriples or turtle.
	Format DocumentFormat `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=ntriples turtle"`

	// KeepRawValues also emits the raw wikitext of link-valued fields as a
	// "<field>_raw" literal.
	KeepRawValues bool `json:"keep_raw_values" yaml:"keep_raw_values" mapstructure:"keep_raw_values"`

	// MetricsFile, when set, receives build counters in Prometheus text format.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// ShapeConfig holds settings for shape derivation.
type ShapeConfig struct {
	// PresenceThreshold is the fraction of instances that must carry a
	// property before it becomes a minCount constraint (default 0.5).
	PresenceThreshold float64 `json:"presence_threshold" yaml:"presence_threshold" mapstructure:"presence_threshold" validate:"gte=0,lte=1"`

	// InferMaxCount adds sh:maxCount 1 when every carrying instance had one value.
	InferMaxCount bool `json:"infer_max_count" yaml:"infer_max_count" mapstructure:"infer_max_count"`

	// MinInstances is the sample size below which maxCount is never inferred.
	MinInstances int `json:"min_instances" yaml:"min_instances" mapstructure:"min_instances" validate:"gte=1"`
}

// LinkConfig holds settings for the external link resolver.
type LinkConfig struct {
	// SideDataset is an optional YAML file mapping titles to external-site URLs.
	SideDataset string `json:"side_dataset,omitempty" yaml:"side_dataset,omitempty" mapstructure:"side_dataset"`

	// SPARQLEndpoint is the alignment source (default DBpedia). Empty disables alignment.
	SPARQLEndpoint string `json:"sparql_endpoint" yaml:"sparql_endpoint" mapstructure:"sparql_endpoint" validate:"omitempty,url"`

	// YAGOEndpoint is a second alignment source queried with YAGO's
	// predicates. Empty disables it.
	YAGOEndpoint string `json:"yago_endpoint" yaml:"yago_endpoint" mapstructure:"yago_endpoint" validate:"omitempty,url"`

	// CrossWikiAPIURL is the api.php of a second wiki holding the same
	// titles, used for sameAs links and per-language labels. Empty disables it.
	CrossWikiAPIURL string `json:"crosswiki_api_url" yaml:"crosswiki_api_url" mapstructure:"crosswiki_api_url" validate:"omitempty,url"`

	// CrossWikiPageBase prefixes page titles on the second wiki.
	CrossWikiPageBase string `json:"crosswiki_page_base" yaml:"crosswiki_page_base" mapstructure:"crosswiki_page_base" validate:"omitempty,url"`

	// QueryTimeout bounds each alignment query.
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout" mapstructure:"query_timeout"`
}

// GraphStoreConfig holds settings for the triple-store load boundary.
type GraphStoreConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// DataURL is the Graph Store Protocol endpoint (e.g. http://localhost:3030/kg/data).
	DataURL string `json:"data_url" yaml:"data_url" mapstructure:"data_url" validate:"omitempty,url"`

	// QueryURL is the SPARQL query endpoint (e.g. http://localhost:3030/kg/sparql).
	QueryURL string `json:"query_url" yaml:"query_url" mapstructure:"query_url" validate:"omitempty,url"`
}

// ValidationConfig holds settings for the external SHACL validator.
type ValidationConfig struct {
	// Image is the container image that runs the validator.
	Image string `json:"image" yaml:"image" mapstructure:"image" validate:"required"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Source     SourceConfig     `json:"source" yaml:"source" mapstructure:"source"`
	Cache      CacheConfig      `json:"cache" yaml:"cache" mapstructure:"cache"`
	Build      BuildConfig      `json:"build" yaml:"build" mapstructure:"build"`
	Shapes     ShapeConfig      `json:"shapes" yaml:"shapes" mapstructure:"shapes"`
	Links      LinkConfig       `json:"links" yaml:"links" mapstructure:"links"`
	GraphStore GraphStoreConfig `json:"graph_store" yaml:"graph_store" mapstructure:"graph_store"`
	Validation ValidationConfig `json:"validation" yaml:"validation" mapstructure:"validation"`
}

// DefaultUserAgent identifies the extractor to wiki operators.
const DefaultUserAgent = "infobox-kg/0.1 (knowledge graph extraction; +https://github.com/pdiddy/infobox-kg)"

// DefaultPipelineConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Source: SourceConfig{
			HTTPConfig: HTTPConfig{
				Timeout:    30 * time.Second,
				UserAgent:  DefaultUserAgent,
				MaxRetries: 4,
			},
			APIURL:          "https://tolkiengateway.net/w/api.php",
			RequestInterval: 500 * time.Millisecond,
			Burst:           1,
		},
		Cache: CacheConfig{Path: "cache/pages.db"},
		Build: BuildConfig{
			BaseIRI:   "http://localhost:8000",
			Language:  "en",
			Workers:   4,
			OutputDir: "kg",
			Format:    FormatNTriples,
		},
		Shapes: ShapeConfig{
			PresenceThreshold: 0.5,
			MinInstances:      3,
		},
		Links: LinkConfig{
			SPARQLEndpoint:    "https://dbpedia.org/sparql",
			YAGOEndpoint:      "https://qlever.dev/api/yago-4",
			CrossWikiAPIURL:   "https://lotr.fandom.com/api.php",
			CrossWikiPageBase: "https://lotr.fandom.com/wiki/",
			QueryTimeout:      30 * time.Second,
		},
		GraphStore: GraphStoreConfig{
			HTTPConfig: HTTPConfig{
				Timeout:    60 * time.Second,
				UserAgent:  DefaultUserAgent,
				MaxRetries: 2,
			},
		},
		Validation: ValidationConfig{Image: "ghcr.io/topquadrant/shacl:1.4.3"},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation in one error.
func (c PipelineConfig) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
