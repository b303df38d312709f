// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the infobox-kg CLI.
//
// The pipeline runs as subcommands: titles enumerates pages, fetch warms the
// page cache, build generates the page graphs, links and shapes add the
// identity and shape graphs, load pushes documents to a triple store, query
// reads from it and validate checks the data against the shapes.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/secrets"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is the diagnostics logger configured from --log-level.
var logger = slog.Default()

// rootCmd is the base command for the infobox-kg CLI.
var rootCmd = &cobra.Command{
	Use:   "infobox-kg",
	Short: "Build a knowledge graph from wiki infoboxes",
	Long: `infobox-kg turns the infoboxes, links and language links of a MediaWiki
site into RDF named graphs with a fixed IRI scheme, derives SHACL shapes from
the data and links entities to Wikipedia, DBpedia, YAGO and a second wiki.

Fetched pages are kept in a local cache, so a build can be repeated offline
and produces the same documents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		l, err := newLogger(level)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./infobox-kg.yaml or ~/.config/infobox-kg/infobox-kg.yaml)")
	pf.String("log-level", "info", "diagnostics level: debug, info, warn, error")
	pf.String("cache", "", "page cache database (default cache/pages.db)")
	pf.String("api-url", "", "MediaWiki api.php endpoint")
	pf.String("base-iri", "", "base IRI for minted identifiers (default http://localhost:8000)")
	pf.StringP("out", "o", "", "output directory for graph documents (default kg)")
	pf.Int("workers", 0, "concurrent pages (default 4)")

	for key, flag := range map[string]string{
		"cache.path":       "cache",
		"source.api_url":   "api-url",
		"build.base_iri":   "base-iri",
		"build.output_dir": "out",
		"build.workers":    "workers",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
	setDefaults(types.DefaultPipelineConfig())
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("infobox-kg")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "infobox-kg"))
		}
	}

	viper.SetEnvPrefix("INFOBOX_KG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so that environment
// variables can override keys absent from the config file.
func setDefaults(d types.PipelineConfig) {
	defaults := map[string]any{
		"source.timeout":            d.Source.Timeout,
		"source.user_agent":         d.Source.UserAgent,
		"source.max_retries":        d.Source.MaxRetries,
		"source.api_url":            d.Source.APIURL,
		"source.request_interval":   d.Source.RequestInterval,
		"source.burst":              d.Source.Burst,
		"cache.path":                d.Cache.Path,
		"build.base_iri":            d.Build.BaseIRI,
		"build.language":            d.Build.Language,
		"build.workers":             d.Build.Workers,
		"build.mapping_file":        d.Build.MappingFile,
		"build.output_dir":          d.Build.OutputDir,
		"build.format":              string(d.Build.Format),
		"build.keep_raw_values":     d.Build.KeepRawValues,
		"build.metrics_file":        d.Build.MetricsFile,
		"shapes.presence_threshold": d.Shapes.PresenceThreshold,
		"shapes.infer_max_count":    d.Shapes.InferMaxCount,
		"shapes.min_instances":      d.Shapes.MinInstances,
		"links.side_dataset":        d.Links.SideDataset,
		"links.sparql_endpoint":     d.Links.SPARQLEndpoint,
		"links.yago_endpoint":       d.Links.YAGOEndpoint,
		"links.crosswiki_api_url":   d.Links.CrossWikiAPIURL,
		"links.crosswiki_page_base": d.Links.CrossWikiPageBase,
		"links.query_timeout":       d.Links.QueryTimeout,
		"graph_store.timeout":       d.GraphStore.Timeout,
		"graph_store.user_agent":    d.GraphStore.UserAgent,
		"graph_store.max_retries":   d.GraphStore.MaxRetries,
		"graph_store.data_url":      d.GraphStore.DataURL,
		"graph_store.query_url":     d.GraphStore.QueryURL,
		"validation.image":          d.Validation.Image,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig resolves the pipeline configuration from defaults, the config
// file, the environment and bound flags, and validates it.
func loadConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
