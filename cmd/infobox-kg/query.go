// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/infobox-kg/internal/graphstore"
	"github.com/pdiddy/infobox-kg/internal/secrets"
)

var queryCmd = &cobra.Command{
	Use:   "query [sparql]",
	Short: "Run a read-only SPARQL query against the triple store",
	Long: `Query sends a SELECT query to the configured SPARQL endpoint and prints the
bindings as tab-separated rows under a header of variable names. The query is
taken from the argument or from --file. Update operations are refused.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.String("file", "", "read the query from a file")
	f.String("query-url", "", "SPARQL query endpoint")

	_ = viper.BindPFlag("graph_store.query_url", f.Lookup("query-url"))

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q, err := queryText(cmd, args)
	if err != nil {
		return err
	}

	client := graphstore.NewClient(cfg.GraphStore, secrets.GraphStore(loadedSecrets))
	rows, err := client.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, strings.Join(rows.Vars, "\t"))
	for _, sol := range rows.Solutions {
		cells := make([]string, len(rows.Vars))
		for i, v := range rows.Vars {
			cells[i] = sol[v]
		}
		fmt.Fprintln(os.Stdout, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(os.Stderr, "%d row(s)\n", len(rows.Solutions))
	return nil
}

func queryText(cmd *cobra.Command, args []string) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	switch {
	case path != "" && len(args) > 0:
		return "", fmt.Errorf("give the query as an argument or with --file, not both")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading query: %w", err)
		}
		return string(data), nil
	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		return args[0], nil
	}
	return "", fmt.Errorf("no query given")
}
