package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of infobox-kg",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("infobox-kg %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
