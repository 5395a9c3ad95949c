package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campushive/hivelab"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hivelab",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hivelab version %s\n", hivelab.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
