package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single reconciliation pass",
	Long: `Run one reconciliation pass: fetch bookmarks from Karakeep, render or
update the corresponding Markdown documents, push local note edits
upstream, and apply the configured deletion and archival handling.

Example usage:
  ksync sync
  ksync sync --config /path/to/ksync.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		_, log, _, syncer, err := setup(nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()

		res, err := syncer.Run(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(res.Message)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
