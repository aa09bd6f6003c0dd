package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/markvault/ksync/internal/config"
	"github.com/markvault/ksync/internal/sync"
	"github.com/markvault/ksync/internal/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outcome of the last sync pass",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		store, err := vault.Open(cfg.VaultDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		path := statePath(cfg, store)
		if path == "" {
			fmt.Println("State tracking disabled (state_path is empty)")
			return
		}

		st, err := sync.LoadState(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if st.LastSync.IsZero() {
			fmt.Println("No sync has completed yet")
			return
		}
		fmt.Printf("Last sync: %s\n", st.LastSync.Format("2006-01-02 15:04:05"))
		if st.LastMessage != "" {
			fmt.Printf("Result:    %s\n", st.LastMessage)
		}
		if st.LastError != "" {
			fmt.Printf("Error:     %s\n", st.LastError)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
