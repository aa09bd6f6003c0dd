package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markvault/ksync/internal/daemon"
	"github.com/markvault/ksync/internal/dashboard"
	"github.com/markvault/ksync/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous sync with a vault watcher",
	Long: `Run ksync continuously: periodic reconciliation passes, immediate
propagation of local note edits observed through a file watcher, and an
optional WebSocket dashboard.

The dashboard (enabled with --port or dashboard_port in the config)
broadcasts sync lifecycle events on /ws, accepts POST /sync to trigger a
pass, and serves the last pass outcome on /status.

Example usage:
  ksync daemon
  ksync daemon --port 8080`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		var srv *dashboard.Server
		onEvent := func(ev sync.Event) {
			if srv != nil {
				srv.Broadcast(ev)
			}
		}

		cfg, log, store, syncer, err := setup(onEvent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()

		d, err := daemon.New(syncer, store, &daemon.Config{
			Interval:     cfg.SyncInterval,
			EditDebounce: cfg.EditDebounce,
			Logger:       log,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if port == 0 {
			port = cfg.DashboardPort
		}
		if port > 0 {
			srv = dashboard.NewServer(&dashboard.Config{
				Port:      port,
				StatePath: statePath(cfg, store),
				Trigger:   d.TriggerSync,
				Logger:    log,
			})
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", port, port)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Watching %s, syncing every %s. Press Ctrl+C to stop.\n",
			store.Abs(syncer.Policy().SyncFolder), cfg.SyncInterval)

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("\nShutting down...")
		if srv != nil {
			if err := srv.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			}
		}
	},
}

func init() {
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (0 disables the dashboard)")
	rootCmd.AddCommand(daemonCmd)
}
