package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon (foreground)",
	Long: `Run the sync daemon in the foreground.

The daemon watches remote reachability and keeps the local cache
reconciled:
  1. Runs a full sync cycle whenever connectivity is restored
  2. Re-syncs on a coarse interval while connected
  3. Materializes due recurring schedules and checks budgets each cycle

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(cmd.Context())
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		if a.cfg.Remote.DSN == "" {
			fatal("daemon requires remote.dsn to be configured")
		}

		cfg := daemon.DefaultConfig()
		cfg.ResyncInterval = a.cfg.Sync.ResyncEvery
		cfg.Logger = a.logger("daemon")

		d, err := daemon.New(a.client, a.monitor, cfg)
		if err != nil {
			fatal("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting sync daemon (resync every %v)\n", cfg.ResyncInterval)
		fmt.Printf("   Database: %s\n", a.cfg.Database.Path)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := d.Start(ctx); err != nil {
			fatal("daemon stopped with error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
