package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	syncengine "github.com/pocketledger/pocketledger/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync cycle now",
	Long: `Run one full reconciliation cycle:

  1. Pull categories, recent transactions and goals from the remote store
  2. Push every queued local mutation
  3. Materialize due recurring schedules
  4. Push again to drain what materialization queued`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		start := time.Now()
		if err := a.client.TriggerSync(ctx); err != nil {
			if errors.Is(err, syncengine.ErrOffline) {
				fatal("remote store is not reachable")
			}
			fatal("sync failed: %v", err)
		}

		pending, failed, err := a.client.PendingCount(ctx)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Pending: %d\n", pending)
		if failed > 0 {
			fmt.Printf("   Failed:  %d (see 'pledger status')\n", failed)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache and sync queue status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		snap, err := a.client.Load(ctx)
		if err != nil {
			fatal("%v", err)
		}
		pending, failedCount, err := a.client.PendingCount(ctx)
		if err != nil {
			fatal("%v", err)
		}

		state := "offline"
		if a.monitor.Connected() {
			state = "connected"
		}
		fmt.Printf("\nPocketLedger Status\n\n")
		fmt.Printf("Database: %s\n", a.cfg.Database.Path)
		fmt.Printf("Remote: %s\n", state)
		fmt.Printf("Categories: %d\n", len(snap.Categories))
		fmt.Printf("Transactions: %d\n", len(snap.Transactions))
		fmt.Printf("Goals: %d\n", len(snap.Goals))
		fmt.Printf("Pending mutations: %d\n", pending)
		fmt.Printf("Failed mutations: %d\n", failedCount)

		if failedCount == 0 {
			fmt.Println()
			return
		}

		entries, err := a.queue.Failed(ctx)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("\nQuarantined entries:\n")
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tTABLE\tACTION\tATTEMPTS\tLAST ERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%d\t%s\n", e.ID, e.Table, e.Action, e.Attempts, e.LastError)
		}
		w.Flush()
		fmt.Printf("\nRe-arm one with 'pledger retry <id>'\n\n")
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <entry-id>",
	Short: "Re-arm a quarantined sync queue entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			fatal("invalid entry id %q", args[0])
		}
		if err := a.queue.Retry(ctx, id); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Entry %d re-armed; it will retry on the next push\n", id)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
}
