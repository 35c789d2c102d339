package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/client"
	"github.com/pocketledger/pocketledger/internal/schema"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage savings goals",
}

var (
	goalDeadline string
	goalColor    string
)

var goalAddCmd = &cobra.Command{
	Use:   "add <name> <target-amount>",
	Short: "Create a savings goal",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		target, err := decimal.NewFromString(args[1])
		if err != nil {
			fatal("invalid target amount %q", args[1])
		}
		var deadline *time.Time
		if goalDeadline != "" {
			d, err := time.Parse(schema.DateOnly, goalDeadline)
			if err != nil {
				fatal("invalid deadline %q (want YYYY-MM-DD)", goalDeadline)
			}
			deadline = &d
		}

		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		g, err := a.client.AddGoal(ctx, client.GoalInput{
			Name:         args[0],
			TargetAmount: target,
			Deadline:     deadline,
			Color:        goalColor,
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Created goal %q targeting $%s (%s)\n", g.Name, g.TargetAmount.StringFixed(2), g.ID)
	},
}

var goalContributeCmd = &cobra.Command{
	Use:   "contribute <goal-id> <amount>",
	Short: "Add money toward a goal",
	Long: `Add money toward a goal. Contributions are additive deltas, so two
devices contributing offline both count once the queues drain.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			fatal("invalid amount %q", args[1])
		}

		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		if err := a.client.ContributeToGoal(ctx, args[0], amount); err != nil {
			fatal("%v", err)
		}
		g, err := a.local.GetGoal(ctx, args[0])
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Contributed $%s to %q: now $%s of $%s\n",
			amount.StringFixed(2), g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List savings goals",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		goals, err := a.local.ListGoals(ctx, a.cfg.User.ID)
		if err != nil {
			fatal("%v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROGRESS\tDEADLINE\tSTATUS\tID")
		for _, g := range goals {
			if g.SyncStatus == schema.StatusDeleted {
				continue
			}
			deadline := "-"
			if g.Deadline != nil {
				deadline = g.Deadline.Format(schema.DateOnly)
			}
			fmt.Fprintf(w, "%s\t$%s / $%s\t%s\t%s\t%s\n",
				g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2),
				deadline, g.SyncStatus, g.ID)
		}
		w.Flush()
	},
}

var goalDeleteCmd = &cobra.Command{
	Use:   "delete <goal-id>",
	Short: "Delete a savings goal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		if err := a.client.DeleteGoal(ctx, args[0]); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Deleted goal %s\n", args[0])
	},
}

func init() {
	goalAddCmd.Flags().StringVar(&goalDeadline, "deadline", "", "deadline (YYYY-MM-DD)")
	goalAddCmd.Flags().StringVar(&goalColor, "color", "", "display color")

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalContributeCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalDeleteCmd)
	rootCmd.AddCommand(goalCmd)
}
