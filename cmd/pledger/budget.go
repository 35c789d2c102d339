package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/client"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly category budgets",
	Long: `Manage monthly spending limits per category. Budgets live in the
remote store; 'budget check' compares them against this month's local
expense totals and fires at most one alert per category per day.`,
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category-id> <monthly-limit>",
	Short: "Set a monthly spending limit for a category",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		limit, err := decimal.NewFromString(args[1])
		if err != nil {
			fatal("invalid limit %q", args[1])
		}

		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		if err := a.client.SetBudget(ctx, args[0], limit); err != nil {
			if errors.Is(err, client.ErrOffline) {
				fatal("setting a budget requires the remote store to be reachable")
			}
			fatal("%v", err)
		}
		fmt.Printf("Budget set: $%s/month for category %s\n", limit.StringFixed(2), args[0])
	},
}

var budgetCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check this month's spending against budgets",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		fired, err := a.client.CheckBudgets(ctx)
		if err != nil {
			if errors.Is(err, client.ErrOffline) {
				fatal("budget check requires the remote store to be reachable")
			}
			fatal("%v", err)
		}
		if fired == 0 {
			fmt.Println("All budgets within limits (or already alerted today)")
			return
		}
		fmt.Printf("Scheduled %d budget alerts\n", fired)
	},
}

func init() {
	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetCheckCmd)
	rootCmd.AddCommand(budgetCmd)
}
