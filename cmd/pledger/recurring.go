package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/client"
	"github.com/pocketledger/pocketledger/internal/schema"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Manage recurring transactions",
	Long: `Manage recurring transaction schedules (rent, subscriptions,
salary). Schedules live in the remote store; due occurrences
materialize into ordinary pending transactions on each sync.`,
}

var (
	recCategory  string
	recType      string
	recFrequency string
	recStart     string
)

var recurringAddCmd = &cobra.Command{
	Use:   "add <amount> <description>",
	Short: "Create a recurring schedule",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			fatal("invalid amount %q", args[0])
		}
		txType := schema.TxType(recType)
		if !txType.Valid() {
			fatal("type must be income or expense (got %q)", recType)
		}
		freq := schema.Frequency(recFrequency)
		if !freq.Valid() {
			fatal("frequency must be daily, weekly, monthly or yearly (got %q)", recFrequency)
		}
		start := schema.Day(time.Now())
		if recStart != "" {
			if start, err = time.Parse(schema.DateOnly, recStart); err != nil {
				fatal("invalid start date %q (want YYYY-MM-DD)", recStart)
			}
		}

		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		s, err := a.client.AddRecurring(ctx, client.ScheduleInput{
			CategoryID:  recCategory,
			Amount:      amount,
			Description: args[1],
			Type:        txType,
			Frequency:   freq,
			StartDate:   start,
		})
		if err != nil {
			if errors.Is(err, client.ErrOffline) {
				fatal("creating a schedule requires the remote store to be reachable")
			}
			fatal("%v", err)
		}
		fmt.Printf("Created %s schedule %q starting %s (%s)\n",
			s.Frequency, s.Description, s.StartDate.Format(schema.DateOnly), s.ID)
	},
}

var recurringRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Materialize due schedules now",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		if !a.monitor.Connected() {
			fatal("materialization requires the remote store to be reachable")
		}
		if err := a.client.TriggerSync(ctx); err != nil {
			fatal("%v", err)
		}
		fmt.Println("Due schedules materialized")
	},
}

var recurringUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Fire reminders for bills due tomorrow",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		fired, err := a.client.CheckUpcomingBills(ctx)
		if err != nil {
			if errors.Is(err, client.ErrOffline) {
				fatal("checking schedules requires the remote store to be reachable")
			}
			fatal("%v", err)
		}
		if fired == 0 {
			fmt.Println("No bills due tomorrow (or already reminded today)")
			return
		}
		fmt.Printf("Scheduled %d bill reminders\n", fired)
	},
}

func init() {
	recurringAddCmd.Flags().StringVarP(&recCategory, "category", "c", "", "category id")
	recurringAddCmd.Flags().StringVarP(&recType, "type", "t", "expense", "income or expense")
	recurringAddCmd.Flags().StringVarP(&recFrequency, "frequency", "f", "monthly", "daily, weekly, monthly or yearly")
	recurringAddCmd.Flags().StringVar(&recStart, "start", "", "first occurrence (YYYY-MM-DD, default today)")

	recurringCmd.AddCommand(recurringAddCmd)
	recurringCmd.AddCommand(recurringRunCmd)
	recurringCmd.AddCommand(recurringUpcomingCmd)
	rootCmd.AddCommand(recurringCmd)
}
