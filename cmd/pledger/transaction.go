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

var (
	addCategory string
	addDate     string
	addType     string
	addReceipt  string
)

var addCmd = &cobra.Command{
	Use:   "add <amount> <description>",
	Short: "Record a transaction",
	Long: `Record a transaction in the local store. Works fully offline: the
row is tagged pending and queued for the remote store, and syncs on the
next cycle.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			fatal("invalid amount %q", args[0])
		}
		txType := schema.TxType(addType)
		if !txType.Valid() {
			fatal("type must be income or expense (got %q)", addType)
		}
		var date time.Time
		if addDate != "" {
			if date, err = time.Parse(schema.DateOnly, addDate); err != nil {
				fatal("invalid date %q (want YYYY-MM-DD)", addDate)
			}
		}

		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		tx, err := a.client.AddTransaction(ctx, client.TransactionInput{
			CategoryID:  addCategory,
			Amount:      amount,
			Description: args[1],
			Date:        date,
			Type:        txType,
			ReceiptURL:  addReceipt,
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Recorded %s $%s %q (%s)\n", tx.Type, tx.Amount.StringFixed(2), tx.Description, tx.SyncStatus)
	},
}

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions from the local cache",
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

		names := make(map[string]string, len(snap.Categories))
		for _, c := range snap.Categories {
			names[c.ID] = c.Name
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION\tSTATUS\tID")
		for i, tx := range snap.Transactions {
			if listLimit > 0 && i >= listLimit {
				break
			}
			fmt.Fprintf(w, "%s\t%s\t$%s\t%s\t%s\t%s\t%s\n",
				tx.Date.Format(schema.DateOnly), tx.Type, tx.Amount.StringFixed(2),
				names[tx.CategoryID], tx.Description, tx.SyncStatus, tx.ID)
		}
		w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <transaction-id>",
	Short: "Delete a transaction",
	Long: `Soft-delete a transaction locally and queue the remote delete. The
row vanishes from listings immediately and is removed for good once the
remote store confirms.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer a.Close()

		if err := a.client.DeleteTransaction(ctx, args[0]); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Deleted transaction %s\n", args[0])
	},
}

func init() {
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "category id")
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "date (YYYY-MM-DD, default today)")
	addCmd.Flags().StringVarP(&addType, "type", "t", "expense", "income or expense")
	addCmd.Flags().StringVar(&addReceipt, "receipt", "", "receipt URL")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "max rows to show (0 = all)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}
