package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	UserID     string
	Type       schema.TxType
	CategoryID string
	Status     schema.SyncStatus
	From       time.Time // inclusive calendar date
	To         time.Time // inclusive calendar date
	Limit      int
}

// UpsertTransaction inserts or updates a transaction by id.
func (db *DB) UpsertTransaction(ctx context.Context, tx *schema.Transaction) error {
	return upsertTransaction(ctx, db.conn, tx)
}

// UpsertTransactionIn runs the upsert inside an existing SQL
// transaction, letting an optimistic write and its outbox enqueue
// commit atomically.
func (db *DB) UpsertTransactionIn(ctx context.Context, sqlTx *sql.Tx, tx *schema.Transaction) error {
	return upsertTransaction(ctx, sqlTx, tx)
}

// execer lets the same statement run on the pool or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTransaction(ctx context.Context, e execer, tx *schema.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	query := `
	INSERT INTO transactions (
		id, user_id, category_id, amount, description,
		date, type, receipt_url, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		category_id = excluded.category_id,
		amount = excluded.amount,
		description = excluded.description,
		date = excluded.date,
		type = excluded.type,
		receipt_url = excluded.receipt_url,
		sync_status = excluded.sync_status
	`

	_, err := e.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		nullString(tx.CategoryID),
		tx.Amount.String(),
		tx.Description,
		tx.Date.Format(schema.DateOnly),
		string(tx.Type),
		nullString(tx.ReceiptURL),
		string(tx.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetTransaction returns the transaction with the given id, or
// ErrNotFound.
func (db *DB) GetTransaction(ctx context.Context, id string) (*schema.Transaction, error) {
	query := `
	SELECT id, user_id, category_id, amount, description, date, type, receipt_url, sync_status
	FROM transactions WHERE id = ?
	`
	tx, err := scanTransaction(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListTransactions returns transactions matching the filter, newest
// date first.
func (db *DB) ListTransactions(ctx context.Context, f TransactionFilter) ([]*schema.Transaction, error) {
	query := `
	SELECT id, user_id, category_id, amount, description, date, type, receipt_url, sync_status
	FROM transactions WHERE 1=1
	`
	var args []any
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, string(f.Type))
	}
	if f.CategoryID != "" {
		query += " AND category_id = ?"
		args = append(args, f.CategoryID)
	}
	if f.Status != "" {
		query += " AND sync_status = ?"
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, f.From.Format(schema.DateOnly))
	}
	if !f.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, f.To.Format(schema.DateOnly))
	}
	query += " ORDER BY date DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*schema.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// SetTransactionStatus flips the sync_status of a single row. Used by
// the sync engine when an outbox entry drains.
func (db *DB) SetTransactionStatus(ctx context.Context, id string, status schema.SyncStatus) error {
	return setTransactionStatus(ctx, db.conn, id, status)
}

// SetTransactionStatusIn runs the status flip inside an existing SQL
// transaction, so a soft-delete and its outbox entry commit together.
func (db *DB) SetTransactionStatusIn(ctx context.Context, sqlTx *sql.Tx, id string, status schema.SyncStatus) error {
	return setTransactionStatus(ctx, sqlTx, id, status)
}

func setTransactionStatus(ctx context.Context, e execer, id string, status schema.SyncStatus) error {
	res, err := e.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction row. Returns nil if the row
// doesn't exist (idempotent).
func (db *DB) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// CountTransactionsByStatus reports how many rows carry the given
// sync_status. The CLI surfaces this so background push failures are
// not indefinitely silent.
func (db *DB) CountTransactionsByStatus(ctx context.Context, status schema.SyncStatus) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE sync_status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// MonthExpenseByCategory sums expense amounts per category for the
// calendar month containing day. Soft-deleted rows are excluded.
func (db *DB) MonthExpenseByCategory(ctx context.Context, userID string, day time.Time) (map[string]decimal.Decimal, error) {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	last := first.AddDate(0, 1, -1)

	query := `
	SELECT category_id, amount FROM transactions
	WHERE user_id = ? AND type = ? AND sync_status != ?
	  AND date >= ? AND date <= ? AND category_id IS NOT NULL
	`
	rows, err := db.conn.QueryContext(ctx, query,
		userID, string(schema.TypeExpense), string(schema.StatusDeleted),
		first.Format(schema.DateOnly), last.Format(schema.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to sum expenses: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var categoryID, amount string
		if err := rows.Scan(&categoryID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense row: %w", err)
		}
		d, err := scanDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("bad amount for category %s: %w", categoryID, err)
		}
		totals[categoryID] = totals[categoryID].Add(d)
	}
	return totals, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r rowScanner) (*schema.Transaction, error) {
	var (
		tx         schema.Transaction
		categoryID sql.NullString
		receiptURL sql.NullString
		amount     string
		date       string
		txType     string
		status     string
	)
	if err := r.Scan(&tx.ID, &tx.UserID, &categoryID, &amount, &tx.Description,
		&date, &txType, &receiptURL, &status); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = scanDecimal(amount); err != nil {
		return nil, fmt.Errorf("bad amount: %w", err)
	}
	if tx.Date, err = time.Parse(schema.DateOnly, date); err != nil {
		return nil, fmt.Errorf("bad date: %w", err)
	}
	tx.CategoryID = categoryID.String
	tx.ReceiptURL = receiptURL.String
	tx.Type = schema.TxType(txType)
	tx.SyncStatus = schema.SyncStatus(status)
	return &tx, nil
}
