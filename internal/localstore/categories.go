package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketledger/pocketledger/internal/schema"
)

// ReplaceCategories atomically clears and repopulates the categories
// table. Categories are pull-only reference data, never edited offline,
// which is the only reason a wholesale replace is safe here; mutable
// tables are refreshed per-row instead.
func (db *DB) ReplaceCategories(ctx context.Context, categories []*schema.Category) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	query := `INSERT INTO categories (id, name, type, color, icon) VALUES (?, ?, ?, ?, ?)`
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, query, c.ID, c.Name, string(c.Type), c.Color, c.Icon); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category replace: %w", err)
	}
	return nil
}

// ListCategories returns all cached categories ordered by name.
func (db *DB) ListCategories(ctx context.Context) ([]*schema.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, type, color, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*schema.Category
	for rows.Next() {
		var c schema.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Type = schema.TxType(typ)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetCategory returns one category by id, or ErrNotFound.
func (db *DB) GetCategory(ctx context.Context, id string) (*schema.Category, error) {
	var c schema.Category
	var typ string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, type, color, icon FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Icon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category %s: %w", id, err)
	}
	c.Type = schema.TxType(typ)
	return &c, nil
}
