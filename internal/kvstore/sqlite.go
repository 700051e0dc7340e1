package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/stalink/internal/infrastructure/database"
)

// SQLite is a Backend on the kv_store table.
type SQLite struct {
	db *database.DB
}

// NewSQLite returns a backend on db. The kv_store migration must have been applied.
func NewSQLite(db *database.DB) *SQLite {
	return &SQLite{db: db}
}

// Load reads every record.
func (b *SQLite) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT key, value FROM kv_store")
	if err != nil {
		return nil, fmt.Errorf("querying kv_store: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning kv_store row: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Save upserts one record.
func (b *SQLite) Save(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Reset erases the table and writes values in one transaction.
func (b *SQLite) Reset(ctx context.Context, values map[string][]byte) error {
	return b.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv_store"); err != nil {
			return fmt.Errorf("erasing kv_store: %w", err)
		}
		ts := now()
		for key, value := range values {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)", key, value, ts); err != nil {
				return fmt.Errorf("writing default %s: %w", key, err)
			}
		}
		return nil
	})
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
