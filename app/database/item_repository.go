package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var _ ItemRepository = (*SQLiteItemRepository)(nil)

// SQLite extended result code for a UNIQUE constraint violation.
const sqliteConstraintUnique = 2067

type SQLiteItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *SQLiteItemRepository {
	return &SQLiteItemRepository{db: db}
}

func (r *SQLiteItemRepository) Contains(ctx context.Context, guid string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM torrents WHERE guid = ?)`, guid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check guid: %w", err)
	}
	return exists == 1, nil
}

// Record inserts a new item. The write is committed before Record returns.
func (r *SQLiteItemRepository) Record(ctx context.Context, guid, title, hashString string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO torrents (guid, title, hashString) VALUES (?, ?, ?)`,
		guid, title, hashString)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to record %q: %w", guid, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to record item: %w", err)
	}
	return nil
}

// List returns recorded items, most recently recorded first. A limit of zero
// or less returns everything.
func (r *SQLiteItemRepository) List(ctx context.Context, limit int) ([]SeenItem, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT guid, COALESCE(title, ''), COALESCE(hashString, '')
		FROM torrents
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []SeenItem
	for rows.Next() {
		var item SeenItem
		if err := rows.Scan(&item.GUID, &item.Title, &item.HashString); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

func (r *SQLiteItemRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteConstraintUnique {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
