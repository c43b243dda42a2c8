package store

import (
	"context"
	"fmt"

	"github.com/codehz/hz-game-bot/internal/model"
)

const PageSize = 100

const (
	isBlockedSQL = `SELECT EXISTS (SELECT 1 FROM blocklist WHERE user_id = ?)`

	blockSQL = `
INSERT INTO blocklist (user_id, "desc") VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET "desc" = excluded."desc"`

	unblockSQL = `DELETE FROM blocklist WHERE user_id = ?`

	listBlocklistSQL = `SELECT user_id, "desc" FROM blocklist ORDER BY user_id LIMIT ? OFFSET ?`
)

func (s *Store) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var blocked bool
	if err := s.stmts.isBlocked.QueryRowContext(ctx, userID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("check blocklist: %w", err)
	}
	return blocked, nil
}

// Block adds the user to the blocklist, or replaces the description when already present.
func (s *Store) Block(ctx context.Context, userID int64, desc string) error {
	if _, err := s.stmts.block.ExecContext(ctx, userID, desc); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

// Unblock removes the user and reports whether a row existed.
func (s *Store) Unblock(ctx context.Context, userID int64) (bool, error) {
	res, err := s.stmts.unblock.ExecContext(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("unblock user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unblock user: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListBlocklist(ctx context.Context, page int) ([]model.BlockEntry, error) {
	if page < 0 {
		page = 0
	}
	rows, err := s.stmts.listBlocklist.QueryContext(ctx, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("query blocklist: %w", err)
	}
	defer rows.Close()

	entries := []model.BlockEntry{}
	for rows.Next() {
		var e model.BlockEntry
		if err := rows.Scan(&e.UserID, &e.Desc); err != nil {
			return nil, fmt.Errorf("scan blocklist: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocklist: %w", err)
	}
	return entries, nil
}
