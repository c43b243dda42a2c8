package store

import (
	"context"
	"fmt"

	"github.com/codehz/hz-game-bot/internal/model"
)

const (
	appendLogSQL = `INSERT INTO log (session_id, time, user_id, score) VALUES (?, ?, ?, ?)`

	logForSessionSQL = `
SELECT id, session_id, time, user_id, score FROM log
WHERE session_id = ?
ORDER BY time DESC, id DESC`
)

// Append inserts one ledger entry. Entries are never updated or deleted.
func (t *Tx) Append(sessionID, timeMillis, userID, score int64) (int64, error) {
	res, err := t.stmt(t.store.stmts.appendLog).ExecContext(t.ctx, sessionID, timeMillis, userID, score)
	if err != nil {
		return 0, fmt.Errorf("append log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append log: last insert id: %w", err)
	}
	return id, nil
}

// RecordScore resolves the session for the placement and appends the entry in one transaction,
// stamping it with the store clock. Either both rows become visible or neither does.
func (s *Store) RecordScore(ctx context.Context, game string, target model.Target, userID, score int64) (model.LedgerEntry, error) {
	return Transaction(ctx, s, func(tx *Tx) (model.LedgerEntry, error) {
		sessionID, _, err := tx.ResolveOrCreate(game, target)
		if err != nil {
			return model.LedgerEntry{}, err
		}
		entry := model.LedgerEntry{
			SessionID: sessionID,
			Time:      s.now().UnixMilli(),
			UserID:    userID,
			Score:     score,
		}
		entry.ID, err = tx.Append(entry.SessionID, entry.Time, entry.UserID, entry.Score)
		if err != nil {
			return model.LedgerEntry{}, err
		}
		return entry, nil
	})
}

// ListLogForSession returns the session's entries, most recent first.
func (s *Store) ListLogForSession(ctx context.Context, sessionID int64) ([]model.LedgerEntry, error) {
	rows, err := s.stmts.logForSession.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Time, &e.UserID, &e.Score); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}
