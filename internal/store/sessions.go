package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codehz/hz-game-bot/internal/model"
)

const (
	noInlineMessageID = ""
	noChatID          = -1
	noMessageID       = -1
)

const (
	resolveSessionSQL = `
INSERT INTO session_raw (game, inline_message_id, chat_id, message_id, count)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT (game, inline_message_id, chat_id, message_id) DO UPDATE SET count = count + 1
RETURNING id, count`

	sessionColumns = `id, game, inline_message_id, chat_id, message_id, count`

	fetchSessionSQL = `SELECT ` + sessionColumns + ` FROM session WHERE id = ?`

	listSessionsSQL = `SELECT ` + sessionColumns + ` FROM session ORDER BY id`

	sessionsForUserSQL = `
SELECT ` + sessionColumns + ` FROM session
WHERE id IN (SELECT DISTINCT session_id FROM log WHERE user_id = ?)
ORDER BY id`
)

// sessionKey is the natural key of a placement with absent fields replaced by sentinels.
type sessionKey struct {
	game            string
	inlineMessageID string
	chatID          int64
	messageID       int64
}

func newSessionKey(game string, target model.Target) sessionKey {
	key := sessionKey{
		game:            game,
		inlineMessageID: noInlineMessageID,
		chatID:          noChatID,
		messageID:       noMessageID,
	}
	if target.IsInline() {
		key.inlineMessageID = target.InlineMessageID
		return key
	}
	key.chatID = target.ChatID
	key.messageID = int64(target.MessageID)
	return key
}

// ResolveOrCreate returns the session for the placement, creating it with count 1 or bumping the
// count of the existing row. It is a single upsert statement, so concurrent reports for the same
// placement cannot produce two sessions.
func (t *Tx) ResolveOrCreate(game string, target model.Target) (id int64, count int64, err error) {
	key := newSessionKey(game, target)
	err = t.stmt(t.store.stmts.resolveSession).
		QueryRowContext(t.ctx, key.game, key.inlineMessageID, key.chatID, key.messageID).
		Scan(&id, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve session: %w", err)
	}
	return id, count, nil
}

func (s *Store) ResolveOrCreate(ctx context.Context, game string, target model.Target) (int64, error) {
	return Transaction(ctx, s, func(tx *Tx) (int64, error) {
		id, _, err := tx.ResolveOrCreate(game, target)
		return id, err
	})
}

func (s *Store) FetchSession(ctx context.Context, id int64) (model.Session, error) {
	row := s.stmts.fetchSession.QueryRowContext(ctx, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("fetch session: %w", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	return s.querySessions(ctx, s.stmts.listSessions)
}

// ListSessionsForUser returns every session the user has at least one ledger entry in.
func (s *Store) ListSessionsForUser(ctx context.Context, userID int64) ([]model.Session, error) {
	return s.querySessions(ctx, s.stmts.sessionsForUser, userID)
}

func (s *Store) querySessions(ctx context.Context, stmt *sql.Stmt, args ...any) ([]model.Session, error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (model.Session, error) {
	var (
		sess      model.Session
		inlineID  sql.NullString
		chatID    sql.NullInt64
		messageID sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Game, &inlineID, &chatID, &messageID, &sess.Count); err != nil {
		return model.Session{}, err
	}
	sess.InlineMessageID = nullString(inlineID)
	sess.ChatID = nullInt64(chatID)
	sess.MessageID = nullInt(messageID)
	return sess, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
