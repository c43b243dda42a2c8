package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/codehz/hz-game-bot/internal/model"
)

const logQueryBase = `
SELECT s.game, s.inline_message_id, s.chat_id, s.message_id, l.session_id, l.time, l.user_id, l.score
FROM log l JOIN session s ON s.id = l.session_id`

// buildLogQuery turns the filter bag into one parametrized query. Each present filter adds one
// AND predicate with its own placeholder, always in the same field order; values are never
// interpolated.
func buildLogQuery(f model.LogFilter) (string, []any) {
	var (
		preds  []string
		params []any
	)
	add := func(pred string, v *int64) {
		if v == nil {
			return
		}
		preds = append(preds, pred)
		params = append(params, *v)
	}
	add("l.session_id = ?", f.SessionID)
	add("l.user_id = ?", f.UserID)
	add("l.time >= ?", f.MinTime)
	add("l.time <= ?", f.MaxTime)
	add("l.score >= ?", f.MinScore)
	add("l.score <= ?", f.MaxScore)

	var b strings.Builder
	b.WriteString(logQueryBase)
	if len(preds) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(preds, " AND "))
	}
	b.WriteString("\nORDER BY l.time DESC, l.id DESC\nLIMIT ? OFFSET ?")

	page := f.Page
	if page < 0 {
		page = 0
	}
	params = append(params, PageSize, page*PageSize)
	return b.String(), params
}

// LogRows runs the filtered audit query and yields its rows lazily. The sequence re-runs the
// query each time it is ranged over; stopping early releases the cursor.
func (s *Store) LogRows(ctx context.Context, f model.LogFilter) iter.Seq2[model.LogRow, error] {
	query, params := buildLogQuery(f)
	return func(yield func(model.LogRow, error) bool) {
		rows, err := s.db.QueryContext(ctx, query, params...)
		if err != nil {
			yield(model.LogRow{}, fmt.Errorf("query log: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			row, err := scanLogRow(rows)
			if err != nil {
				yield(model.LogRow{}, fmt.Errorf("scan log: %w", err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.LogRow{}, fmt.Errorf("iterate log: %w", err))
		}
	}
}

// QueryLog drains LogRows into a page. A full page means more rows may follow.
func (s *Store) QueryLog(ctx context.Context, f model.LogFilter) ([]model.LogRow, error) {
	out := []model.LogRow{}
	for row, err := range s.LogRows(ctx, f) {
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func scanLogRow(rows *sql.Rows) (model.LogRow, error) {
	var (
		r         model.LogRow
		inlineID  sql.NullString
		chatID    sql.NullInt64
		messageID sql.NullInt64
	)
	if err := rows.Scan(&r.Game, &inlineID, &chatID, &messageID, &r.SessionID, &r.Time, &r.UserID, &r.Score); err != nil {
		return model.LogRow{}, err
	}
	r.InlineMessageID = nullString(inlineID)
	r.ChatID = nullInt64(chatID)
	r.MessageID = nullInt(messageID)
	return r, nil
}
