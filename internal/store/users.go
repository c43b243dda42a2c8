package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codehz/hz-game-bot/internal/model"
)

const (
	putUserSQL = `
INSERT OR REPLACE INTO user_cache (id, first_name, last_name, username, language_code)
VALUES (?, ?, ?, ?, ?)`

	fetchUserSQL = `SELECT id, first_name, last_name, username, language_code FROM user_cache WHERE id = ?`
)

// PutUser overwrites the cached profile wholesale; fields absent from u become NULL.
func (t *Tx) PutUser(u model.CachedUser) error {
	_, err := t.stmt(t.store.stmts.putUser).ExecContext(t.ctx, u.ID, u.FirstName, u.LastName, u.Username, u.LanguageCode)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// PutUsers caches every profile in one transaction.
func (s *Store) PutUsers(ctx context.Context, users ...model.CachedUser) error {
	return s.InTx(ctx, func(tx *Tx) error {
		for _, u := range users {
			if err := tx.PutUser(u); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) FetchUser(ctx context.Context, id int64) (model.CachedUser, error) {
	var (
		u                      model.CachedUser
		lastName, username, lc sql.NullString
	)
	err := s.stmts.fetchUser.QueryRowContext(ctx, id).Scan(&u.ID, &u.FirstName, &lastName, &username, &lc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CachedUser{}, ErrNotFound
		}
		return model.CachedUser{}, fmt.Errorf("fetch user: %w", err)
	}
	u.LastName = nullString(lastName)
	u.Username = nullString(username)
	u.LanguageCode = nullString(lc)
	return u, nil
}
