package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/codehz/hz-game-bot/internal/model"
)

// SweepUser force-zeroes the user's remote score in every session they ever played. A failure
// for one session is logged and skipped; the result counts the sessions that were zeroed.
func (s *Service) SweepUser(ctx context.Context, userID int64) (int, error) {
	sessions, err := s.store.ListSessionsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list sessions for user %d: %w", userID, err)
	}

	count := 0
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		err := s.upstream.SetScore(ctx, userID, 0, sess.Target(), true)
		if err != nil && !errors.Is(err, ErrScoreNotModified) {
			s.log.Warn("sweep: zero score failed", "user_id", userID, "session_id", sess.ID, "error", err)
			continue
		}
		count++
	}
	s.log.Info("sweep finished", "user_id", userID, "sessions", len(sessions), "zeroed", count)
	return count, nil
}

// Block records the user in the blocklist, replacing any previous description, and then
// sweeps their existing scores.
func (s *Service) Block(ctx context.Context, userID int64, desc string) (int, error) {
	if err := s.store.Block(ctx, userID, desc); err != nil {
		return 0, err
	}
	return s.SweepUser(ctx, userID)
}

// Unblock lifts the block. Scores zeroed by earlier sweeps stay zeroed upstream.
func (s *Service) Unblock(ctx context.Context, userID int64) (bool, error) {
	return s.store.Unblock(ctx, userID)
}

// PlacementHighScores fetches the upstream table for a stored session as seen by userID and
// caches every profile it contains.
func (s *Service) PlacementHighScores(ctx context.Context, sessionID, userID int64) ([]model.HighScore, error) {
	sess, err := s.store.FetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	scores, err := s.upstream.HighScores(ctx, userID, sess.Target())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamQuery, err)
	}
	users := make([]model.CachedUser, 0, len(scores))
	for _, hs := range scores {
		users = append(users, hs.User)
	}
	if err := s.store.PutUsers(ctx, users...); err != nil {
		s.log.Warn("cache high score users failed", "session_id", sessionID, "error", err)
	}
	return scores, nil
}

// RememberUser writes a sighted profile to the user cache. Failures are logged only.
func (s *Service) RememberUser(ctx context.Context, u model.CachedUser) {
	if err := s.store.PutUsers(ctx, u); err != nil {
		s.log.Warn("cache user failed", "user_id", u.ID, "error", err)
	}
}
