package game

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/model"
)

// Upstream is the game backend that owns the authoritative high score tables.
type Upstream interface {
	SetScore(ctx context.Context, userID, score int64, target model.Target, force bool) error
	HighScores(ctx context.Context, userID int64, target model.Target) ([]model.HighScore, error)
}

// Store is the local bookkeeping the service reads and writes.
type Store interface {
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	RecordScore(ctx context.Context, game string, target model.Target, userID, score int64) (model.LedgerEntry, error)
	FetchSession(ctx context.Context, id int64) (model.Session, error)
	ListSessionsForUser(ctx context.Context, userID int64) ([]model.Session, error)
	Block(ctx context.Context, userID int64, desc string) error
	Unblock(ctx context.Context, userID int64) (bool, error)
	PutUsers(ctx context.Context, users ...model.CachedUser) error
}

// Publisher receives every ledger row right after it is committed.
type Publisher interface {
	Publish(row model.LogRow)
}

type Service struct {
	store    Store
	upstream Upstream
	codec    *auth.Codec
	log      *slog.Logger
	feed     Publisher
}

func NewService(store Store, upstream Upstream, codec *auth.Codec, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, upstream: upstream, codec: codec, log: log}
}

// WithFeed makes the service publish committed ledger rows to p.
func (s *Service) WithFeed(p Publisher) *Service {
	s.feed = p
	return s
}

type State int

const (
	Received State = iota
	Authenticated
	Gated
	Persisted
	Mirrored
	Responded
	Rejected
)

func (st State) String() string {
	switch st {
	case Received:
		return "received"
	case Authenticated:
		return "authenticated"
	case Gated:
		return "gated"
	case Persisted:
		return "persisted"
	case Mirrored:
		return "mirrored"
	case Responded:
		return "responded"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int(st))
}

// Report describes how far a submission got. On rejection State is Rejected and Reached is the
// last state that completed.
type Report struct {
	State      State
	Reached    State
	Game       string
	UserID     int64
	Target     model.Target
	Score      int64
	Forced     bool
	Entry      model.LedgerEntry
	HighScores []model.HighScore
}

func (r *Report) advance(st State) {
	r.State = st
	r.Reached = st
}

func (r *Report) reject(err error) (Report, error) {
	r.State = Rejected
	return *r, err
}

// Submit runs one score report from the capability token and raw JSON body through
// authentication, the blocklist gate, persistence and the upstream mirror, and returns the
// upstream high score list on success.
func (s *Service) Submit(ctx context.Context, token string, body []byte) (Report, error) {
	r := Report{State: Received, Reached: Received}

	payload, err := s.codec.Verify(token)
	if err != nil {
		return r.reject(err)
	}
	r.advance(Authenticated)

	target := model.Target{
		InlineMessageID: payload.InlineMessageID,
		ChatID:          payload.ChatID,
		MessageID:       payload.MessageID,
	}
	if payload.Game == "" || payload.UserID == 0 || !target.Valid() {
		return r.reject(fmt.Errorf("%w: incomplete capability", ErrValidation))
	}
	score, err := parseScore(body)
	if err != nil {
		return r.reject(err)
	}
	r.Game, r.UserID, r.Target, r.Score = payload.Game, payload.UserID, target, score

	blocked, err := s.store.IsBlocked(ctx, r.UserID)
	if err != nil {
		return r.reject(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if blocked {
		r.Score = 0
		r.Forced = true
	}
	r.advance(Gated)

	r.Entry, err = s.store.RecordScore(ctx, r.Game, r.Target, r.UserID, r.Score)
	if err != nil {
		return r.reject(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	r.advance(Persisted)
	s.publish(r)

	if r.Score > 0 || r.Forced {
		err := s.upstream.SetScore(ctx, r.UserID, r.Score, r.Target, r.Forced)
		switch {
		case errors.Is(err, ErrScoreNotModified):
			s.log.Debug("upstream score unchanged", "user_id", r.UserID, "session_id", r.Entry.SessionID)
		case err != nil:
			return r.reject(fmt.Errorf("%w: %w", ErrUpstreamMirror, err))
		}
	}
	r.advance(Mirrored)

	r.HighScores, err = s.upstream.HighScores(ctx, r.UserID, r.Target)
	if err != nil {
		return r.reject(fmt.Errorf("%w: %w", ErrUpstreamQuery, err))
	}
	r.advance(Responded)
	return r, nil
}

func (s *Service) publish(r Report) {
	if s.feed == nil {
		return
	}
	row := model.LogRow{
		Game:      r.Game,
		SessionID: r.Entry.SessionID,
		Time:      r.Entry.Time,
		UserID:    r.Entry.UserID,
		Score:     r.Entry.Score,
	}
	if r.Target.IsInline() {
		id := r.Target.InlineMessageID
		row.InlineMessageID = &id
	} else {
		chatID, messageID := r.Target.ChatID, r.Target.MessageID
		row.ChatID = &chatID
		row.MessageID = &messageID
	}
	s.feed.Publish(row)
}

// parseScore accepts a single non-negative integral JSON number.
func parseScore(body []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: score is not JSON", ErrValidation)
	}
	if dec.More() {
		return 0, fmt.Errorf("%w: trailing data after score", ErrValidation)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: score is not a number", ErrValidation)
	}
	score, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: score is not an integer", ErrValidation)
	}
	if score < 0 {
		return 0, fmt.Errorf("%w: negative score", ErrValidation)
	}
	return score, nil
}
