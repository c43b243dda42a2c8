package game

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/model"
	"github.com/codehz/hz-game-bot/internal/store"
)

type setScoreCall struct {
	UserID int64
	Score  int64
	Target model.Target
	Force  bool
}

type fakeUpstream struct {
	mu        sync.Mutex
	calls     []setScoreCall
	setErr    func(call setScoreCall) error
	scores    []model.HighScore
	scoresErr error
}

func (f *fakeUpstream) SetScore(_ context.Context, userID, score int64, target model.Target, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := setScoreCall{UserID: userID, Score: score, Target: target, Force: force}
	f.calls = append(f.calls, call)
	if f.setErr != nil {
		return f.setErr(call)
	}
	return nil
}

func (f *fakeUpstream) HighScores(context.Context, int64, model.Target) ([]model.HighScore, error) {
	return f.scores, f.scoresErr
}

type recordingFeed struct{ rows []model.LogRow }

func (f *recordingFeed) Publish(row model.LogRow) { f.rows = append(f.rows, row) }

// failingStore lets a test break one store operation while keeping the rest real.
type failingStore struct {
	*store.Store
	recordErr error
}

func (f failingStore) RecordScore(ctx context.Context, game string, target model.Target, userID, score int64) (model.LedgerEntry, error) {
	if f.recordErr != nil {
		return model.LedgerEntry{}, f.recordErr
	}
	return f.Store.RecordScore(ctx, game, target, userID, score)
}

type fixture struct {
	store    *store.Store
	upstream *fakeUpstream
	codec    *auth.Codec
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	codec, err := auth.NewCodec("test")
	require.NoError(t, err)

	up := &fakeUpstream{scores: []model.HighScore{{Position: 1, User: model.CachedUser{ID: 42, FirstName: "P"}, Score: 30}}}
	return &fixture{store: st, upstream: up, codec: codec, svc: NewService(st, up, codec, nil)}
}

func (f *fixture) token(t *testing.T, p auth.Payload) string {
	t.Helper()
	tok, err := f.codec.Sign(p, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestSubmit_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"})

	rep, err := f.svc.Submit(ctx, tok, []byte("30"))
	require.NoError(t, err)
	assert.Equal(t, Responded, rep.State)
	assert.Equal(t, f.upstream.scores, rep.HighScores)
	assert.Equal(t, []setScoreCall{{UserID: 42, Score: 30, Target: model.Target{InlineMessageID: "abc"}, Force: false}}, f.upstream.calls)

	sess, err := f.store.FetchSession(ctx, rep.Entry.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.Count)
	assert.Equal(t, "g1", sess.Game)

	entries, err := f.store.ListLogForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].UserID)
	assert.Equal(t, int64(30), entries[0].Score)

	rep2, err := f.svc.Submit(ctx, tok, []byte("10"))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, rep2.Entry.SessionID)

	sess, err = f.store.FetchSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sess.Count)
	entries, err = f.store.ListLogForSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSubmit_BlockedUserForcedToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := model.Target{ChatID: -100, MessageID: 7}
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 13, ChatID: target.ChatID, MessageID: target.MessageID})

	_, err := f.svc.Submit(ctx, tok, []byte("80"))
	require.NoError(t, err)
	require.NoError(t, f.store.Block(ctx, 13, "cheating"))

	rep, err := f.svc.Submit(ctx, tok, []byte("50"))
	require.NoError(t, err)
	assert.True(t, rep.Forced)
	assert.Equal(t, int64(0), rep.Entry.Score)

	entries, err := f.store.ListLogForSession(ctx, rep.Entry.SessionID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].Score)

	require.Len(t, f.upstream.calls, 2)
	assert.Equal(t, setScoreCall{UserID: 13, Score: 0, Target: target, Force: true}, f.upstream.calls[1])
}

func TestSubmit_ZeroScoreSkipsMirror(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"})

	rep, err := f.svc.Submit(context.Background(), tok, []byte("0"))
	require.NoError(t, err)
	assert.Equal(t, Responded, rep.State)
	assert.Empty(t, f.upstream.calls)
	assert.NotZero(t, rep.Entry.ID)
}

func TestSubmit_InvalidToken(t *testing.T) {
	f := newFixture(t)
	other, err := auth.NewCodec("test")
	require.NoError(t, err)
	tok, err := other.Sign(auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"}, time.Hour)
	require.NoError(t, err)

	rep, err := f.svc.Submit(context.Background(), tok, []byte("30"))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.Equal(t, Rejected, rep.State)
	assert.Equal(t, Received, rep.Reached)
	assertNothingStored(t, f)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name    string
		payload auth.Payload
		body    string
	}{
		{"no game", auth.Payload{UserID: 1, InlineMessageID: "x"}, "1"},
		{"no target", auth.Payload{Game: "g1", UserID: 1}, "1"},
		{"chat without message", auth.Payload{Game: "g1", UserID: 1, ChatID: 5}, "1"},
		{"both targets", auth.Payload{Game: "g1", UserID: 1, InlineMessageID: "x", ChatID: 5, MessageID: 6}, "1"},
		{"string score", auth.Payload{Game: "g1", UserID: 1, InlineMessageID: "x"}, `"30"`},
		{"fractional score", auth.Payload{Game: "g1", UserID: 1, InlineMessageID: "x"}, "1.5"},
		{"negative score", auth.Payload{Game: "g1", UserID: 1, InlineMessageID: "x"}, "-3"},
		{"not json", auth.Payload{Game: "g1", UserID: 1, InlineMessageID: "x"}, "abc"},
		{"two values", auth.Payload{Game: "g1", UserID: 1, InlineMessageID: "x"}, "1 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep, err := f.svc.Submit(context.Background(), f.token(t, tc.payload), []byte(tc.body))
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, Authenticated, rep.Reached)
		})
	}
	assertNothingStored(t, f)
}

func TestSubmit_PersistenceFailureSkipsUpstream(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingStore{Store: f.store, recordErr: errors.New("disk full")}, f.upstream, f.codec, nil)
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"})

	rep, err := svc.Submit(context.Background(), tok, []byte("30"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, Gated, rep.Reached)
	assert.Empty(t, f.upstream.calls)
}

func TestSubmit_UpstreamNotModifiedIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.upstream.setErr = func(setScoreCall) error { return fmt.Errorf("telegram: %w", ErrScoreNotModified) }
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"})

	rep, err := f.svc.Submit(context.Background(), tok, []byte("5"))
	require.NoError(t, err)
	assert.Equal(t, f.upstream.scores, rep.HighScores)
}

func TestSubmit_UpstreamFailureKeepsLedger(t *testing.T) {
	f := newFixture(t)
	f.upstream.setErr = func(setScoreCall) error { return errors.New("502") }
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"})

	rep, err := f.svc.Submit(context.Background(), tok, []byte("5"))
	assert.ErrorIs(t, err, ErrUpstreamMirror)
	assert.Equal(t, Persisted, rep.Reached)

	entries, err := f.store.ListLogForSession(context.Background(), rep.Entry.SessionID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSubmit_HighScoreFailure(t *testing.T) {
	f := newFixture(t)
	f.upstream.scoresErr = errors.New("timeout")
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, InlineMessageID: "abc"})

	rep, err := f.svc.Submit(context.Background(), tok, []byte("5"))
	assert.ErrorIs(t, err, ErrUpstreamQuery)
	assert.Equal(t, Mirrored, rep.Reached)
}

func TestSubmit_PublishesCommittedRow(t *testing.T) {
	f := newFixture(t)
	feed := &recordingFeed{}
	f.svc.WithFeed(feed)
	tok := f.token(t, auth.Payload{Game: "g1", UserID: 42, ChatID: 9, MessageID: 4})

	rep, err := f.svc.Submit(context.Background(), tok, []byte("12"))
	require.NoError(t, err)
	require.Len(t, feed.rows, 1)
	row := feed.rows[0]
	assert.Equal(t, rep.Entry.SessionID, row.SessionID)
	assert.Equal(t, "g1", row.Game)
	assert.Nil(t, row.InlineMessageID)
	require.NotNil(t, row.ChatID)
	assert.Equal(t, int64(9), *row.ChatID)
}

func assertNothingStored(t *testing.T, f *fixture) {
	t.Helper()
	sessions, err := f.store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, f.upstream.calls)
}
