package telegram

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/model"
)

func TestClient_SetScoreInline(t *testing.T) {
	f, api := newFakeAPI(t)
	c := New(api, nil)

	err := c.SetScore(context.Background(), 42, 0, model.Target{InlineMessageID: "abc"}, true)
	require.NoError(t, err)

	call := f.last(t)
	assert.Equal(t, "setGameScore", call.Method)
	assert.Equal(t, "42", call.Form.Get("user_id"))
	assert.Equal(t, "0", call.Form.Get("score"))
	assert.Equal(t, "true", call.Form.Get("force"))
	assert.Equal(t, "abc", call.Form.Get("inline_message_id"))
	assert.Empty(t, call.Form.Get("chat_id"))
}

func TestClient_SetScoreChat(t *testing.T) {
	f, api := newFakeAPI(t)
	c := New(api, nil)

	err := c.SetScore(context.Background(), 42, 77, model.Target{ChatID: -100, MessageID: 9}, false)
	require.NoError(t, err)

	call := f.last(t)
	assert.Equal(t, "77", call.Form.Get("score"))
	assert.Equal(t, "-100", call.Form.Get("chat_id"))
	assert.Equal(t, "9", call.Form.Get("message_id"))
	assert.Empty(t, call.Form.Get("force"))
	assert.Empty(t, call.Form.Get("inline_message_id"))
}

func TestClient_SetScoreNotModified(t *testing.T) {
	f, api := newFakeAPI(t)
	f.errs["setGameScore"] = "Bad Request: BOT_SCORE_NOT_MODIFIED"
	c := New(api, nil)

	err := c.SetScore(context.Background(), 42, 5, model.Target{InlineMessageID: "abc"}, false)
	assert.ErrorIs(t, err, game.ErrScoreNotModified)

	f.errs["setGameScore"] = "Bad Request: message to edit not found"
	err = c.SetScore(context.Background(), 42, 5, model.Target{InlineMessageID: "abc"}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, game.ErrScoreNotModified)
}

func TestClient_HighScores(t *testing.T) {
	f, api := newFakeAPI(t)
	f.results["getGameHighScores"] = `[
		{"position":1,"user":{"id":7,"first_name":"Ann","username":"ann"},"score":120},
		{"position":2,"user":{"id":42,"first_name":"Bob"},"score":30}
	]`
	c := New(api, nil)

	scores, err := c.HighScores(context.Background(), 42, model.Target{ChatID: 5, MessageID: 6})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, scores[0].Position)
	assert.Equal(t, int64(120), scores[0].Score)
	require.NotNil(t, scores[0].User.Username)
	assert.Equal(t, "ann", *scores[0].User.Username)
	assert.Nil(t, scores[1].User.Username)
	assert.Nil(t, scores[1].User.LastName)

	call := f.last(t)
	assert.Equal(t, "getGameHighScores", call.Method)
	assert.Equal(t, "5", call.Form.Get("chat_id"))
	assert.Equal(t, "6", call.Form.Get("message_id"))
}

func TestClient_ProfilePhotos(t *testing.T) {
	f, api := newFakeAPI(t)
	f.results["getUserProfilePhotos"] = `{"total_count":1,"photos":[[{"file_id":"a","file_unique_id":"ua","width":160,"height":160}]]}`
	c := New(api, nil)

	photos, err := c.ProfilePhotos(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, photos.TotalCount)
	require.Len(t, photos.Photos, 1)
	assert.Equal(t, "a", photos.Photos[0][0].FileID)
	assert.Equal(t, "7", f.last(t).Form.Get("user_id"))
}

func TestClient_LogOut(t *testing.T) {
	f, api := newFakeAPI(t)
	c := New(api, nil)

	require.NoError(t, c.LogOut(context.Background()))
	assert.Equal(t, "logOut", f.last(t).Method)
}

func TestClient_CancelledContext(t *testing.T) {
	f, api := newFakeAPI(t)
	c := New(api, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.SetScore(ctx, 1, 1, model.Target{InlineMessageID: "x"}, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}

func TestDial(t *testing.T) {
	f := &fakeAPI{results: map[string]string{}, errs: map[string]string{}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	c, err := Dial("TOKEN", srv.URL+"/bot%s/%s", nil)
	require.NoError(t, err)
	assert.Equal(t, "games_bot", c.API().Self.UserName)

	gone := httptest.NewServer(f)
	gone.Close()
	_, err = Dial("TOKEN", gone.URL+"/bot%s/%s", nil)
	assert.Error(t, err)
}
