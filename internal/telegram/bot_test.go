package telegram

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/config"
	"github.com/codehz/hz-game-bot/internal/model"
)

type userLog struct {
	mu    sync.Mutex
	users []model.CachedUser
}

func (l *userLog) RememberUser(_ context.Context, u model.CachedUser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = append(l.users, u)
}

func newTestBot(t *testing.T) (*fakeAPI, *Bot, *auth.Codec, *userLog) {
	t.Helper()
	f, api := newFakeAPI(t)
	codec, err := auth.NewCodec("test")
	require.NoError(t, err)
	users := &userLog{}
	catalog := config.Catalog{
		Base:   "https://games.example.com/play/?v=2",
		Games:  []config.Game{{ID: "snake", Name: "Snake"}, {ID: "tetris", Name: "Tetris"}},
		Admins: []int64{7},
	}
	return f, NewBot(api, codec, catalog, time.Hour, users, nil), codec, users
}

func TestBot_InlineQuery(t *testing.T) {
	f, b, _, users := newTestBot(t)

	b.handleUpdate(context.Background(), tgbotapi.Update{InlineQuery: &tgbotapi.InlineQuery{
		ID:   "q1",
		From: &tgbotapi.User{ID: 42, FirstName: "Bob"},
	}})

	call := f.last(t)
	assert.Equal(t, "answerInlineQuery", call.Method)
	assert.Equal(t, "q1", call.Form.Get("inline_query_id"))
	assert.Equal(t, "600", call.Form.Get("cache_time"))

	var results []map[string]string
	require.NoError(t, json.Unmarshal([]byte(call.Form.Get("results")), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "game", results[0]["type"])
	assert.Equal(t, "snake", results[0]["game_short_name"])

	require.Len(t, users.users, 1)
	assert.Equal(t, "Bob", users.users[0].FirstName)
}

func TestBot_CallbackSignsInlinePlayLink(t *testing.T) {
	f, b, codec, _ := newTestBot(t)

	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:              "c1",
		From:            &tgbotapi.User{ID: 7, FirstName: "Ann"},
		InlineMessageID: "inl",
		GameShortName:   "snake",
	}})

	call := f.last(t)
	assert.Equal(t, "answerCallbackQuery", call.Method)
	link, err := url.Parse(call.Form.Get("url"))
	require.NoError(t, err)
	assert.Equal(t, "games.example.com", link.Host)
	assert.Equal(t, "2", link.Query().Get("v"))

	p, err := codec.Verify(link.Query().Get("data"))
	require.NoError(t, err)
	assert.Equal(t, auth.Payload{Game: "snake", UserID: 7, InlineMessageID: "inl", IsAdmin: true}, p)
}

func TestBot_CallbackChatMessage(t *testing.T) {
	f, b, codec, _ := newTestBot(t)

	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:            "c2",
		From:          &tgbotapi.User{ID: 42, FirstName: "Bob"},
		Message:       &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: -100}},
		GameShortName: "tetris",
	}})

	link, err := url.Parse(f.last(t).Form.Get("url"))
	require.NoError(t, err)
	p, err := codec.Verify(link.Query().Get("data"))
	require.NoError(t, err)
	assert.Equal(t, auth.Payload{Game: "tetris", UserID: 42, ChatID: -100, MessageID: 9}, p)
}

func TestBot_CallbackUnknownGame(t *testing.T) {
	f, b, _, _ := newTestBot(t)

	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:              "c3",
		From:            &tgbotapi.User{ID: 42},
		InlineMessageID: "inl",
		GameShortName:   "pong",
	}})

	call := f.last(t)
	assert.Equal(t, "true", call.Form.Get("show_alert"))
	assert.Empty(t, call.Form.Get("url"))
}

func TestPlayURL(t *testing.T) {
	got, err := PlayURL("https://example.com/game", "a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/game?data=a.b.c", got)

	_, err = PlayURL("://bad", "x")
	assert.Error(t, err)
}
