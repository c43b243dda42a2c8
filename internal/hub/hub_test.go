package hub

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codehz/hz-game-bot/internal/model"
)

type testWriter struct {
	messages [][]byte
	fail     bool
	closed   bool
}

func (w *testWriter) Write(message []byte) error {
	w.messages = append(w.messages, message)
	if w.fail {
		return errors.New("broken pipe")
	}
	return nil
}

func (w *testWriter) Close() error {
	w.closed = true
	return nil
}

func TestHub_PublishByGame(t *testing.T) {
	h := New(nil)
	snake, all, other := &testWriter{}, &testWriter{}, &testWriter{}
	h.Register(&Connection{Game: "snake", Writer: snake})
	h.Register(&Connection{Writer: all})
	h.Register(&Connection{Game: "tetris", Writer: other})
	assert.Equal(t, 2, h.Subscribers("snake"))

	h.Publish(model.LogRow{Game: "snake", SessionID: 3, UserID: 42, Score: 90})

	require.Len(t, snake.messages, 1)
	require.Len(t, all.messages, 1)
	assert.Empty(t, other.messages)

	var row model.LogRow
	require.NoError(t, json.Unmarshal(snake.messages[0], &row))
	assert.Equal(t, int64(3), row.SessionID)
	assert.Equal(t, int64(90), row.Score)
}

func TestHub_Unregister(t *testing.T) {
	h := New(nil)
	w := &testWriter{}
	c := &Connection{Game: "snake", Writer: w}

	h.Register(c)
	h.Broadcast("snake", []byte("x"))
	h.Unregister(c)
	h.Broadcast("snake", []byte("x"))

	assert.Len(t, w.messages, 1)
	assert.Zero(t, h.Subscribers("snake"))
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New(nil)
	w := &testWriter{fail: true}
	h.Register(&Connection{Writer: w})

	h.Broadcast("snake", []byte("x"))
	h.Broadcast("snake", []byte("x"))

	assert.Len(t, w.messages, 1)
	assert.True(t, w.closed)
}
