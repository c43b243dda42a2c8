package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codehz/hz-game-bot/internal/hub"
)

const (
	feedPongWait  = 60 * time.Second
	feedWriteWait = 10 * time.Second
)

// FeedHandler streams newly persisted ledger rows to admin dashboards over a websocket.
type FeedHandler struct {
	Hub *hub.Hub
	Log *slog.Logger
}

type feedMessage struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait))
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *FeedHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{ID: uuid.NewString(), Game: c.Query("game"), Writer: writer}
	h.Hub.Register(conn)
	h.logger().Debug("feed subscriber joined", "subscriber", conn.ID, "game", conn.Game)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
		h.logger().Debug("feed subscriber left", "subscriber", conn.ID)
	}()

	ws.SetReadLimit(4 << 10)
	ws.SetReadDeadline(time.Now().Add(feedPongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	defer closeOnce.Do(func() { close(done) })

	go func() {
		ticker := time.NewTicker(feedPongWait * 9 / 10)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writer.ping(); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	// The feed is one-way; clients may only ping.
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			out, _ := json.Marshal(feedMessage{Type: "pong"})
			_ = writer.Write(out)
		}
	}
}

func (h *FeedHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
