package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/codehz/hz-game-bot/internal/model"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one live feed subscriber. An empty Game receives rows for every game.
type Connection struct {
	ID     string
	Game   string
	Writer Writer
}

// Hub fans committed ledger rows out to feed subscribers grouped by game.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Connection]struct{}
	log    *slog.Logger
}

func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{topics: make(map[string]map[*Connection]struct{}), log: log}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[conn.Game] == nil {
		h.topics[conn.Game] = make(map[*Connection]struct{})
	}
	h.topics[conn.Game][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.topics[conn.Game]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.topics, conn.Game)
	}
}

// Subscribers counts connections that would receive a row for game.
func (h *Hub) Subscribers(game string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.topics[""])
	if game != "" {
		n += len(h.topics[game])
	}
	return n
}

// Publish sends row to subscribers of its game and to catch-all subscribers. Connections whose
// write fails are closed and dropped.
func (h *Hub) Publish(row model.LogRow) {
	message, err := json.Marshal(row)
	if err != nil {
		h.log.Error("feed: encode row", "session_id", row.SessionID, "error", err)
		return
	}
	h.Broadcast(row.Game, message)
}

func (h *Hub) Broadcast(game string, message []byte) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.topics[game])+len(h.topics[""]))
	for c := range h.topics[game] {
		conns = append(conns, c)
	}
	if game != "" {
		for c := range h.topics[""] {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.log.Debug("feed: dropping subscriber", "subscriber", c.ID, "game", c.Game)
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
