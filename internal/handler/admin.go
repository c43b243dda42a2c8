package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/model"
	"github.com/codehz/hz-game-bot/internal/store"
)

const maxBlockReason = 4 << 10

// PhotoSource looks up a user's profile pictures on the bot platform.
type PhotoSource interface {
	ProfilePhotos(ctx context.Context, userID int64) (model.ProfilePhotos, error)
}

type AdminHandler struct {
	Store  *store.Store
	Game   *game.Service
	Photos PhotoSource
	Log    *slog.Logger
}

func (h *AdminHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *AdminHandler) Sessions(c *gin.Context) {
	sessions, err := h.Store.ListSessions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(sessions))
}

func (h *AdminHandler) Session(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	sess, err := h.Store.FetchSession(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *AdminHandler) SessionLog(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Store.FetchSession(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.Store.ListLogForSession(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(entries))
}

// Placement shows the upstream high score table of a session as seen by one user.
func (h *AdminHandler) Placement(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	userID, ok := paramInt64(c, "user")
	if !ok {
		return
	}
	scores, err := h.Game.PlacementHighScores(c.Request.Context(), id, userID)
	if errors.Is(err, game.ErrUpstreamQuery) {
		h.logger().Warn("placement high scores", "session_id", id, "user_id", userID, "err", err)
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(scores))
}

func (h *AdminHandler) User(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	u, err := h.Store.FetchUser(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"user": u}
	if h.Photos != nil {
		photos, err := h.Photos.ProfilePhotos(ctx, id)
		if err != nil {
			h.logger().Warn("profile photos", "user_id", id, "err", err)
		} else {
			resp["photos"] = photos
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) UserSessions(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	sessions, err := h.Store.ListSessionsForUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(sessions))
}

func (h *AdminHandler) Blocklist(c *gin.Context) {
	page, ok := paramPage(c)
	if !ok {
		return
	}
	list, err := h.Store.ListBlocklist(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(list))
}

// Block takes the reason as the plain text request body and reports how many sessions were
// zeroed upstream.
func (h *AdminHandler) Block(c *gin.Context) {
	userID, ok := paramInt64(c, "user")
	if !ok {
		return
	}
	desc, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBlockReason))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	count, err := h.Game.Block(c.Request.Context(), userID, string(desc))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger().Info("user blocked", "user_id", userID, "sessions_zeroed", count)
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *AdminHandler) Unblock(c *gin.Context) {
	userID, ok := paramInt64(c, "user")
	if !ok {
		return
	}
	if _, err := h.Game.Unblock(c.Request.Context(), userID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// QueryLog pages through the ledger. Missing or malformed filter parameters are ignored.
func (h *AdminHandler) QueryLog(c *gin.Context) {
	page, ok := paramPage(c)
	if !ok {
		return
	}
	f := model.LogFilter{
		Page:      page,
		SessionID: queryInt64(c, "session_id"),
		UserID:    queryInt64(c, "user_id"),
		MinTime:   queryInt64(c, "min_time"),
		MaxTime:   queryInt64(c, "max_time"),
		MinScore:  queryInt64(c, "min_score"),
		MaxScore:  queryInt64(c, "max_score"),
	}
	rows, err := h.Store.QueryLog(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orEmpty(rows))
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	h.logger().Error("admin request failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *AdminHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func paramPage(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return 0, false
	}
	return page, true
}

func queryInt64(c *gin.Context, name string) *int64 {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
