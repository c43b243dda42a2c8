package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/middleware"
)

const maxScoreBody = 1 << 10

type ScoreHandler struct {
	Game *game.Service
	Log  *slog.Logger
}

// Submit answers 200 with the upstream high score table, or a bare 403 for any failure.
func (h *ScoreHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxScoreBody+1))
	if err != nil || len(body) > maxScoreBody {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	rep, err := h.Game.Submit(c.Request.Context(), middleware.TokenFromRequest(c.Request), body)
	if err != nil {
		h.logger().Log(c.Request.Context(), rejectLevel(err), "score rejected",
			"reached", rep.Reached.String(),
			"user_id", rep.UserID,
			"game", rep.Game,
			"err", err,
		)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, rep.HighScores)
}

func (h *ScoreHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// rejectLevel keeps client mistakes out of the error log.
func rejectLevel(err error) slog.Level {
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, game.ErrValidation):
		return slog.LevelInfo
	case errors.Is(err, game.ErrPersistence):
		return slog.LevelError
	}
	return slog.LevelWarn
}
