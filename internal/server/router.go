package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/config"
	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/handler"
	"github.com/codehz/hz-game-bot/internal/hub"
	"github.com/codehz/hz-game-bot/internal/middleware"
	"github.com/codehz/hz-game-bot/internal/store"
)

// ScoreMethod is the custom HTTP method game pages use to report a score.
const ScoreMethod = "SCORE"

type Deps struct {
	Store        *store.Store
	Game         *game.Service
	Codec        *auth.Codec
	Catalog      config.Catalog
	Photos       handler.PhotoSource
	Hub          *hub.Hub
	ScoreLimiter *middleware.RateLimiter
	Log          *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	scoreHandler := &handler.ScoreHandler{Game: deps.Game, Log: log}
	score := []gin.HandlerFunc{scoreHandler.Submit}
	if deps.ScoreLimiter != nil {
		score = append([]gin.HandlerFunc{middleware.RateLimit(deps.ScoreLimiter)}, score...)
	}
	r.Handle(ScoreMethod, "/*path", score...)
	r.POST("/api/score", score...)

	admin := r.Group("/api")
	admin.Use(middleware.RequireAdmin(deps.Codec, deps.Catalog.IsAdmin))

	adminHandler := &handler.AdminHandler{Store: deps.Store, Game: deps.Game, Photos: deps.Photos, Log: log}
	admin.GET("/", adminHandler.Ping)
	admin.GET("/sessions", adminHandler.Sessions)
	admin.GET("/session/:id", adminHandler.Session)
	admin.GET("/session/:id/log", adminHandler.SessionLog)
	admin.GET("/session/:id/:user", adminHandler.Placement)
	admin.GET("/user/:id", adminHandler.User)
	admin.GET("/user/:id/sessions", adminHandler.UserSessions)
	admin.GET("/blocklist/:page", adminHandler.Blocklist)
	admin.PUT("/block/:user", adminHandler.Block)
	admin.DELETE("/block/:user", adminHandler.Unblock)
	admin.GET("/log/:page", adminHandler.QueryLog)

	if deps.Hub != nil {
		feedHandler := &handler.FeedHandler{Hub: deps.Hub, Log: log}
		admin.GET("/feed", feedHandler.Serve)
	}

	r.NoRoute(handler.Static(deps.Catalog.Static))

	return r
}
