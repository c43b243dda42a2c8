package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/hub"
	"github.com/codehz/hz-game-bot/internal/middleware"
	"github.com/codehz/hz-game-bot/internal/server"
	"github.com/codehz/hz-game-bot/internal/store"
	"github.com/codehz/hz-game-bot/internal/telegram"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the HTTP server",
		Long: `Run the Telegram bot update loop and the HTTP server side by side.

The HTTP server hosts the game pages, accepts score reports and exposes the
admin API. Both stop on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if err := cfg.RequireBot(); err != nil {
		return err
	}
	log := commandLogger(cmd, cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	codec, err := auth.NewCodec(issuer)
	if err != nil {
		return err
	}
	client, err := telegram.Dial(cfg.BotToken, cfg.BotAPIEndpoint, log)
	if err != nil {
		return err
	}

	feed := hub.New(log)
	svc := game.NewService(st, client, codec, log).WithFeed(feed)
	bot := telegram.NewBot(client.API(), codec, cfg.Catalog, cfg.TokenExpiry, svc, log)

	limiter := middleware.NewRateLimiter(cfg.ScoreRateLimit, time.Minute)
	defer limiter.Close()

	router := server.NewRouter(server.Deps{
		Store:        st,
		Game:         svc,
		Codec:        codec,
		Catalog:      cfg.Catalog,
		Photos:       client,
		Hub:          feed,
		ScoreLimiter: limiter,
		Log:          log,
	})

	botErr := make(chan error, 1)
	go func() { botErr <- bot.Run(ctx) }()

	err = server.Run(ctx, cfg, router, log)
	stop()
	if berr := <-botErr; berr != nil && !errors.Is(berr, context.Canceled) {
		log.Error("bot loop stopped", "err", berr)
		if err == nil {
			err = berr
		}
	}
	return err
}
