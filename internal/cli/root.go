package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/codehz/hz-game-bot/internal/config"
	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/telegram"
	"github.com/codehz/hz-game-bot/pkg/logger"
)

const issuer = "hz-game-bot"

// Upstream is the bot platform as the operator commands use it.
type Upstream interface {
	game.Upstream
	LogOut(ctx context.Context) error
}

// RootOptions holds global flags and the seams tests replace.
type RootOptions struct {
	Database string
	Catalog  string

	LoadConfig   func() (config.Config, error)
	DialUpstream func(cfg config.Config, log *slog.Logger) (Upstream, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		LoadConfig:   config.LoadConfig,
		DialUpstream: dialTelegram,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hz-game-bot",
		Short:         "Telegram game score server",
		Long:          "Serves HTML5 games for a Telegram bot, records every reported score and mirrors it to the game message.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides DATABASE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "path to game catalog YAML (overrides CATALOG_FILE)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewBlockCommand(opts))
	cmd.AddCommand(NewUnblockCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))

	return cmd
}

func (o *RootOptions) config() (config.Config, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	if o.Database != "" {
		cfg.DatabasePath = o.Database
	}
	if o.Catalog != "" {
		cfg.CatalogFile = o.Catalog
		if cfg.Catalog, err = config.LoadCatalog(o.Catalog); err != nil {
			return config.Config{}, fmt.Errorf("config: %w", err)
		}
	}
	return cfg, nil
}

func commandLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
}

func dialTelegram(cfg config.Config, log *slog.Logger) (Upstream, error) {
	if err := cfg.RequireBot(); err != nil {
		return nil, err
	}
	client, err := telegram.Dial(cfg.BotToken, cfg.BotAPIEndpoint, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}
