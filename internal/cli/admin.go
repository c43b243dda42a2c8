package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/model"
	"github.com/codehz/hz-game-bot/internal/store"
)

var errOffline = errors.New("bot platform not connected")

func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log the bot out of the cloud Bot API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			up, err := opts.DialUpstream(cfg, commandLogger(cmd, cfg))
			if err != nil {
				return err
			}
			if err := up.LogOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func NewBlockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "block <user-id> [reason...]",
		Short: "Block a user and zero their scores on every game message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, opts, true, func(svc *game.Service) error {
				count, err := svc.Block(cmd.Context(), userID, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "blocked %d, zeroed %d sessions\n", userID, count)
				return nil
			})
		},
	}
}

func NewUnblockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <user-id>",
		Short: "Remove a user from the blocklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, opts, false, func(svc *game.Service) error {
				removed, err := svc.Unblock(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "%d was not blocked\n", userID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unblocked %d\n", userID)
				return nil
			})
		},
	}
}

func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <user-id>",
		Short: "Zero a user's scores on every game message they played",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, opts, true, func(svc *game.Service) error {
				count, err := svc.SweepUser(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "zeroed %d sessions for %d\n", count, userID)
				return nil
			})
		},
	}
}

// withService opens the store and, when needUpstream is set, the bot platform, for one
// operator command.
func withService(cmd *cobra.Command, opts *RootOptions, needUpstream bool, fn func(*game.Service) error) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	log := commandLogger(cmd, cfg)

	var up game.Upstream = offline{}
	if needUpstream {
		if up, err = opts.DialUpstream(cfg, log); err != nil {
			return err
		}
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(game.NewService(st, up, nil, log))
}

// offline stands in for the bot platform in commands that never reach it.
type offline struct{}

func (offline) SetScore(context.Context, int64, int64, model.Target, bool) error {
	return errOffline
}

func (offline) HighScores(context.Context, int64, model.Target) ([]model.HighScore, error) {
	return nil, errOffline
}
