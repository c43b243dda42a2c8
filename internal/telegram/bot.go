package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/codehz/hz-game-bot/internal/auth"
	"github.com/codehz/hz-game-bot/internal/config"
	"github.com/codehz/hz-game-bot/internal/model"
)

const inlineCacheSeconds = 600

// UserSink records users the bot has seen.
type UserSink interface {
	RememberUser(ctx context.Context, u model.CachedUser)
}

// Bot answers inline queries with the game catalog and hands out play links.
type Bot struct {
	api     *tgbotapi.BotAPI
	codec   *auth.Codec
	catalog config.Catalog
	ttl     time.Duration
	users   UserSink
	log     *slog.Logger
}

func NewBot(api *tgbotapi.BotAPI, codec *auth.Codec, catalog config.Catalog, ttl time.Duration, users UserSink, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{api: api, codec: codec, catalog: catalog, ttl: ttl, users: users, log: log}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"inline_query", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.InlineQuery != nil:
		b.remember(ctx, update.InlineQuery.From)
		if err := b.answerInline(update.InlineQuery); err != nil {
			b.log.Error("answer inline query", "err", err)
		}
	case update.CallbackQuery != nil:
		b.remember(ctx, update.CallbackQuery.From)
		if err := b.answerCallback(update.CallbackQuery); err != nil {
			b.log.Error("answer callback query", "err", err)
		}
	}
}

func (b *Bot) answerInline(q *tgbotapi.InlineQuery) error {
	results := make([]interface{}, 0, len(b.catalog.Games))
	for _, g := range b.catalog.Games {
		results = append(results, tgbotapi.InlineQueryResultGame{
			Type:          "game",
			ID:            g.ID,
			GameShortName: g.ID,
		})
	}
	_, err := b.api.Request(tgbotapi.InlineConfig{
		InlineQueryID: q.ID,
		Results:       results,
		CacheTime:     inlineCacheSeconds,
		IsPersonal:    false,
	})
	return err
}

func (b *Bot) answerCallback(q *tgbotapi.CallbackQuery) error {
	if q.GameShortName == "" {
		_, err := b.api.Request(tgbotapi.NewCallback(q.ID, ""))
		return err
	}
	if !b.catalog.HasGame(q.GameShortName) {
		_, err := b.api.Request(tgbotapi.NewCallbackWithAlert(q.ID, "Unknown game"))
		return err
	}

	link, err := b.playLink(q)
	if err != nil {
		return err
	}
	_, err = b.api.Request(tgbotapi.CallbackConfig{CallbackQueryID: q.ID, URL: link})
	return err
}

func (b *Bot) playLink(q *tgbotapi.CallbackQuery) (string, error) {
	if q.From == nil {
		return "", fmt.Errorf("callback %s has no sender", q.ID)
	}
	p := auth.Payload{
		Game:    q.GameShortName,
		UserID:  q.From.ID,
		IsAdmin: b.catalog.IsAdmin(q.From.ID),
	}
	switch {
	case q.InlineMessageID != "":
		p.InlineMessageID = q.InlineMessageID
	case q.Message != nil && q.Message.Chat != nil:
		p.ChatID = q.Message.Chat.ID
		p.MessageID = q.Message.MessageID
	default:
		return "", fmt.Errorf("callback %s has no game message", q.ID)
	}

	token, err := b.codec.Sign(p, b.ttl)
	if err != nil {
		return "", err
	}
	return PlayURL(b.catalog.Base, token)
}

// PlayURL appends the capability token to the game page URL as the data parameter.
func PlayURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("data", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (b *Bot) remember(ctx context.Context, u *tgbotapi.User) {
	if u == nil || b.users == nil {
		return
	}
	b.users.RememberUser(ctx, cachedUser(*u))
}
