package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/codehz/hz-game-bot/internal/game"
	"github.com/codehz/hz-game-bot/internal/model"
)

const scoreNotModified = "BOT_SCORE_NOT_MODIFIED"

// Client is the game backend as seen through the Telegram Bot API.
type Client struct {
	api *tgbotapi.BotAPI
	log *slog.Logger
}

// httpTimeout bounds every Bot API call. It must outlast the long-poll timeout of the update loop.
const httpTimeout = 90 * time.Second

// Dial connects to the Bot API. An empty endpoint uses the public Telegram server; otherwise
// it is a format string like tgbotapi.APIEndpoint.
func Dial(token, endpoint string, log *slog.Logger) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: httpTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return New(api, log), nil
}

func New(api *tgbotapi.BotAPI, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: api, log: log}
}

func (c *Client) API() *tgbotapi.BotAPI { return c.api }

// SetScore writes score for userID on the game message. The typed SetGameScoreConfig drops
// both the score key and force, so the request is built by hand.
func (c *Client) SetScore(ctx context.Context, userID, score int64, target model.Target, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("user_id", userID)
	params["score"] = strconv.FormatInt(score, 10)
	params.AddBool("force", force)
	addTarget(params, target)

	if _, err := c.api.MakeRequest("setGameScore", params); err != nil {
		if isScoreNotModified(err) {
			return fmt.Errorf("telegram: set game score: %w", game.ErrScoreNotModified)
		}
		return fmt.Errorf("telegram: set game score: %w", err)
	}
	return nil
}

func (c *Client) HighScores(ctx context.Context, userID int64, target model.Target) ([]model.HighScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := c.api.GetGameHighScores(tgbotapi.GetGameHighScoresConfig{
		UserID:          userID,
		InlineMessageID: target.InlineMessageID,
		ChatID:          target.ChatID,
		MessageID:       target.MessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: get game high scores: %w", err)
	}
	out := make([]model.HighScore, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.HighScore{
			Position: r.Position,
			User:     cachedUser(r.User),
			Score:    int64(r.Score),
		})
	}
	return out, nil
}

func (c *Client) ProfilePhotos(ctx context.Context, userID int64) (model.ProfilePhotos, error) {
	if err := ctx.Err(); err != nil {
		return model.ProfilePhotos{}, err
	}
	res, err := c.api.GetUserProfilePhotos(tgbotapi.NewUserProfilePhotos(userID))
	if err != nil {
		return model.ProfilePhotos{}, fmt.Errorf("telegram: get profile photos: %w", err)
	}
	out := model.ProfilePhotos{TotalCount: res.TotalCount, Photos: make([][]model.Photo, 0, len(res.Photos))}
	for _, sizes := range res.Photos {
		photo := make([]model.Photo, 0, len(sizes))
		for _, p := range sizes {
			photo = append(photo, model.Photo{
				FileID:       p.FileID,
				FileUniqueID: p.FileUniqueID,
				Width:        p.Width,
				Height:       p.Height,
				FileSize:     p.FileSize,
			})
		}
		out.Photos = append(out.Photos, photo)
	}
	return out, nil
}

// LogOut releases the bot from the cloud Bot API server so it can move to a local one.
func (c *Client) LogOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.LogOutConfig{}); err != nil {
		return fmt.Errorf("telegram: log out: %w", err)
	}
	return nil
}

func addTarget(params tgbotapi.Params, target model.Target) {
	if target.IsInline() {
		params["inline_message_id"] = target.InlineMessageID
		return
	}
	params.AddNonZero64("chat_id", target.ChatID)
	params.AddNonZero("message_id", target.MessageID)
}

func isScoreNotModified(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return strings.Contains(tgErr.Message, scoreNotModified)
	}
	return false
}

func cachedUser(u tgbotapi.User) model.CachedUser {
	return model.CachedUser{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     optional(u.LastName),
		Username:     optional(u.UserName),
		LanguageCode: optional(u.LanguageCode),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
