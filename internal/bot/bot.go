package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kassabot/internal/logging"
)

// Bot runs the Telegram long-polling loop and feeds updates to the handler.
// The webhook server is the alternative transport for the same handler.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	log     logging.Logger
}

// Connect authenticates against the Telegram API with the given token.
func Connect(token string, logger logging.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	if logger != nil {
		logger.Info("connected to telegram",
			logging.Field{Key: "username", Value: api.Self.UserName})
	}
	return api, nil
}

// New creates a polling bot around an authenticated API client.
func New(api *tgbotapi.BotAPI, handler *Handler, logger logging.Logger) *Bot {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Bot{api: api, handler: handler, log: logger}
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handler.HandleUpdate(ctx, update); err != nil {
				b.log.WithError(err).Error("update handling failed")
			}
		}
	}
}
