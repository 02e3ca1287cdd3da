// Package telegram connects the bot controller to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	ridebot "github.com/mashawir/ridebot/internal/bot"
	"github.com/mashawir/ridebot/pkg/logger"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	Token         string
	Mode          string
	WebhookURL    string
	WebhookSecret string
}

// EventHandler consumes translated updates
type EventHandler interface {
	Handle(ctx context.Context, ev *ridebot.Event)
}

// Client owns the Bot API connection. Updates arriving before SetHandler are dropped.
type Client struct {
	bot     *tgbot.Bot
	cfg     Config
	logger  *logger.Logger
	handler EventHandler
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if cfg.Mode == ModeWebhook && cfg.WebhookURL == "" {
		return nil, errors.New("telegram: webhook mode needs a webhook URL")
	}

	c := &Client{cfg: cfg, logger: log}
	opts := []tgbot.Option{
		tgbot.WithDefaultHandler(c.onUpdate),
		tgbot.WithErrorsHandler(func(err error) {
			log.Warn("Telegram transport error", logger.Err(err))
		}),
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, tgbot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := tgbot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	c.bot = b
	return c, nil
}

func (c *Client) SetHandler(h EventHandler) {
	c.handler = h
}

// Messenger returns the outbound side of the connection
func (c *Client) Messenger() *Messenger {
	return NewMessenger(c.bot)
}

// WebhookHandler serves POSTed updates in webhook mode
func (c *Client) WebhookHandler() http.Handler {
	return c.bot.WebhookHandler()
}

// Run receives updates until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.Mode == ModeWebhook {
		_, err := c.bot.SetWebhook(ctx, &tgbot.SetWebhookParams{
			URL:         c.cfg.WebhookURL,
			SecretToken: c.cfg.WebhookSecret,
		})
		if err != nil {
			return fmt.Errorf("failed to register webhook: %w", err)
		}
		c.logger.Info("Receiving updates by webhook", logger.String("url", c.cfg.WebhookURL))
		c.bot.StartWebhook(ctx)
		return nil
	}

	if _, err := c.bot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		c.logger.Warn("Failed to delete webhook before polling", logger.Err(err))
	}
	c.logger.Info("Receiving updates by long polling")
	c.bot.Start(ctx)
	return nil
}

func (c *Client) onUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	ev, ok := Translate(update)
	if !ok {
		return
	}
	if c.handler == nil {
		c.logger.Warn("Dropping update, no handler set", logger.Int64("update_id", update.ID))
		return
	}
	c.handler.Handle(ctx, ev)
}
