package telegram

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	ridebot "github.com/mashawir/ridebot/internal/bot"
)

var _ ridebot.Messenger = (*Messenger)(nil)

// Messenger sends controller output through the Bot API
type Messenger struct {
	bot *tgbot.Bot
}

func NewMessenger(b *tgbot.Bot) *Messenger {
	return &Messenger{bot: b}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, text string, kb *ridebot.Keyboard) error {
	_, err := m.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup(kb),
	})
	return err
}

func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, text string, kb *ridebot.Keyboard) error {
	_, err := m.bot.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: markup(kb),
	})
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb *ridebot.Keyboard) error {
	_, err := m.bot.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:      chatID,
		Photo:       &models.InputFileString{Data: fileID},
		Caption:     caption,
		ReplyMarkup: markup(kb),
	})
	return err
}

func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	_, err := m.bot.DeleteMessage(ctx, &tgbot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	return err
}

func (m *Messenger) Ban(ctx context.Context, chatID, userID int64) error {
	_, err := m.bot.BanChatMember(ctx, &tgbot.BanChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	return err
}

func (m *Messenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := m.bot.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return err
}
