package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	ridebot "github.com/mashawir/ridebot/internal/bot"
)

// Translate converts an update into a controller event. Updates the bot does not act on report false.
func Translate(u *models.Update) (*ridebot.Event, bool) {
	if u == nil {
		return nil, false
	}

	if q := u.CallbackQuery; q != nil {
		ev := &ridebot.Event{
			Kind:       ridebot.KindCallback,
			From:       sender(&q.From),
			CallbackID: q.ID,
			Data:       q.Data,
			ChatID:     q.From.ID,
			ChatType:   ridebot.ChatPrivate,
		}
		if m := q.Message.Message; m != nil {
			ev.ChatID = m.Chat.ID
			ev.ChatType = chatType(m.Chat.Type)
			ev.MessageID = m.ID
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.From == nil {
		return nil, false
	}
	ev := &ridebot.Event{
		From:      sender(m.From),
		ChatID:    m.Chat.ID,
		ChatType:  chatType(m.Chat.Type),
		MessageID: m.ID,
	}

	switch {
	case m.Location != nil:
		ev.Kind = ridebot.KindLocation
		ev.Latitude = m.Location.Latitude
		ev.Longitude = m.Location.Longitude
	case len(m.Photo) > 0:
		// sizes are ascending; keep the largest
		ev.Kind = ridebot.KindPhoto
		ev.PhotoID = m.Photo[len(m.Photo)-1].FileID
		ev.Text = m.Caption
	case strings.HasPrefix(m.Text, "/"):
		ev.Kind = ridebot.KindCommand
		ev.Text = m.Text
	case m.Text != "":
		ev.Kind = ridebot.KindText
		ev.Text = m.Text
	default:
		return nil, false
	}
	return ev, true
}

func sender(u *models.User) ridebot.Sender {
	return ridebot.Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func chatType(t models.ChatType) ridebot.ChatType {
	switch string(t) {
	case "group":
		return ridebot.ChatGroup
	case "supergroup":
		return ridebot.ChatSupergroup
	case "channel":
		return ridebot.ChatChannel
	}
	return ridebot.ChatPrivate
}

// markup converts a keyboard; a nil keyboard must stay a nil interface
func markup(kb *ridebot.Keyboard) models.ReplyMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Data,
				URL:          b.URL,
			})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
