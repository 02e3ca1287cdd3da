// Package bot turns chat events into ride, payment and moderation operations.
package bot

import (
	"context"
	"strings"
)

// Kind is the type of an inbound chat event
type Kind string

const (
	KindCommand  Kind = "command"
	KindCallback Kind = "callback"
	KindText     Kind = "text"
	KindLocation Kind = "location"
	KindPhoto    Kind = "photo"
)

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Sender is the profile of the user behind an event
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Event is a transport neutral inbound update
type Event struct {
	Kind      Kind
	From      Sender
	ChatID    int64
	ChatType  ChatType
	MessageID int

	Text       string
	Data       string
	CallbackID string
	Latitude   float64
	Longitude  float64
	PhotoID    string
}

// IsGroup reports whether the event came from a group chat
func (e *Event) IsGroup() bool {
	return e.ChatType == ChatGroup || e.ChatType == ChatSupergroup
}

// Command splits a command message into its name and arguments.
// "/schedule@mashawir_bot 1 2" yields "/schedule" and ["1", "2"].
func (e *Event) Command() (string, []string) {
	fields := strings.Fields(e.Text)
	if len(fields) == 0 {
		return "", nil
	}
	name := fields[0]
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:]
}

// Button is an inline keyboard button carrying either callback data or a URL
type Button struct {
	Text string
	Data string
	URL  string
}

type Keyboard struct {
	Rows [][]Button
}

// Row appends a row of buttons
func (k *Keyboard) Row(buttons ...Button) *Keyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// Messenger is the outbound side of the chat transport
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb *Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Ban(ctx context.Context, chatID, userID int64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
