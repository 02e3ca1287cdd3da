package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/internal/service/moderation"
	"github.com/mashawir/ridebot/internal/service/payments"
	"github.com/mashawir/ridebot/internal/service/pricing"
	"github.com/mashawir/ridebot/internal/service/rides"
	"github.com/mashawir/ridebot/internal/service/subscriptions"
	"github.com/mashawir/ridebot/internal/session"
	"github.com/mashawir/ridebot/internal/storage/memory"
	"github.com/mashawir/ridebot/pkg/logger"
)

const (
	adminID   int64 = 1000
	adminChat int64 = -500
	groupChat int64 = -900
)

var (
	client   = Sender{ID: 10, FirstName: "Sara", Username: "sara"}
	captain  = Sender{ID: 20, FirstName: "Omar"}
	captain2 = Sender{ID: 21, FirstName: "Khalid"}
	admin    = Sender{ID: adminID, FirstName: "Admin"}
)

type outMsg struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
	FileID    string
	Keyboard  *Keyboard
}

// buttons returns the callback payloads of the message keyboard
func (m outMsg) buttons() []string {
	if m.Keyboard == nil {
		return nil
	}
	var out []string
	for _, row := range m.Keyboard.Rows {
		for _, b := range row {
			if b.Data != "" {
				out = append(out, b.Data)
			}
		}
	}
	return out
}

func (m outMsg) button(prefix string) string {
	for _, d := range m.buttons() {
		if strings.HasPrefix(d, prefix) {
			return d
		}
	}
	return ""
}

type banCall struct {
	ChatID int64
	UserID int64
}

type fakeMessenger struct {
	mu      sync.Mutex
	out     []outMsg
	deleted []int
	bans    []banCall
	banErr  error
}

func (f *fakeMessenger) record(m outMsg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, m)
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, kb *Keyboard) error {
	f.record(outMsg{Op: "send", ChatID: chatID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeMessenger) Edit(_ context.Context, chatID int64, messageID int, text string, kb *Keyboard) error {
	f.record(outMsg{Op: "edit", ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, fileID, caption string, kb *Keyboard) error {
	f.record(outMsg{Op: "photo", ChatID: chatID, FileID: fileID, Text: caption, Keyboard: kb})
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) Ban(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banErr != nil {
		return f.banErr
	}
	f.bans = append(f.bans, banCall{ChatID: chatID, UserID: userID})
	return nil
}

func (f *fakeMessenger) AnswerCallback(context.Context, string, string) error {
	return nil
}

// to returns the messages sent or edited in a chat
func (f *fakeMessenger) to(chatID int64) []outMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outMsg
	for _, m := range f.out {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) last(t *testing.T, chatID int64) outMsg {
	t.Helper()
	msgs := f.to(chatID)
	require.NotEmpty(t, msgs, "no message for chat %d", chatID)
	return msgs[len(msgs)-1]
}

type harness struct {
	ctrl     *Controller
	msg      *fakeMessenger
	store    *memory.Store
	subs     *subscriptions.Service
	sessions session.Store
	feed     *activity.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewNop()
	store := memory.New(memory.WithBannedWords("مسيار"))
	feed := &activity.Recorder{}

	prices := pricing.NewService(pricing.Config{BaseFare: 10, PerKMRate: 2, MinimumFare: 15, FlatFare: 25, Currency: "SAR"})
	subs := subscriptions.NewService(store.Subscriptions, subscriptions.Config{
		WeeklyPrice: 50, WeeklyDays: 7, MonthlyPrice: 150, MonthlyDays: 30, ApprovalDays: 30, Currency: "SAR",
	}, log)
	mod := moderation.NewService(store.Moderation, moderation.DefaultConfig(), nil, log)
	require.NoError(t, mod.Reload(context.Background()))

	msg := &fakeMessenger{}
	sessions := session.NewMemoryStore(0)
	ctrl := New(Config{AdminUserID: adminID, AdminChatID: adminChat, RenewURL: "https://t.me/renew", Currency: "SAR"}, Deps{
		Messenger:     msg,
		Sessions:      sessions,
		Users:         store.Users,
		Stats:         store.Stats,
		Rides:         rides.NewService(store.Rides, store.Ratings, prices, feed, log),
		Subscriptions: subs,
		Payments:      payments.NewService(store.Payments, store.Rides, subs, prices, feed, nil, log),
		Moderation:    mod,
		Feed:          feed,
		Logger:        log,
	})

	return &harness{ctrl: ctrl, msg: msg, store: store, subs: subs, sessions: sessions, feed: feed}
}

func (h *harness) handle(ev *Event) {
	h.ctrl.Handle(context.Background(), ev)
}

func (h *harness) tap(from Sender, data string) {
	h.handle(&Event{Kind: KindCallback, From: from, ChatID: from.ID, ChatType: ChatPrivate, MessageID: 1, CallbackID: "cb", Data: data})
}

func (h *harness) say(from Sender, text string) {
	h.handle(&Event{Kind: KindText, From: from, ChatID: from.ID, ChatType: ChatPrivate, MessageID: 2, Text: text})
}

func (h *harness) command(from Sender, text string) {
	h.handle(&Event{Kind: KindCommand, From: from, ChatID: from.ID, ChatType: ChatPrivate, MessageID: 3, Text: text})
}

func (h *harness) subscribe(t *testing.T, who Sender) {
	t.Helper()
	h.tap(who, cbCaptainMenu)
	_, err := h.subs.Subscribe(context.Background(), who.ID, 7, nil, "cash", nil)
	require.NoError(t, err)
}

// requestRide runs the text dialog and returns the new ride id
func (h *harness) requestRide(t *testing.T) int64 {
	t.Helper()
	h.tap(client, cbClientMenu)
	h.tap(client, cbRequestRide)
	h.say(client, "Gate 3")
	h.say(client, "Terminal B")

	list, err := h.store.Rides.ListByUser(context.Background(), client.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0].ID
}
