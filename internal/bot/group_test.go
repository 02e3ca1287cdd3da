package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/activity"
)

func (h *harness) post(from Sender, messageID int, text string) {
	h.handle(&Event{Kind: KindText, From: from, ChatID: groupChat, ChatType: ChatSupergroup, MessageID: messageID, Text: text})
}

// TestGroup_BanOnceAtThirdWarning tests that repeated violations ban exactly once
func TestGroup_BanOnceAtThirdWarning(t *testing.T) {
	h := newHarness(t)
	spammer := Sender{ID: 77, FirstName: "Spam"}

	for i := 1; i <= 4; i++ {
		h.post(spammer, 100+i, "ابحث عن مسيار")
	}

	assert.Equal(t, []int{101, 102, 103, 104}, h.msg.deleted)
	require.Len(t, h.msg.bans, 1)
	assert.Equal(t, banCall{ChatID: groupChat, UserID: spammer.ID}, h.msg.bans[0])

	msgs := h.msg.to(groupChat)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Text, "Warning 1 of 3")
	assert.Contains(t, msgs[1].Text, "Warning 2 of 3")
	assert.Contains(t, msgs[2].Text, "removed from the group after 3 warnings")
	assert.Equal(t, []activity.Kind{activity.UserBanned}, h.feed.Kinds())
}

func TestGroup_FailedBanRetriedOnNextViolation(t *testing.T) {
	h := newHarness(t)
	spammer := Sender{ID: 78, FirstName: "Spam"}

	h.msg.banErr = errors.New("not enough rights")
	for i := 1; i <= 3; i++ {
		h.post(spammer, 200+i, "ابحث عن مسيار")
	}
	assert.Empty(t, h.msg.bans)
	assert.Empty(t, h.feed.Kinds())

	h.msg.banErr = nil
	h.post(spammer, 204, "ابحث عن مسيار")
	require.Len(t, h.msg.bans, 1)
	assert.Contains(t, h.msg.last(t, groupChat).Text, "removed from the group after 4 warnings")
	assert.Equal(t, []activity.Kind{activity.UserBanned}, h.feed.Kinds())
}

func TestGroup_CleanAndAdminMessagesPass(t *testing.T) {
	h := newHarness(t)

	h.post(client, 1, "Anyone heading to the Haram after Asr?")
	h.post(admin, 2, "Visit https://example.com for the rules")

	assert.Empty(t, h.msg.deleted)
	assert.Empty(t, h.msg.to(groupChat))
}

func TestGroup_PromoLinkDeleted(t *testing.T) {
	h := newHarness(t)

	h.post(client, 5, "join t.me/othergroup")
	assert.Equal(t, []int{5}, h.msg.deleted)
}

// TestGroup_BannedWordAddRemove tests that admin word changes apply to the next message
func TestGroup_BannedWordAddRemove(t *testing.T) {
	h := newHarness(t)

	h.post(client, 1, "cheap spamword deals")
	assert.Empty(t, h.msg.deleted)

	h.command(admin, "/addword SpamWord")
	assert.Equal(t, `Added "spamword" to the banned words.`, h.msg.last(t, admin.ID).Text)
	h.command(admin, "/addword spamword")
	assert.Equal(t, "That word is already banned.", h.msg.last(t, admin.ID).Text)

	h.command(admin, "/words")
	assert.Contains(t, h.msg.last(t, admin.ID).Text, "spamword")

	h.post(client, 2, "cheap spamword deals")
	assert.Equal(t, []int{2}, h.msg.deleted)

	h.command(admin, "/removeword spamword")
	assert.Equal(t, `Removed "spamword" from the banned words.`, h.msg.last(t, admin.ID).Text)
	h.command(admin, "/removeword spamword")
	assert.Equal(t, "That word is not in the banned list.", h.msg.last(t, admin.ID).Text)

	h.post(client, 3, "cheap spamword deals")
	assert.Equal(t, []int{2}, h.msg.deleted)
}
