package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/appealbot/internal/store"
)

// walkToPolice runs a registered user through category, address and body.
func (h *harness) walkToPolice(uid int64, body string) (summaryMsg int) {
	h.t.Helper()
	h.dispatch(h.press(uid, 0, cbAppealStart, ""))
	require.Equal(h.t, StateCategory, h.state(uid))
	summaryMsg = h.tr.lastSent().id

	h.dispatch(h.press(uid, summaryMsg, cbCategory, "0"))
	require.Equal(h.t, StateAddress, h.state(uid))

	h.dispatch(h.text(uid, "5th Ave"))
	require.Equal(h.t, StateBody, h.state(uid))

	h.dispatch(h.text(uid, body))
	require.Equal(h.t, StatePolice, h.state(uid))
	return summaryMsg
}

func TestAppealHappyPath(t *testing.T) {
	h := newHarness(t)
	h.register(userID)

	summary := h.walkToPolice(userID, "My bike was stolen")
	require.Equal(t, textContactPolice, h.tr.lastSent().text)
	policePrompt := h.tr.lastSent().id

	h.dispatch(h.press(userID, policePrompt, cbPoliceSkip, ""))

	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	a := appeals[0]
	require.Equal(t, "Theft", a.Category)
	require.Equal(t, "5th Ave", a.Address)
	require.Equal(t, "My bike was stolen", a.Body)
	require.Equal(t, textNoPolice, a.Police)
	require.Empty(t, a.Attachments)
	require.Equal(t, store.AppealStatusNew, a.Status)

	require.Equal(t, textBodyEnd, h.tr.lastSent().text)
	last := h.tr.lastEdit()
	require.Equal(t, summary, last.id)
	require.Equal(t, "*Category:* Theft\n*Address:* 5th Ave\n*Police:* Did not contact police", last.text)
	require.True(t, h.tr.wasDeleted(policePrompt))
	require.False(t, h.sessions.InProgress(userID))
}

func TestAppealPoliceText(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.walkToPolice(userID, "Window broken")

	h.dispatch(h.text(userID, "Called 911, case #42"))

	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	require.Equal(t, "Called 911, case #42", appeals[0].Police)
}

func TestAppealFinalizeOnce(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.walkToPolice(userID, "Noise at night")
	prompt := h.tr.lastSent().id

	h.dispatch(h.press(userID, prompt, cbPoliceSkip, ""))
	h.dispatch(h.press(userID, prompt, cbPoliceSkip, ""))
	h.dispatch(h.text(userID, "late answer"))

	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	require.Equal(t, textExpired, h.tr.lastToast())
}

func TestAppealBannedBeforeFinalize(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.walkToPolice(userID, "Fraud attempt")

	_, err := h.mem.BanUser(context.Background(), userID, store.BanOpts{TermDays: 7, ActorID: modID})
	require.NoError(t, err)
	h.dispatch(h.text(userID, "no"))

	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, appeals)
	require.False(t, h.sessions.InProgress(userID))
}

func TestAppealBannedAtStart(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	_, err := h.mem.BanUser(context.Background(), userID, store.BanOpts{TermDays: 1, ActorID: modID})
	require.NoError(t, err)

	h.dispatch(h.press(userID, 0, cbAppealStart, ""))

	require.True(t, strings.HasPrefix(h.tr.lastSent().text, "⛔ You are banned until"))
	require.False(t, h.sessions.InProgress(userID))
}

func TestAppealEmptyBodyIsNotStored(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.walkToPolice(userID, "")
	h.dispatch(h.text(userID, "no"))

	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, appeals)
}

func TestAppealBackNavigation(t *testing.T) {
	h := newHarness(t)
	h.register(userID)

	h.dispatch(h.press(userID, 0, cbAppealStart, ""))
	summary := h.tr.lastSent().id

	// Back on the category step has nothing to return to.
	sent := len(h.tr.sent)
	h.dispatch(h.press(userID, summary, cbAppealBack, ""))
	require.Equal(t, StateCategory, h.state(userID))
	require.Len(t, h.tr.sent, sent)

	h.dispatch(h.press(userID, summary, cbCategory, "2"))
	addressPrompt := h.tr.lastSent().id
	h.dispatch(h.press(userID, addressPrompt, cbAppealBack, ""))
	require.Equal(t, StateCategory, h.state(userID))
	require.True(t, h.tr.wasDeleted(summary))
	require.Empty(t, h.sessions.GetTempString(userID, keyCategory))

	summary = h.tr.lastSent().id
	h.dispatch(h.press(userID, summary, cbCategory, "1"))
	h.dispatch(h.text(userID, "Main St 1"))
	require.Equal(t, StateBody, h.state(userID))
	bodyPrompt := h.tr.lastSent().id

	h.dispatch(h.press(userID, bodyPrompt, cbAppealBack, ""))
	require.Equal(t, StateAddress, h.state(userID))
	require.Empty(t, h.sessions.GetTempString(userID, keyAddress))
	require.Equal(t, "*Category:* Vandalism", h.tr.lastEdit().text)

	h.dispatch(h.text(userID, "Main St 2"))
	body := h.text(userID, "Graffiti on the wall")
	h.dispatch(body)
	require.Equal(t, StatePolice, h.state(userID))
	policePrompt := h.tr.lastSent().id

	h.dispatch(h.press(userID, policePrompt, cbAppealBack, ""))
	require.Equal(t, StateBody, h.state(userID))
	require.True(t, h.tr.wasDeleted(body.MessageID))
	require.Empty(t, h.sessions.GetTempString(userID, keyBody))

	h.dispatch(h.text(userID, "Graffiti, again"))
	h.dispatch(h.text(userID, "no"))
	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	require.Equal(t, "Vandalism", appeals[0].Category)
	require.Equal(t, "Main St 2", appeals[0].Address)
	require.Equal(t, "Graffiti, again", appeals[0].Body)
}

func TestAppealBackOutsideFlow(t *testing.T) {
	h := newHarness(t)
	h.dispatch(h.press(userID, 5, cbAppealBack, ""))
	require.Empty(t, h.tr.sent)
	require.False(t, h.sessions.InProgress(userID))
}

func TestAppealStaleCategory(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.dispatch(h.press(userID, 0, cbAppealStart, ""))

	h.dispatch(h.press(userID, 7, cbCategory, "99"))
	require.Equal(t, StateCategory, h.state(userID))
	require.Equal(t, textExpired, h.tr.lastToast())
}

func TestAppealAlbumBody(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.dispatch(h.press(userID, 0, cbAppealStart, ""))
	h.dispatch(h.press(userID, h.tr.lastSent().id, cbCategory, "0"))
	h.dispatch(h.text(userID, "Station square"))
	require.Equal(t, StateBody, h.state(userID))

	ctx := context.Background()
	parts := []Event{
		h.media(userID, "grp-1", "", Photo, "photo-a"),
		h.media(userID, "grp-1", "Two men took my bag", Video, "video-b"),
		h.media(userID, "grp-1", "ignored caption", Photo, "photo-c"),
	}
	for _, ev := range parts {
		require.NoError(t, h.engine.Handle(ctx, ev))
	}
	require.Eventually(t, func() bool {
		return h.state(userID) == StatePolice
	}, time.Second, 5*time.Millisecond)

	require.ElementsMatch(t,
		[]int{parts[0].MessageID, parts[1].MessageID, parts[2].MessageID},
		h.engine.tempInts(userID, keyBodyMsgs))

	h.dispatch(h.text(userID, "no"))
	appeals, err := h.mem.ListAppeals(ctx, userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	require.Equal(t, "Two men took my bag", appeals[0].Body)

	links := strings.Split(appeals[0].Attachments, "\n")
	require.Len(t, links, 3)
	require.Equal(t, "https://files.example.org:8443/"+store.HashLink("photo-a"), links[0])
	for _, l := range links {
		hash := strings.TrimPrefix(l, "https://files.example.org:8443/")
		_, err := h.mem.GetHashLink(ctx, hash)
		require.NoError(t, err)
	}
}

func TestAppealMediaOnlyBody(t *testing.T) {
	h := newHarness(t)
	h.register(userID)
	h.dispatch(h.press(userID, 0, cbAppealStart, ""))
	h.dispatch(h.press(userID, h.tr.lastSent().id, cbCategory, "3"))
	h.dispatch(h.text(userID, "Park"))

	h.dispatch(h.media(userID, "", "", Voice, "voice-1"))
	h.dispatch(h.text(userID, "no"))

	appeals, err := h.mem.ListAppeals(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	require.Empty(t, appeals[0].Body)
	require.Equal(t, "https://files.example.org:8443/"+store.HashLink("voice-1"), appeals[0].Attachments)
}

func TestSummaryEscapesMarkdown(t *testing.T) {
	d := draft{category: "Other", address: "Kings_Rd *3*"}
	require.Equal(t, "*Category:* Other\n*Address:* Kings\\_Rd \\*3\\*", d.summary())
}
