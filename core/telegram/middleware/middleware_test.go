package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/appealbot/core/logger"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func newCtx(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(upd)
}

func textUpdate(id int, userID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}}
}

func TestRateLimitDropsBurstsPerUser(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Minute,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(newCtx(t, textUpdate(1, 10, "a"))))
	require.NoError(t, h(newCtx(t, textUpdate(2, 10, "b"))))
	require.NoError(t, h(newCtx(t, textUpdate(3, 11, "c"))))

	album := textUpdate(4, 10, "")
	album.Message.AlbumID = "g1"
	require.NoError(t, h(newCtx(t, album)))

	require.Equal(t, 3, handled)
	require.Equal(t, 1, limited)
}

func TestRateLimitExcludesKinds(t *testing.T) {
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Minute,
		Exclude:  map[string]struct{}{KindCallback: {}},
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	cb := func(id int) tele.Update {
		return tele.Update{ID: id, Callback: &tele.Callback{ID: "q", Sender: &tele.User{ID: 5}}}
	}
	require.NoError(t, h(newCtx(t, cb(1))))
	require.NoError(t, h(newCtx(t, cb(2))))
	require.Equal(t, 2, handled)
}

func TestRateLimitDisabled(t *testing.T) {
	next := func(tele.Context) error { return errors.New("next") }
	h := RateLimitMiddleware(RateLimitOptions{})(next)
	require.EqualError(t, h(newCtx(t, textUpdate(1, 1, "x"))), "next")
	require.EqualError(t, h(newCtx(t, textUpdate(2, 1, "x"))), "next")
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	var got context.Context
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		got = ctx
		return nil
	})
	require.NoError(t, h(newCtx(t, textUpdate(42, 7, "hi"))))
	require.Equal(t, logger.Meta{RID: "16.7.7", UpdateID: 42, UserID: 7, ChatID: 7}, logger.MetaFrom(got))
}

func TestSeenUpdates(t *testing.T) {
	s := newSeenUpdates(8, time.Minute)
	require.True(t, s.first(1))
	require.False(t, s.first(1))
	require.True(t, s.first(2))
}

func TestUpdateKind(t *testing.T) {
	require.Equal(t, KindCommand, UpdateKind(textUpdate(1, 1, "/start")))
	require.Equal(t, KindMessage, UpdateKind(textUpdate(1, 1, "hello")))
	media := textUpdate(1, 1, "")
	media.Message.Photo = &tele.Photo{}
	require.Equal(t, KindMedia, UpdateKind(media))
	require.Equal(t, KindMessage, limitKind(media))
	require.Equal(t, KindOther, UpdateKind(tele.Update{}))
}

func TestRecoverSwallowsPanics(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	require.NotPanics(t, func() { require.NoError(t, h(newCtx(t, textUpdate(1, 1, "x")))) })
}
