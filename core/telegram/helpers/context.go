// Package helpers carries request-scoped state between telebot middlewares and handlers.
package helpers

import (
	"context"

	"github.com/m3rciful/appealbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxSlot = "appealbot.ctx"

// StoreContext keeps ctx on c for later handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxSlot, ctx)
	}
}

// ContextFrom returns the context kept by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxSlot).(context.Context)
	return ctx, ok && ctx != nil
}

// UpdateIDs returns the update id together with the sender and chat ids,
// zero when absent.
func UpdateIDs(c tele.Context) (updateID int, userID, chatID int64) {
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}

// BuildContext returns the context of the update behind c, creating and
// storing it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	updateID, userID, chatID := UpdateIDs(c)
	ctx := logger.WithUpdate(context.Background(), updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler names the handler on the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	StoreContext(c, ctx)
	return ctx
}
