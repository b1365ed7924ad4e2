package router

import (
	tg "github.com/m3rciful/appealbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation a user may be in the middle of.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text, media and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownMedia    tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// MediaEndpoints lists the media updates forwarded to the conversation.
var MediaEndpoints = []string{tele.OnPhoto, tele.OnVideo, tele.OnVoice, tele.OnVideoNote}

// TextRoutes builds handlers for plain text, media and documents. Updates of
// a user with an active conversation go to the FSM, the rest to fallbacks.
func TextRoutes(fsmMgr FSM, opts TextOptions) []tg.Route {
	forward := func(kind string, fallback tele.HandlerFunc) tele.HandlerFunc {
		return guard(func(c tele.Context) error {
			if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
				return routed(c, "fsm."+kind, fsmMgr.ManagerHandler)
			}
			return routed(c, "unexpected."+kind, fallback)
		})
	}

	routes := []tg.Route{
		{Endpoint: tele.OnText, Handler: forward("text", opts.UnknownText)},
		{Endpoint: tele.OnDocument, Handler: forward("document", opts.UnknownDocument)},
	}
	media := forward("media", opts.UnknownMedia)
	for _, ep := range MediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: media})
	}
	return routes
}
