package middleware

import (
	"github.com/m3rciful/appealbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// Update kinds used by metrics and rate limit exclusions.
const (
	KindCallback    = "callback"
	KindCommand     = "command"
	KindMessage     = "message"
	KindMedia       = "media"
	KindInlineQuery = "inline_query"
	KindOther       = "other"
)

// UpdateKind classifies an update for metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		m := upd.Message
		switch {
		case m.Photo != nil || m.Video != nil || m.Voice != nil || m.VideoNote != nil || m.Document != nil:
			return KindMedia
		case len(m.Text) > 0 && m.Text[0] == '/':
			return KindCommand
		}
		return KindMessage
	case upd.Query != nil:
		return KindInlineQuery
	}
	return KindOther
}

// limitKind folds UpdateKind onto the kinds rate limit exclusions know about.
func limitKind(upd tele.Update) string {
	switch k := UpdateKind(upd); k {
	case KindCommand, KindMedia:
		return KindMessage
	default:
		return k
	}
}

// UpdateMetricsMiddleware counts inbound updates by kind.
func UpdateMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.Updates.WithLabelValues(UpdateKind(c.Update())).Inc()
		return next(c)
	}
}
