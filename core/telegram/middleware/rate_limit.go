package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/appealbot/core/logger"
	tghelpers "github.com/m3rciful/appealbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// maxTrackedUsers bounds the per-user state of RateLimitMiddleware.
const maxTrackedUsers = 10000

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds that are never limited.
	Exclude map[string]struct{}
	// OnLimited runs for dropped updates.
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware drops updates that arrive sooner than opts.Interval
// after the previous accepted update of the same user. Album parts always
// pass.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	var mu sync.Mutex
	recent := expirable.NewLRU[int64, struct{}](maxTrackedUsers, nil, opts.Interval)

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			if _, skip := opts.Exclude[limitKind(c.Update())]; skip {
				return next(c)
			}
			if msg := c.Message(); msg != nil && msg.AlbumID != "" {
				return next(c)
			}

			mu.Lock()
			limited := recent.Contains(user.ID)
			if !limited {
				recent.Add(user.ID, struct{}{})
			}
			mu.Unlock()

			if !limited {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
