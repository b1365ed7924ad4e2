package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/appealbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// defaultPollTimeout is used when the config leaves the long poll wait unset.
const defaultPollTimeout = 10 * time.Second

// AllowedUpdates are the update types the bot subscribes to.
var AllowedUpdates = []string{"message", "callback_query"}

// WebhookOptions is the listener of webhook mode.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

func (w WebhookOptions) addr() string {
	return net.JoinHostPort(w.Listen, strconv.Itoa(w.Port))
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a webhook poller in webhook mode and a long poller
// otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         opts.Webhook.addr(),
			AllowedUpdates: AllowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	wait := defaultPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		wait = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: wait, AllowedUpdates: AllowedUpdates}
}

// pollTimeout is how long a getUpdates call may hang, zero for webhooks.
func pollTimeout(p tele.Poller) time.Duration {
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		return 0
	}
	return lp.Timeout
}
