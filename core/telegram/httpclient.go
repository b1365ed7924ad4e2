package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/appealbot/core/buildinfo"
	"github.com/m3rciful/appealbot/core/telegram/netutil"
)

// HTTPClientOptions tunes BuildHTTPClient. Zero values take defaults.
type HTTPClientOptions struct {
	// PollTimeout is the long polling wait. getUpdates holds the response
	// for that long, so header and request timeouts are stretched past it.
	PollTimeout time.Duration
	// Retries is the number of repeats after a connection level failure.
	Retries int
	Backoff time.Duration
}

// BuildHTTPClient returns the client used for Bot API calls. Requests that
// fail before a response arrives are retried when their body can be replayed.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.PollTimeout + 10*time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: opts.PollTimeout + 30*time.Second,
		Transport: &retryTransport{
			base:      base,
			userAgent: "appealbot/" + buildinfo.Version,
			retries:   opts.Retries,
			backoff:   opts.Backoff,
		},
	}
}

type retryTransport struct {
	base      http.RoundTripper
	userAgent string
	retries   int
	backoff   time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		try := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			try = req.Clone(req.Context())
			try.Body = body
		}
		resp, err := t.base.RoundTrip(try)
		if err == nil || !replayable || attempt == t.retries || !connectionFailure(err) {
			return resp, err
		}
		timer := time.NewTimer(t.backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

func connectionFailure(err error) bool {
	switch netutil.Classify(err) {
	case netutil.KindTimeout, netutil.KindDial, netutil.KindReset:
		return true
	}
	return false
}
