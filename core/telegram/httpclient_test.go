package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/appealbot/core/config"

	tele "gopkg.in/telebot.v4"
)

type flakyTransport struct {
	fails  int
	calls  int
	bodies []string
	agents []string
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	f.agents = append(f.agents, req.Header.Get("User-Agent"))
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	if f.calls <= f.fails {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestRetryTransportReplaysBody(t *testing.T) {
	base := &flakyTransport{fails: 2}
	rt := &retryTransport{base: base, userAgent: "appealbot/test", retries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, base.calls)
	require.Equal(t, []string{`{"a":1}`, `{"a":1}`, `{"a":1}`}, base.bodies)
	require.Equal(t, []string{"appealbot/test", "appealbot/test", "appealbot/test"}, base.agents)
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &flakyTransport{fails: 10}
	rt := &retryTransport{base: base, retries: 1, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	require.Equal(t, 2, base.calls)
}

func TestRetryTransportSkipsOneShotBodies(t *testing.T) {
	base := &flakyTransport{fails: 1}
	rt := &retryTransport{base: base, retries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendPhoto", io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	require.Equal(t, 1, base.calls)
}

func TestBuildHTTPClientOutlastsLongPoll(t *testing.T) {
	client := BuildHTTPClient(HTTPClientOptions{PollTimeout: 25 * time.Second})
	require.Greater(t, client.Timeout, 25*time.Second)
	rt, ok := client.Transport.(*retryTransport)
	require.True(t, ok)
	base, ok := rt.base.(*http.Transport)
	require.True(t, ok)
	require.Greater(t, base.ResponseHeaderTimeout, 25*time.Second)
}

func TestBuildPoller(t *testing.T) {
	lp, ok := BuildPoller(PollerOptions{}).(*tele.LongPoller)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, lp.Timeout)
	require.Equal(t, 10*time.Second, pollTimeout(lp))

	wh, ok := BuildPoller(PollerOptions{
		RunMode: coreconfig.RunModeWebhook,
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8080, URL: "https://bot.example.com/hook"},
	}).(*tele.Webhook)
	require.True(t, ok)
	require.Equal(t, "0.0.0.0:8080", wh.Listen)
	require.Zero(t, pollTimeout(wh))
}
