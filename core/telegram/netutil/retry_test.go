package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	dial := &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	for name, tc := range map[string]struct {
		err   error
		kind  Kind
		retry bool
	}{
		"deadline":  {fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout, true},
		"dns":       {&net.DNSError{Err: "no such host", Name: "api.telegram.org"}, KindDNS, false},
		"dial":      {dial, KindDial, true},
		"reset":     {fmt.Errorf("read: %w", syscall.ECONNRESET), KindReset, true},
		"api 400":   {&tele.Error{Code: 400, Description: "Bad Request: message to delete not found"}, KindClient, false},
		"api 502":   {&tele.Error{Code: 502, Description: "Bad Gateway"}, KindServer, true},
		"untyped":   {errors.New("telegram: Internal Server Error (500)"), KindServer, true},
		"no status": {errors.New("telegram: strange (x)"), KindUnknown, false},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.kind, Classify(tc.err))
			require.Equal(t, tc.retry, ShouldRetry(tc.err))
		})
	}
	require.Empty(t, Classify(nil))
	require.False(t, ShouldRetry(nil))
}

func TestRetryAfter(t *testing.T) {
	require.Zero(t, RetryAfter(errors.New("x")))
	require.Zero(t, RetryAfter(nil))
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AAE-x_y/sendMessage": EOF`)
	require.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, Redact(err))
	require.Empty(t, Redact(nil))
}
