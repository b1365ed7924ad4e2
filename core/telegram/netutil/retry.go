// Package netutil classifies failed Bot API calls for logging and retries.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind labels a failure.
type Kind string

// Failure kinds.
const (
	KindTimeout Kind = "timeout"
	KindDNS     Kind = "dns"
	KindDial    Kind = "dial"
	KindReset   Kind = "reset"
	KindTLS     Kind = "tls"
	KindFlood   Kind = "flood"
	KindServer  Kind = "http_5xx"
	KindClient  Kind = "http_4xx"
	KindUnknown Kind = "unknown"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify returns the Kind of err, or "" for nil.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindReset
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return KindTLS
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindFlood
	}
	switch code := StatusCode(err); {
	case code == http.StatusTooManyRequests:
		return KindFlood
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindClient
	}
	return KindUnknown
}

// ShouldRetry reports whether repeating the call may succeed.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindDial, KindReset, KindFlood, KindServer:
		return true
	}
	return false
}

// RetryAfter is the wait Telegram asked for in a flood error, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// StatusCode extracts the HTTP status carried by a Bot API error. Errors
// telebot does not map to a type end with the code in parentheses.
func StatusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	if err == nil {
		return 0
	}
	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndexByte(msg, '(')
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}

// Redact renders err with bot tokens masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
