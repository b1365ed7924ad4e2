package logger

import (
	"log/slog"
	"strings"
	"time"
)

// Status is "ok" for a nil error and "error" otherwise.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// Took is the time elapsed since start, rounded by RoundMS.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to whole milliseconds. Negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// List renders values as <key>_total plus a comma separated <key>_preview of
// at most limit entries. <key>_truncated is added when entries were left out.
func List(key string, values []string, limit int) []slog.Attr {
	attrs := []slog.Attr{slog.Int(key+"_total", len(values))}
	if len(values) == 0 {
		return attrs
	}
	shown := values[:min(max(limit, 0), len(values))]
	if len(shown) > 0 {
		attrs = append(attrs, slog.String(key+"_preview", strings.Join(shown, ", ")))
	}
	if len(shown) < len(values) {
		attrs = append(attrs, slog.Bool(key+"_truncated", true))
	}
	return attrs
}
