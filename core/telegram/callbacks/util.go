// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseData splits Telebot's \f<unique>|<payload> encoding.
func ParseData(data string) (string, string) {
	raw := strings.TrimPrefix(data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// ParseCallbackData returns unique and payload of cb, either may be empty.
// Telebot strips the unique from Data when it routed by it.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseData(cb.Data)
}
