// Package format escapes user supplied text for Telegram's legacy Markdown
// parse mode, which every bot message uses.
package format

import "strings"

var mdEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// Markdown escapes the entity markers of legacy Markdown so text renders as is.
func Markdown(text string) string {
	return mdEscaper.Replace(text)
}

// Code wraps text in an inline code span. Legacy Markdown has no escape
// inside code, so backticks are dropped.
func Code(text string) string {
	return "`" + strings.ReplaceAll(text, "`", "") + "`"
}
