// Package keyboard builds inline keyboards from plain button descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one inline button. A button with URL set opens the link
// instead of sending a callback.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// Row groups buttons into one keyboard row.
func Row(btns ...InlineBtn) []InlineBtn { return btns }

func (b InlineBtn) inline(m *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *m.URL(b.Text, b.URL).Inline()
	}
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// InlineButtonsRows renders rows into a reply markup. Empty rows are dropped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, b.inline(m))
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}

// Rows is the inverse of InlineButtonsRows.
func Rows(m *tele.ReplyMarkup) [][]InlineBtn {
	if m == nil {
		return nil
	}
	rows := make([][]InlineBtn, len(m.InlineKeyboard))
	for i, line := range m.InlineKeyboard {
		rows[i] = make([]InlineBtn, len(line))
		for j, b := range line {
			rows[i][j] = InlineBtn{Text: b.Text, Unique: b.Unique, Data: b.Data, URL: b.URL}
		}
	}
	return rows
}
