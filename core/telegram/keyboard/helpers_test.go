package keyboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRows(t *testing.T) {
	rows := [][]InlineBtn{
		Row(InlineBtn{Text: "Ban", Unique: "ban"}, InlineBtn{Text: "Unban", Unique: "unban"}),
		Row(InlineBtn{Text: "Page 2", Unique: "mod_page", Data: "1"}),
	}
	markup := InlineButtonsRows(rows...)
	require.Len(t, markup.InlineKeyboard, 2)
	require.Len(t, markup.InlineKeyboard[0], 2)
	require.Equal(t, "ban", markup.InlineKeyboard[0][0].Unique)
	require.Equal(t, "1", markup.InlineKeyboard[1][0].Data)
	require.Equal(t, rows, Rows(markup))
}

func TestInlineButtonsRowsSkipsEmptyRows(t *testing.T) {
	markup := InlineButtonsRows(nil, Row(InlineBtn{Text: "Files", URL: "https://files.example.org/ab12"}))
	require.Len(t, markup.InlineKeyboard, 1)
	require.Equal(t, "https://files.example.org/ab12", markup.InlineKeyboard[0][0].URL)
	require.Empty(t, markup.InlineKeyboard[0][0].Unique)
}

func TestRowsNil(t *testing.T) {
	require.Nil(t, Rows(nil))
}
