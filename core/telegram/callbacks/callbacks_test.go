package callbacks

import (
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParseData(t *testing.T) {
	u, p := ParseData("\fmods_card|42|3")
	require.Equal(t, "mods_card", u)
	require.Equal(t, "42|3", p)

	u, p = ParseData("noop")
	require.Equal(t, "noop", u)
	require.Empty(t, p)

	u, p = ParseCallbackData(&tele.Callback{Unique: "mods_card", Data: "42|3"})
	require.Equal(t, "mods_card", u)
	require.Equal(t, "42|3", p)

	u, p = ParseCallbackData(&tele.Callback{Data: "\fban_term|7"})
	require.Equal(t, "ban_term", u)
	require.Equal(t, "7", p)

	u, p = ParseCallbackData(nil)
	require.Empty(t, u)
	require.Empty(t, p)
}

func TestPayloadParsing(t *testing.T) {
	a, b, err := TwoInt64(Join("|", int64(42), 3), "|")
	require.NoError(t, err)
	require.Equal(t, int64(42), a)
	require.Equal(t, int64(3), b)

	for _, bad := range []string{"", "42", "1|2|3", "x|1"} {
		_, _, err = TwoInt64(bad, "|")
		require.Error(t, err, bad)
	}

	n, err := Int(" 5 ")
	require.NoError(t, err)
	require.Equal(t, 5, n)
	_, err = Int("x")
	require.Error(t, err)
	require.Equal(t, "a|b", Join("|", "a", "b"))
}
