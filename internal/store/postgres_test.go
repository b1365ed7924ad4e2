package store

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestDBErrMapsDriverErrors(t *testing.T) {
	require.NoError(t, DBErr(nil))
	require.ErrorIs(t, DBErr(sql.ErrNoRows), ErrNotFound)
	require.ErrorIs(t, DBErr(fmt.Errorf("scan: %w", sql.ErrNoRows)), ErrNotFound)
	require.ErrorIs(t, DBErr(&pq.Error{Code: "23505"}), ErrDuplicate)

	other := &pq.Error{Code: "23503"}
	require.Same(t, other, DBErr(other))

	plain := errors.New("conn reset")
	require.Equal(t, plain, DBErr(plain))
}

func TestBanOptsEnd(t *testing.T) {
	var o BanOpts
	o.Start = o.Start.AddDate(2026, 0, 0)
	o.TermDays = 30
	require.Equal(t, o.Start.AddDate(0, 0, 30), o.End())
}
