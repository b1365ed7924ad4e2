package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/appealbot/internal/role"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetRoleQuietDefaultsToUser(t *testing.T) {
	m := NewMemory()

	r, err := m.GetRole(t.Context(), 42, true)
	require.NoError(t, err)
	require.Equal(t, role.User, r)

	_, err = m.GetRole(t.Context(), 42, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetRoleResults(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	res, err := m.SetRole(ctx, 1, role.Moderator)
	require.NoError(t, err)
	require.Equal(t, RoleApplied, res)

	res, err = m.SetRole(ctx, 1, role.Moderator)
	require.NoError(t, err)
	require.Equal(t, RoleNoOpSameRole, res)

	_, err = m.SetRole(ctx, 2, role.Admin)
	require.NoError(t, err)
	res, err = m.SetRole(ctx, 2, role.User)
	require.NoError(t, err)
	require.Equal(t, RoleNoOpPrivileged, res)

	mods, err := m.ListByRole(ctx, role.Moderator)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	require.Equal(t, int64(1), mods[0].ID)
}

func TestWithAdminPinsConfiguredAccount(t *testing.T) {
	ctx := t.Context()
	s := WithAdmin(NewMemory(), 7)

	r, err := s.GetRole(ctx, 7, false)
	require.NoError(t, err)
	require.Equal(t, role.Admin, r)

	res, err := s.SetRole(ctx, 7, role.User)
	require.NoError(t, err)
	require.Equal(t, RoleNoOpPrivileged, res)

	plain := NewMemory()
	require.Equal(t, Store(plain), WithAdmin(plain, 0))
}

func TestBanLifecycle(t *testing.T) {
	ctx := t.Context()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(fixedClock(now))

	_, err := m.BanUser(ctx, 5, BanOpts{TermDays: 7})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.EnsureUser(ctx, 5))
	end, err := m.BanUser(ctx, 5, BanOpts{TermDays: 7, Reason: "spam", ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, 7), end)

	banned, err := m.IsBanned(ctx, 5)
	require.NoError(t, err)
	require.True(t, banned)

	u, err := m.GetUser(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "spam", *u.BanReason)
	require.Equal(t, int64(1), *u.BanBy)

	end, err = m.BanUser(ctx, 5, BanOpts{TermDays: 0, ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, now, end)
	banned, err = m.IsBanned(ctx, 5)
	require.NoError(t, err)
	require.False(t, banned)

	banned, err = m.IsBanned(ctx, 404)
	require.NoError(t, err)
	require.False(t, banned)
}

func TestProfileUpsertTruncates(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	_, err := m.GetProfile(ctx, 3)
	require.ErrorIs(t, err, ErrNotFound)

	long := strings.Repeat("я", MaxFullName+10)
	require.NoError(t, m.UpsertProfile(ctx, Profile{UserID: 3, FullName: long, Contact: "+100"}))
	require.NoError(t, m.UpsertProfile(ctx, Profile{UserID: 3, FullName: long, Contact: "+200"}))

	p, err := m.GetProfile(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, MaxFullName, len([]rune(p.FullName)))
	require.Equal(t, "+200", p.Contact)

	_, err = m.GetUser(ctx, 3)
	require.NoError(t, err, "profile upsert creates the user row")
}

func TestAppealsKeepOrderAndRejectDuplicates(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	require.NoError(t, m.AddAppeal(ctx, Appeal{MessageID: 10, UserID: 1, Body: "a"}))
	require.NoError(t, m.AddAppeal(ctx, Appeal{MessageID: 11, UserID: 2, Body: "b"}))
	require.NoError(t, m.AddAppeal(ctx, Appeal{MessageID: 12, UserID: 1, Body: "c"}))
	require.ErrorIs(t, m.AddAppeal(ctx, Appeal{MessageID: 10, UserID: 1}), ErrDuplicate)

	all, err := m.ListAppeals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := m.ListAppeals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, "a", mine[0].Body)
	require.Equal(t, "c", mine[1].Body)
	require.False(t, mine[0].CreatedAt.IsZero())
}

func TestHashLinkRoundTrip(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	h1, err := m.SetHashLink(ctx, "file-id-1")
	require.NoError(t, err)
	h2, err := m.SetHashLink(ctx, "file-id-1")
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 32)

	link, err := m.GetHashLink(ctx, h1)
	require.NoError(t, err)
	require.Equal(t, "file-id-1", link)

	_, err = m.GetHashLink(ctx, "0000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 5))
	require.Equal(t, "ab", Truncate("abc", 2))
	require.Equal(t, "", Truncate("abc", 0))
	require.Equal(t, "пр", Truncate("привет", 2))
}
