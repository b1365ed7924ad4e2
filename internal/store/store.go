// Package store persists users, profiles, appeals and attachment links.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/appealbot/internal/role"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("store: already exists")
)

// Column limits, in runes. Longer input is truncated before it is written.
const (
	MaxFullName    = 128
	MaxContact     = 128
	MaxCategory    = 64
	MaxAddress     = 256
	MaxBody        = 4096
	MaxPolice      = 1024
	MaxAttachments = 4096
	MaxBanReason   = 256
	MaxLink        = 512
)

// AppealStatusNew marks appeals nobody has looked at yet.
const AppealStatusNew = 0

// User is the access record of one Telegram account.
type User struct {
	ID           int64      `db:"id"`
	Role         role.Role  `db:"role"`
	RegisteredAt time.Time  `db:"registered_at"`
	BanStart     *time.Time `db:"ban_start"`
	BanEnd       *time.Time `db:"ban_end"`
	BanBy        *int64     `db:"ban_by"`
	BanReason    *string    `db:"ban_reason"`
}

// BannedAt reports whether the user's ban is still running at t.
func (u User) BannedAt(t time.Time) bool {
	return u.BanEnd != nil && u.BanEnd.After(t)
}

// Profile holds the contact details collected by registration.
type Profile struct {
	UserID   int64  `db:"user_id"`
	FullName string `db:"full_name"`
	Contact  string `db:"contact"`
}

// Appeal is a finalized incident report.
type Appeal struct {
	MessageID   int       `db:"msg_id"`
	UserID      int64     `db:"user_id"`
	Status      int       `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	Category    string    `db:"category"`
	Address     string    `db:"address"`
	Body        string    `db:"body"`
	Police      string    `db:"police"`
	Attachments string    `db:"attachments"`
}

// BanOpts describes one ban. TermDays of zero lifts an existing ban.
type BanOpts struct {
	Start    time.Time
	TermDays int
	Reason   string
	ActorID  int64
}

// End returns the moment the ban stops applying.
func (o BanOpts) End() time.Time {
	return o.Start.AddDate(0, 0, o.TermDays)
}

// RoleChange is the result of SetRole.
type RoleChange int

const (
	// RoleApplied means the role was written.
	RoleApplied RoleChange = iota
	// RoleNoOpSameRole means the user already had the requested role.
	RoleNoOpSameRole
	// RoleNoOpPrivileged means the user is an admin and cannot be changed.
	RoleNoOpPrivileged
)

func (c RoleChange) String() string {
	switch c {
	case RoleApplied:
		return "applied"
	case RoleNoOpSameRole:
		return "same_role"
	case RoleNoOpPrivileged:
		return "privileged"
	default:
		return "unknown"
	}
}

// Store is the persistence contract used by the workflow, moderation and relay.
type Store interface {
	// EnsureUser creates the user row with the default role if missing.
	EnsureUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (User, error)
	// GetRole resolves the user's role. With quiet set a missing user is a
	// plain role.User; otherwise ErrNotFound is returned.
	GetRole(ctx context.Context, id int64, quiet bool) (role.Role, error)
	SetRole(ctx context.Context, id int64, r role.Role) (RoleChange, error)
	// ListByRole returns users holding r ordered by id.
	ListByRole(ctx context.Context, r role.Role) ([]User, error)

	GetProfile(ctx context.Context, userID int64) (Profile, error)
	UpsertProfile(ctx context.Context, p Profile) error

	IsBanned(ctx context.Context, id int64) (bool, error)
	// BanUser writes the ban and returns its end. Missing users yield ErrNotFound.
	BanUser(ctx context.Context, id int64, opts BanOpts) (time.Time, error)

	AddAppeal(ctx context.Context, a Appeal) error
	ListAppeals(ctx context.Context, userID int64) ([]Appeal, error)

	// SetHashLink stores link under its content hash and returns the hash.
	SetHashLink(ctx context.Context, link string) (string, error)
	GetHashLink(ctx context.Context, hash string) (string, error)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
