package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/appealbot/internal/role"
)

type appealKey struct {
	msgID  int
	userID int64
}

// Memory is a process-local Store used in tests and for running without a database.
type Memory struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[int64]User
	profiles map[int64]Profile
	appeals  map[appealKey]Appeal
	order    []appealKey
	links    map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		users:    make(map[int64]User),
		profiles: make(map[int64]Profile),
		appeals:  make(map[appealKey]Appeal),
		links:    make(map[string]string),
	}
}

// WithClock overrides the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) EnsureUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		m.users[id] = User{ID: id, Role: role.User, RegisteredAt: m.now()}
	}
	return nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) GetRole(ctx context.Context, id int64, quiet bool) (role.Role, error) {
	u, err := m.GetUser(ctx, id)
	if err != nil {
		if quiet {
			return role.User, nil
		}
		return role.User, err
	}
	return u.Role, nil
}

func (m *Memory) SetRole(_ context.Context, id int64, r role.Role) (RoleChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = User{ID: id, Role: role.User, RegisteredAt: m.now()}
	}
	switch {
	case u.Role == role.Admin:
		return RoleNoOpPrivileged, nil
	case ok && u.Role == r:
		return RoleNoOpSameRole, nil
	}
	u.Role = r
	m.users[id] = u
	return RoleApplied, nil
}

func (m *Memory) ListByRole(_ context.Context, r role.Role) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		if u.Role == r {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) GetProfile(_ context.Context, userID int64) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("profile %d: %w", userID, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) UpsertProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[p.UserID]; !ok {
		m.users[p.UserID] = User{ID: p.UserID, Role: role.User, RegisteredAt: m.now()}
	}
	p.FullName = Truncate(p.FullName, MaxFullName)
	p.Contact = Truncate(p.Contact, MaxContact)
	m.profiles[p.UserID] = p
	return nil
}

func (m *Memory) IsBanned(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return ok && u.BannedAt(m.now()), nil
}

func (m *Memory) BanUser(_ context.Context, id int64, opts BanOpts) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return time.Time{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if opts.Start.IsZero() {
		opts.Start = m.now()
	}
	start, end := opts.Start, opts.End()
	reason := Truncate(opts.Reason, MaxBanReason)
	actor := opts.ActorID
	u.BanStart, u.BanEnd, u.BanReason, u.BanBy = &start, &end, &reason, &actor
	m.users[id] = u
	return end, nil
}

func (m *Memory) AddAppeal(_ context.Context, a Appeal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := appealKey{a.MessageID, a.UserID}
	if _, dup := m.appeals[k]; dup {
		return fmt.Errorf("appeal %d/%d: %w", a.UserID, a.MessageID, ErrDuplicate)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.appeals[k] = a
	m.order = append(m.order, k)
	return nil
}

func (m *Memory) ListAppeals(_ context.Context, userID int64) ([]Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appeal
	for _, k := range m.order {
		if userID == 0 || k.userID == userID {
			out = append(out, m.appeals[k])
		}
	}
	return out, nil
}

func (m *Memory) SetHashLink(_ context.Context, link string) (string, error) {
	h := HashLink(link)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[h]; !ok {
		m.links[h] = link
	}
	return h, nil
}

func (m *Memory) GetHashLink(_ context.Context, hash string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[hash]
	if !ok {
		return "", fmt.Errorf("hash %q: %w", hash, ErrNotFound)
	}
	return link, nil
}
