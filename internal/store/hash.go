package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/m3rciful/appealbot/internal/role"
)

// HashLink returns the stable lookup key for an attachment link.
func HashLink(link string) string {
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}

// adminStore pins one account to role.Admin regardless of what is stored.
type adminStore struct {
	Store
	adminID int64
}

// WithAdmin wraps s so the configured admin always resolves to role.Admin.
func WithAdmin(s Store, adminID int64) Store {
	if adminID == 0 {
		return s
	}
	return adminStore{Store: s, adminID: adminID}
}

func (a adminStore) GetRole(ctx context.Context, id int64, quiet bool) (role.Role, error) {
	if id == a.adminID {
		return role.Admin, nil
	}
	return a.Store.GetRole(ctx, id, quiet)
}

func (a adminStore) SetRole(ctx context.Context, id int64, r role.Role) (RoleChange, error) {
	if id == a.adminID {
		return RoleNoOpPrivileged, nil
	}
	return a.Store.SetRole(ctx, id, r)
}
