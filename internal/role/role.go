// Package role defines the closed set of access levels used by the bot.
package role

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a stored rank does not map to a role.
var ErrUnknownRole = errors.New("role: unknown rank")

// Role is a user access level. Higher ranks include the permissions of lower ones.
type Role int8

const (
	// User is the default role of anyone who talks to the bot.
	User Role = 0
	// Moderator can ban and unban users.
	Moderator Role = 1
	// Admin manages moderators.
	Admin Role = 2
)

// All lists the roles in ascending order.
var All = []Role{User, Moderator, Admin}

// FromRank resolves a stored rank.
func FromRank(rank int) (Role, error) {
	for _, r := range All {
		if int(r) == rank {
			return r, nil
		}
	}
	return User, fmt.Errorf("%w: %d", ErrUnknownRole, rank)
}

// Parse resolves a role by its lower-case name.
func Parse(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user":
		return User, nil
	case "moderator":
		return Moderator, nil
	case "admin":
		return Admin, nil
	}
	return User, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// Rank returns the numeric value persisted in storage.
func (r Role) Rank() int { return int(r) }

// AtLeast reports whether r grants at least the permissions of other.
func (r Role) AtLeast(other Role) bool { return r >= other }

// Outranks reports whether r is strictly above other.
func (r Role) Outranks(other Role) bool { return r > other }

func (r Role) String() string {
	switch r {
	case User:
		return "user"
	case Moderator:
		return "moderator"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}
