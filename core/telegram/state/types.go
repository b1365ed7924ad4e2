// Package state keeps per-user conversation sessions and the transition
// table conversational workflows dispatch through.
package state

// State names the step a user's conversation is at.
type State string

// StateIdle means no conversation is open.
const StateIdle State = "idle"

// Manager keeps one session per user: a State and a bag of values the
// current conversation collected.
type Manager interface {
	GetState(userID int64) State
	SetState(userID int64, st State)
	// InProgress reports whether the user is in a state other than idle.
	InProgress(userID int64) bool

	GetTemp(userID int64, key string) (any, bool)
	GetTempString(userID int64, key string) string
	GetTempBool(userID int64, key string) bool
	SetTemp(userID int64, key string, value any)
	ClearTemp(userID int64, key string)
	// Clear drops the whole session.
	Clear(userID int64)

	// Lock serialises work on one user's session and returns the unlock func.
	Lock(userID int64) func()
}

// Temp returns the value of key as a T.
func Temp[T any](m Manager, userID int64, key string) (T, bool) {
	v, ok := m.GetTemp(userID, key)
	t, isT := v.(T)
	return t, ok && isT
}
