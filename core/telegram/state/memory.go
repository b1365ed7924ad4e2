package state

import "sync"

type session struct {
	state State
	data  map[string]any
}

type userLock struct {
	sync.Mutex
	waiters int
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*session

	lockMu sync.Mutex
	locks  map[int64]*userLock
}

// NewMemoryManager returns a process-local Manager. Sessions are lost on restart.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*session),
		locks:    make(map[int64]*userLock),
	}
}

func (m *memoryManager) read(userID int64, fn func(*session)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		fn(s)
	}
}

func (m *memoryManager) write(userID int64, fn func(*session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{state: StateIdle, data: make(map[string]any)}
		m.sessions[userID] = s
	}
	fn(s)
}

func (m *memoryManager) GetState(userID int64) State {
	st := StateIdle
	m.read(userID, func(s *session) { st = s.state })
	return st
}

func (m *memoryManager) SetState(userID int64, st State) {
	m.write(userID, func(s *session) { s.state = st })
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

func (m *memoryManager) GetTemp(userID int64, key string) (v any, ok bool) {
	m.read(userID, func(s *session) { v, ok = s.data[key] })
	return v, ok
}

func (m *memoryManager) GetTempString(userID int64, key string) string {
	s, _ := Temp[string](m, userID, key)
	return s
}

func (m *memoryManager) GetTempBool(userID int64, key string) bool {
	b, _ := Temp[bool](m, userID, key)
	return b
}

func (m *memoryManager) SetTemp(userID int64, key string, value any) {
	m.write(userID, func(s *session) { s.data[key] = value })
}

func (m *memoryManager) ClearTemp(userID int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		delete(s.data, key)
	}
}

func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Lock entries live while someone holds or waits for them.
func (m *memoryManager) Lock(userID int64) func() {
	m.lockMu.Lock()
	l := m.locks[userID]
	if l == nil {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.waiters++
	m.lockMu.Unlock()

	l.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.Unlock()
			m.lockMu.Lock()
			if l.waiters--; l.waiters == 0 {
				delete(m.locks, userID)
			}
			m.lockMu.Unlock()
		})
	}
}

func (m *memoryManager) size() (sessions, locks int) {
	m.mu.RLock()
	sessions = len(m.sessions)
	m.mu.RUnlock()
	m.lockMu.Lock()
	locks = len(m.locks)
	m.lockMu.Unlock()
	return sessions, locks
}
