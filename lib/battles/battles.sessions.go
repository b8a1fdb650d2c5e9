package battles

import (
	"sync"
	"sync/atomic"
)

// ActiveSession is the in-memory record of one ONGOING battle. The submissions
// themselves live in the category engine; the session carries the battle and
// the ended claim that makes settlement happen at most once.
type ActiveSession struct {
	Battle *Battle
	ended  atomic.Bool
}

// claim marks the session as ending. Exactly one caller gets true; the losing
// path (an early end racing the round deadline) becomes a no-op.
func (s *ActiveSession) claim() bool {
	return s.ended.CompareAndSwap(false, true)
}

type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*ActiveSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*ActiveSession),
	}
}

func (reg *sessionRegistry) Put(battle_id string, session *ActiveSession) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.sessions[battle_id] = session
}

func (reg *sessionRegistry) Get(battle_id string) (*ActiveSession, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	session, ok := reg.sessions[battle_id]
	return session, ok
}

func (reg *sessionRegistry) Remove(battle_id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.sessions[battle_id]; !ok {
		return false
	}
	delete(reg.sessions, battle_id)
	return true
}

func (reg *sessionRegistry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.sessions)
}
