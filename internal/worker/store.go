package worker

import (
	"sort"
	"time"

	"github.com/san-kum/revsim/internal/sim"
)

// Session is a forward pass waiting for its backward pass.
type Session struct {
	Key     string
	System  sim.System
	Engine  *sim.Engine
	Created time.Time
}

// SessionStore maps keys to live sessions. It is not safe for concurrent
// use; the Service only touches it while holding the compute resource.
type SessionStore struct {
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Put stores s, replacing any session under the same key.
func (st *SessionStore) Put(s *Session) (replaced bool) {
	_, replaced = st.sessions[s.Key]
	st.sessions[s.Key] = s
	return replaced
}

func (st *SessionStore) Get(key string) (*Session, bool) {
	s, ok := st.sessions[key]
	return s, ok
}

func (st *SessionStore) Delete(key string) {
	delete(st.sessions, key)
}

// Clear removes every session and returns how many there were.
func (st *SessionStore) Clear() int {
	n := len(st.sessions)
	clear(st.sessions)
	return n
}

func (st *SessionStore) Len() int {
	return len(st.sessions)
}

func (st *SessionStore) Keys() []string {
	keys := make([]string, 0, len(st.sessions))
	for k := range st.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
