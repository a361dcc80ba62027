package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is issued by Login and threaded explicitly through every request.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionStore keeps issued sessions in memory, keyed by token.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	timeNow func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		timeNow:  time.Now,
	}
}

func (st *SessionStore) Issue(email, name string, role Role) *Session {
	session := &Session{
		Token:     uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      role,
		ExpiresAt: st.timeNow().UTC().Add(st.ttl),
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[session.Token] = session
	return session
}

// Resolve returns the session for a token, or false when the token is
// unknown or expired. Expired sessions are dropped on access.
func (st *SessionStore) Resolve(token string) (*Session, bool) {
	st.mu.RLock()
	session, ok := st.sessions[token]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if session.Expired(st.timeNow().UTC()) {
		st.Revoke(token)
		return nil, false
	}

	sessionCopy := *session
	return &sessionCopy, true
}

func (st *SessionStore) Revoke(token string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, token)
}
