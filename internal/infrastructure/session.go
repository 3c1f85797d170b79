package infrastructure

import (
	"strconv"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

const DefaultSessionTTL = 24 * time.Hour

// UserSession holds one user's conversation state. The embedded lock is held
// for the whole handling of an event.
type UserSession struct {
	mu       sync.Mutex
	State    entities.SessionState
	LastSeen time.Time
}

// SessionManager keeps sessions in memory and forgets users idle longer than
// the TTL.
type SessionManager struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		cache: cache.New(ttl, ttl/4),
		ttl:   ttl,
	}
}

func sessionKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// GetOrCreateSession returns the user's session, creating an idle one if
// needed, and refreshes its expiry.
func (sm *SessionManager) GetOrCreateSession(userID int64) *UserSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := sessionKey(userID)
	var session *UserSession
	if v, ok := sm.cache.Get(key); ok {
		session = v.(*UserSession)
	} else {
		session = &UserSession{State: entities.SessionState{UserID: userID, Mode: entities.ModeIdle}}
	}
	sm.cache.Set(key, session, sm.ttl)
	return session
}

// Acquire locks the user's session and returns it with the matching release
// func.
func (sm *SessionManager) Acquire(userID int64) (*UserSession, func()) {
	s := sm.GetOrCreateSession(userID)
	s.mu.Lock()
	s.LastSeen = time.Now()
	return s, s.mu.Unlock
}

// Peek returns a copy of the user's state without creating a session.
func (sm *SessionManager) Peek(userID int64) (entities.SessionState, bool) {
	v, ok := sm.cache.Get(sessionKey(userID))
	if !ok {
		return entities.SessionState{}, false
	}
	s := v.(*UserSession)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, true
}

func (sm *SessionManager) Count() int {
	return sm.cache.ItemCount()
}
