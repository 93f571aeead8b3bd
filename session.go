package companioncore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────
// Session Store — explicit session lifecycle
// ──────────────────────────────────────────────
//
// An injected service with create/get/touch/expire/delete, not a
// process-global map. Holds the per-conversation working context the
// transport layer needs between turns: history, current mode, stage.

// maxSessionHistory bounds the retained raw history per session.
const maxSessionHistory = 100

// Session is one live conversation between a bot and a user.
type Session struct {
	ID            string    `json:"id"`
	BotID         string    `json:"bot_id"`
	UserID        string    `json:"user_id"`
	CurrentModeID string    `json:"current_mode_id"`
	Stage         Stage     `json:"stage"`
	History       []Message `json:"history"`
	CreatedAt     time.Time `json:"created_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

// AppendMessage adds one message, trimming history past the bound.
func (s *Session) AppendMessage(m Message) {
	s.History = append(s.History, m)
	if len(s.History) > maxSessionHistory {
		s.History = s.History[len(s.History)-maxSessionHistory:]
	}
}

// SessionStore manages session lifecycle with TTL expiry.
//
// Ownership contract: the *Session handed out by Create and Get is live,
// and its conversation fields (History, CurrentModeID, Stage) belong to
// the one goroutine driving that conversation. The store itself only
// touches LastSeenAt, always under its own lock, so Touch and Sweep are
// safe to call concurrently with conversation-side mutation.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time // swappable for tests
}

// NewSessionStore creates a store. ttl <= 0 disables expiry.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session for a (bot, user) pair.
func (st *SessionStore) Create(botID, userID string) *Session {
	now := st.now()
	s := &Session{
		ID:         uuid.NewString(),
		BotID:      botID,
		UserID:     userID,
		Stage:      StageInitiating,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the live session for id. Expired sessions are removed and
// reported as absent. The expiry check reads LastSeenAt under the lock
// so it cannot race a concurrent Touch.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	expired := ok && st.expired(s)
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if expired {
		st.Delete(id)
		return nil, false
	}
	return s, true
}

// Touch refreshes the session's last-seen time.
func (st *SessionStore) Touch(id string) {
	st.mu.Lock()
	if s, ok := st.sessions[id]; ok {
		s.LastSeenAt = st.now()
	}
	st.mu.Unlock()
}

// Delete removes a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Sweep removes every expired session and returns how many were
// removed.
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if st.expired(s) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the live session count, including not-yet-swept expired
// entries.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *SessionStore) expired(s *Session) bool {
	if st.ttl <= 0 {
		return false
	}
	return st.now().Sub(s.LastSeenAt) > st.ttl
}
