package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rana718/petquest/internal/gateway"
)

// TableState is the page, sort and row being edited for one table in one
// session.
type TableState struct {
	Page    int
	Sort    *gateway.Sort
	Editing string
}

// Session holds one open dashboard's view state. Nothing is shared between
// sessions.
type Session struct {
	ID string

	mu     sync.Mutex
	tables map[string]TableState
}

func newSession(id string) *Session {
	return &Session{ID: id, tables: make(map[string]TableState)}
}

func (s *Session) Table(table string) TableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tables[table]
	if !ok || st.Page < 1 {
		st.Page = 1
	}
	return st
}

func (s *Session) update(table string, fn func(*TableState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tables[table]
	if st.Page < 1 {
		st.Page = 1
	}
	fn(&st)
	s.tables[table] = st
}

func (s *Session) SetPage(table string, page int) {
	s.update(table, func(st *TableState) {
		if page < 1 {
			page = 1
		}
		st.Page = page
	})
}

// SetSort changes the sort and goes back to the first page.
func (s *Session) SetSort(table string, sort *gateway.Sort) {
	s.update(table, func(st *TableState) {
		st.Sort = sort
		st.Page = 1
	})
}

func (s *Session) SetEditing(table, id string) {
	s.update(table, func(st *TableState) { st.Editing = id })
}

const (
	DefaultSessionTTL  = 12 * time.Hour
	DefaultMaxSessions = 1024
)

// Sessions is the in-process session store, keyed by an opaque id. Sessions
// idle longer than the TTL are dropped, and once the store is full the least
// recently used one makes room for a new visitor.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	seen     map[string]time.Time
	ttl      time.Duration
	max      int
	now      func() time.Time
}

type SessionOption func(*Sessions)

func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *Sessions) { s.ttl = ttl }
}

func WithMaxSessions(n int) SessionOption {
	return func(s *Sessions) { s.max = n }
}

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(opts ...SessionOption) *Sessions {
	s := &Sessions{
		sessions: make(map[string]*Session),
		seen:     make(map[string]time.Time),
		ttl:      DefaultSessionTTL,
		max:      DefaultMaxSessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for id, creating one with a fresh id when id is
// unknown or expired. created reports whether a new session was made.
func (s *Sessions) Get(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok && id != "" {
		if !s.expired(id, now) {
			s.seen[id] = now
			return sess, false
		}
		s.drop(id)
	}

	s.sweep(now)
	for s.max > 0 && len(s.sessions) >= s.max {
		s.drop(s.oldest())
	}

	sess = newSession(uuid.NewString())
	s.sessions[sess.ID] = sess
	s.seen[sess.ID] = now
	return sess, true
}

func (s *Sessions) expired(id string, now time.Time) bool {
	return s.ttl > 0 && now.Sub(s.seen[id]) > s.ttl
}

func (s *Sessions) sweep(now time.Time) {
	for id := range s.sessions {
		if s.expired(id, now) {
			s.drop(id)
		}
	}
}

func (s *Sessions) oldest() string {
	var (
		oldest string
		at     time.Time
	)
	for id, t := range s.seen {
		if oldest == "" || t.Before(at) {
			oldest, at = id, t
		}
	}
	return oldest
}

func (s *Sessions) drop(id string) {
	delete(s.sessions, id)
	delete(s.seen, id)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
