package store

import (
	"strconv"
	"sync"

	logx "clockbot/pkg/logx"
)

// SessionStore maps chat ids to sessions, persisted as a JSON object keyed
// by the stringified chat id (a file contract shared with earlier tooling).
type SessionStore struct {
	mu    sync.Mutex
	path  string
	log   logx.Logger
	users map[string]Session
}

func NewSessionStore(path string, log logx.Logger) (*SessionStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &SessionStore{path: path, log: log, users: map[string]Session{}}
	loadJSONFile(path, &s.users, log)
	if s.users == nil {
		s.users = map[string]Session{}
	}
	return s, nil
}

// Put creates or replaces the session for chatID and persists.
func (s *SessionStore) Put(chatID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[key(chatID)] = sess
	saveJSONFile(s.path, s.users, s.log)
}

func (s *SessionStore) Get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.users[key(chatID)]
	return sess, ok
}

func (s *SessionStore) Remove(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key(chatID)]; !ok {
		return
	}
	delete(s.users, key(chatID))
	saveJSONFile(s.path, s.users, s.log)
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
