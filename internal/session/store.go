package session

import (
	"context"
	"sync"

	"cityforall/internal/model"
)

// Store keeps the mutable per-respondent survey state, keyed by chat
// id. Get returns nil when no session exists.
type Store interface {
	Get(ctx context.Context, chatID int64) (*model.Session, error)
	Put(ctx context.Context, sess *model.Session) error
	Delete(ctx context.Context, chatID int64) error
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*model.Session
}

// NewMemoryStore returns an in-process store. Abandoned sessions are
// kept until the process restarts; the Redis store is the variant with
// an expiry.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*model.Session)}
}

func (s *memoryStore) Get(ctx context.Context, chatID int64) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[chatID], nil
}

func (s *memoryStore) Put(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ChatID] = sess
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}
