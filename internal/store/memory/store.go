// Package memory keeps sessions in process memory. Everything is lost on
// restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	assistantpkg "telegpt/pkg/assistant"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[int64]assistantpkg.Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]assistantpkg.Session),
	}
}

func (s *Store) Get(_ context.Context, chatID int64) (assistantpkg.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return assistantpkg.Session{ChatID: chatID}, nil
	}
	return session.Clone(), nil
}

func (s *Store) Put(ctx context.Context, session assistantpkg.Session) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", assistantpkg.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ChatID] = session.Clone()
	return nil
}
