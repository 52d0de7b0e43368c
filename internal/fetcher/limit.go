package fetcher

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limited caps how many sessions may be open at once across all callers.
type Limited struct {
	next Renderer
	sem  *semaphore.Weighted
}

// NewLimited wraps next so that at most n sessions are open concurrently.
func NewLimited(next Renderer, n int64) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(n)}
}

// Open blocks until a slot is free or ctx is done.
func (l *Limited) Open(ctx context.Context) (Session, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire session slot: %w", err)
	}
	s, err := l.next.Open(ctx)
	if err != nil {
		l.sem.Release(1)
		return nil, err
	}
	return &limitedSession{Session: s, release: func() { l.sem.Release(1) }}, nil
}

type limitedSession struct {
	Session
	once    sync.Once
	release func()
}

func (s *limitedSession) Close() error {
	err := s.Session.Close()
	s.once.Do(s.release)
	return err
}
