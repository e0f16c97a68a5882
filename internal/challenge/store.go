package challenge

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrChallengeNotFound is returned when no live challenge exists for a handle,
// either because none was created or because it expired.
var ErrChallengeNotFound = errors.New("no active challenge found")

// Store holds at most one live challenge per handle.
type Store interface {
	// Put atomically replaces any existing challenge for ch.Handle.
	Put(ctx context.Context, ch *Challenge) error
	// Get returns the live challenge for handle or ErrChallengeNotFound.
	// An expired challenge is never returned.
	Get(ctx context.Context, handle string) (*Challenge, error)
	// Delete removes the challenge for handle. Deleting nothing is not an error.
	Delete(ctx context.Context, handle string) error
	// DeleteExpired physically removes expired challenges and reports how many.
	DeleteExpired(ctx context.Context) (int64, error)
}

// MemoryStore is a single-process Store. It is suitable for development and
// tests; it does not scale to multiple server instances.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Challenge
	ttl  time.Duration

	// Now returns the current time. Tests replace it with a fake clock.
	Now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore whose challenges live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{rows: make(map[string]Challenge), ttl: ttl, Now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, ch *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ch.Handle] = *ch
	return nil
}

func (s *MemoryStore) Get(_ context.Context, handle string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rows[handle]
	if !ok || ch.Expired(s.Now(), s.ttl) {
		return nil, ErrChallengeNotFound
	}
	return &ch, nil
}

func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, handle)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	var n int64
	for h, ch := range s.rows {
		if ch.Expired(now, s.ttl) {
			delete(s.rows, h)
			n++
		}
	}
	return n, nil
}
