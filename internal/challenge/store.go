// Package challenge holds short-lived QR payloads keyed by session id
// while a session is mid-handshake. Entries expire after a TTL; reads
// perform lazy eviction so no background sweep is needed for
// correctness.
package challenge

import (
	"context"
	"sync"
	"time"

	"wagate/pkg/metrics"
)

const DefaultTTL = 5 * time.Minute

type Store interface {
	// Put upserts the entry, overwriting any prior challenge for the key.
	Put(ctx context.Context, sessionID, payload string) error
	// Get returns the challenge only while it is younger than the TTL;
	// an expired entry is evicted and reported absent.
	Get(ctx context.Context, sessionID string) (string, bool, error)
	// Remove is idempotent; called when a session connects or is deleted.
	Remove(ctx context.Context, sessionID string) error
}

type entry struct {
	payload   string
	createdAt time.Time
}

// MemoryStore is the default single-process implementation.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]entry{}}
}

func (s *MemoryStore) Put(ctx context.Context, sessionID, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = entry{payload: payload, createdAt: s.now()}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return "", false, nil
	}
	if s.now().Sub(e.createdAt) >= s.ttl {
		delete(s.entries, sessionID)
		metrics.ChallengeEvictions.Inc()
		return "", false, nil
	}
	return e.payload, true, nil
}

func (s *MemoryStore) Remove(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// SweepExpired bounds memory between reads. Not required for Get
// correctness.
func (s *MemoryStore) SweepExpired(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if now.Sub(e.createdAt) >= s.ttl {
			delete(s.entries, k)
			metrics.ChallengeEvictions.Inc()
		}
	}
}

// StartSweeper runs SweepExpired on an interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.SweepExpired(ctx)
			}
		}
	}()
}
