package store

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/logging"
)

// MemoryStore is an in-process Store with idle-TTL expiry backed by
// go-cache. Get and Commit re-arm the session's TTL; Peek does not.
type MemoryStore struct {
	mu  sync.Mutex
	c   *gocache.Cache
	ttl time.Duration
	log *logging.Logger
}

// NewMemoryStore creates a memory store expiring sessions after the
// given idle duration (DefaultTTL if zero).
func NewMemoryStore(ttl time.Duration, log *logging.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		c:   gocache.New(ttl, ttl/3),
		ttl: ttl,
		log: log.Sub("store.memory"),
	}
	s.c.OnEvicted(func(id string, _ any) {
		s.log.Debug().Str("sessionId", id).Msg("session expired")
	})
	return s
}

func (s *MemoryStore) Create(trip domain.TripInfo) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := newSession(trip)
	s.c.Set(sess.ID, sess, gocache.DefaultExpiration)
	s.log.Info().Str("sessionId", sess.ID).Str("destination", trip.Destination).Msg("session created")
	return sess.Clone(), nil
}

func (s *MemoryStore) Get(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.current(id)
	if err != nil {
		return nil, err
	}
	// Sliding TTL: re-setting resets the expiry clock.
	s.c.Set(id, sess, gocache.DefaultExpiration)
	return sess.Clone(), nil
}

func (s *MemoryStore) Peek(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.current(id)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (s *MemoryStore) Commit(updated *domain.Session, baseVersion int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.current(updated.ID)
	if err != nil {
		return nil, err
	}
	if current.Version != baseVersion {
		return nil, ErrStaleSession
	}

	committed := updated.Clone()
	committed.Version = baseVersion + 1
	committed.UpdatedAt = time.Now().UTC()
	s.c.Set(committed.ID, committed, gocache.DefaultExpiration)
	return committed.Clone(), nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Delete(id)
	return nil
}

func (s *MemoryStore) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.c.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids
}

func (s *MemoryStore) Close() error {
	s.c.Flush()
	return nil
}

// current returns the live stored session without cloning. Callers hold s.mu.
func (s *MemoryStore) current(id string) (*domain.Session, error) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v.(*domain.Session), nil
}
