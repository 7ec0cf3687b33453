// Package store owns session state. Sessions are read as deep-cloned
// snapshots and written back through a compare-and-swap commit keyed on
// the session's version stamp, so concurrent turns for one session
// serialize instead of silently overwriting each other.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/roamline/roamline/internal/domain"
)

// DefaultTTL is how long an idle session survives before expiry.
const DefaultTTL = 30 * time.Minute

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStaleSession is returned when a commit's base version no longer
	// matches the stored session, i.e. another turn committed first.
	ErrStaleSession = errors.New("session version is stale")
)

// Store manages planning sessions.
type Store interface {
	// Create starts a new session in INFO_GATHERING with the given trip facts.
	Create(trip domain.TripInfo) (*domain.Session, error)

	// Get returns a deep-cloned snapshot of a session and refreshes its
	// idle TTL.
	Get(id string) (*domain.Session, error)

	// Peek returns a deep-cloned snapshot without touching the idle TTL.
	// For observers (snapshot streams, health probes) that must not keep
	// an inactive session alive.
	Peek(id string) (*domain.Session, error)

	// Commit stores the mutated session if baseVersion still matches the
	// stored version, bumping the version stamp. Returns the committed
	// snapshot, or ErrStaleSession.
	Commit(s *domain.Session, baseVersion int64) (*domain.Session, error)

	// Delete removes a session.
	Delete(id string) error

	// List returns all live session IDs.
	List() []string

	// Close releases store resources.
	Close() error
}

// newSession builds the initial session record.
func newSession(trip domain.TripInfo) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID:                  uuid.New().String(),
		Version:             1,
		State:               domain.StateInfoGathering,
		Trip:                trip,
		AccommodationStatus: domain.SearchIdle,
		FlightStatus:        domain.SearchIdle,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
