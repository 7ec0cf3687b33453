// Package subagent runs the accommodation and flight offer searches.
// This fan-out is the one place the turn engine uses true parallelism:
// both searches run concurrently whenever the activity selection changes.
package subagent

import (
	"context"
	"sync"
	"time"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/logging"
)

// DefaultSearchTimeout bounds each sub-agent call so a hung collaborator
// degrades the search instead of stalling the turn.
const DefaultSearchTimeout = 30 * time.Second

// SearchResult is the outcome of one sub-agent search.
type SearchResult struct {
	Status  domain.SearchStatus   `json:"status"`
	Message string                `json:"message,omitempty"`
	Options []domain.TravelOption `json:"options,omitempty"`
}

// AccommodationSearcher finds lodging offers for a session's trip.
type AccommodationSearcher interface {
	SearchAccommodation(ctx context.Context, s *domain.Session) (*SearchResult, error)
}

// FlightSearcher finds flight offers for a session's trip.
type FlightSearcher interface {
	SearchFlights(ctx context.Context, s *domain.Session) (*SearchResult, error)
}

// TravelResults pairs the outcomes of both searches.
type TravelResults struct {
	Accommodation SearchResult
	Flight        SearchResult
}

// Runner fans travel searches out and back in.
type Runner struct {
	accommodation AccommodationSearcher
	flights       FlightSearcher
	timeout       time.Duration
	log           *logging.Logger
}

// NewRunner creates a search runner. A zero timeout uses the default.
func NewRunner(a AccommodationSearcher, f FlightSearcher, timeout time.Duration, log *logging.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return &Runner{accommodation: a, flights: f, timeout: timeout, log: log.Sub("subagent")}
}

// Run executes both searches concurrently against a session snapshot.
// A failed or timed-out search yields a failed result; Run itself never
// errors.
func (r *Runner) Run(ctx context.Context, s *domain.Session) TravelResults {
	var (
		wg      sync.WaitGroup
		results TravelResults
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results.Accommodation = r.one(ctx, s, "accommodation", func(ctx context.Context) (*SearchResult, error) {
			return r.accommodation.SearchAccommodation(ctx, s)
		})
	}()
	go func() {
		defer wg.Done()
		results.Flight = r.one(ctx, s, "flight", func(ctx context.Context) (*SearchResult, error) {
			return r.flights.SearchFlights(ctx, s)
		})
	}()
	wg.Wait()

	return results
}

func (r *Runner) one(ctx context.Context, s *domain.Session, kind string, search func(context.Context) (*SearchResult, error)) SearchResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res, err := search(ctx)
	if err != nil {
		r.log.Warn().
			Str("sessionId", s.ID).
			Str("kind", kind).
			Err(err).
			Msg("travel search failed")
		return SearchResult{Status: domain.SearchFailed, Message: err.Error()}
	}

	r.log.Info().
		Str("sessionId", s.ID).
		Str("kind", kind).
		Int("options", len(res.Options)).
		Dur("duration", time.Since(start)).
		Msg("travel search finished")
	return *res
}

// StaticSearcher returns canned offers; used in tests and local serving
// when no real sub-agent backend is configured.
type StaticSearcher struct {
	Kind    string
	Options []domain.TravelOption
	Err     error
	Delay   time.Duration
}

func (s *StaticSearcher) search(ctx context.Context) (*SearchResult, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &SearchResult{Status: domain.SearchComplete, Options: s.Options}, nil
}

func (s *StaticSearcher) SearchAccommodation(ctx context.Context, _ *domain.Session) (*SearchResult, error) {
	return s.search(ctx)
}

func (s *StaticSearcher) SearchFlights(ctx context.Context, _ *domain.Session) (*SearchResult, error) {
	return s.search(ctx)
}
