package subagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/logging"
	"github.com/stretchr/testify/assert"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestRunBothSearchesSucceed(t *testing.T) {
	acc := &StaticSearcher{Options: []domain.TravelOption{{ID: "h1", Kind: "accommodation", Name: "Hotel"}}}
	fl := &StaticSearcher{Options: []domain.TravelOption{{ID: "f1", Kind: "flight", Name: "RL123"}}}

	r := NewRunner(acc, fl, time.Second, silentLog())
	res := r.Run(context.Background(), &domain.Session{ID: "s1"})

	assert.Equal(t, domain.SearchComplete, res.Accommodation.Status)
	assert.Equal(t, domain.SearchComplete, res.Flight.Status)
	assert.Len(t, res.Accommodation.Options, 1)
	assert.Len(t, res.Flight.Options, 1)
}

func TestRunFailureDegradesToFailedStatus(t *testing.T) {
	acc := &StaticSearcher{Err: errors.New("provider down")}
	fl := &StaticSearcher{Options: []domain.TravelOption{{ID: "f1"}}}

	r := NewRunner(acc, fl, time.Second, silentLog())
	res := r.Run(context.Background(), &domain.Session{ID: "s1"})

	assert.Equal(t, domain.SearchFailed, res.Accommodation.Status)
	assert.Contains(t, res.Accommodation.Message, "provider down")
	assert.Equal(t, domain.SearchComplete, res.Flight.Status)
}

func TestRunTimeoutDegradesToFailedStatus(t *testing.T) {
	slow := &StaticSearcher{Delay: time.Second}
	fast := &StaticSearcher{}

	r := NewRunner(slow, fast, 20*time.Millisecond, silentLog())
	res := r.Run(context.Background(), &domain.Session{ID: "s1"})

	assert.Equal(t, domain.SearchFailed, res.Accommodation.Status)
	assert.Equal(t, domain.SearchComplete, res.Flight.Status)
}

func TestRunIsConcurrent(t *testing.T) {
	// Two 60ms searches must not take 120ms back to back.
	a := &StaticSearcher{Delay: 60 * time.Millisecond}
	b := &StaticSearcher{Delay: 60 * time.Millisecond}

	r := NewRunner(a, b, time.Second, silentLog())
	start := time.Now()
	r.Run(context.Background(), &domain.Session{ID: "s1"})
	assert.Less(t, time.Since(start), 110*time.Millisecond)
}
