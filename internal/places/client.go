// Package places defines the mapping/places collaborator interface.
// The core consumes it as a black box returning place records with
// coordinates, ratings, and photo references.
package places

import (
	"context"

	"github.com/roamline/roamline/internal/domain"
)

// PlaceRecord is one result from a places search.
type PlaceRecord struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category string         `json:"category,omitempty"`
	Rating   float64        `json:"rating,omitempty"`
	Location *domain.LatLng `json:"location,omitempty"`
	PhotoRef string         `json:"photoRef,omitempty"`
}

// Client searches for places near a coordinate.
type Client interface {
	SearchPlaces(ctx context.Context, query string, near *domain.LatLng, radiusMeters int) ([]PlaceRecord, error)
}

// MockClient is a test double for Client.
type MockClient struct {
	SearchFunc func(ctx context.Context, query string, near *domain.LatLng, radiusMeters int) ([]PlaceRecord, error)
}

func (m *MockClient) SearchPlaces(ctx context.Context, query string, near *domain.LatLng, radiusMeters int) ([]PlaceRecord, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, near, radiusMeters)
	}
	return nil, nil
}
