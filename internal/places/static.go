package places

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/roamline/roamline/internal/domain"
)

// StaticClient is an offline places provider: it derives stable,
// deterministic records from the query text. Used for local serving and
// demos when no real places backend is configured.
type StaticClient struct{}

func NewStaticClient() *StaticClient {
	return &StaticClient{}
}

// SearchPlaces returns one synthesized record per query. Coordinates
// and ratings are a stable function of the query so repeated lookups
// agree with each other.
func (c *StaticClient) SearchPlaces(ctx context.Context, query string, near *domain.LatLng, radiusMeters int) ([]PlaceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(query)))
	seed := h.Sum64()

	lat := 35.0 + float64(seed%2000)/100.0  // 35..55 N
	lng := -10.0 + float64(seed%4000)/100.0 // 10W..30E
	if near != nil {
		// Scatter within roughly a city's radius of the hint.
		lat = near.Lat + float64(seed%100)/1000.0 - 0.05
		lng = near.Lng + float64(seed/100%100)/1000.0 - 0.05
	}

	return []PlaceRecord{{
		ID:       "static-" + strings.ReplaceAll(strings.ToLower(query), " ", "-"),
		Name:     query,
		Rating:   3.5 + float64(seed%15)/10.0,
		Location: &domain.LatLng{Lat: lat, Lng: lng},
	}}, nil
}
