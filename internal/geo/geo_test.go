package geo

import (
	"testing"

	"github.com/roamline/roamline/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	paris := domain.LatLng{Lat: 48.8566, Lng: 2.3522}
	london := domain.LatLng{Lat: 51.5074, Lng: -0.1278}

	// Paris–London is roughly 344 km.
	d := Haversine(paris, london)
	assert.InDelta(t, 344, d, 5)

	assert.Zero(t, Haversine(paris, paris))
}

func TestParseDurationHours(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"full day", 8},
		{"All day tour", 8},
		{"half day", 4},
		{"2 hours", 2},
		{"2-3 hours", 2.5},
		{"1.5 hours", 1.5},
		{"90 min", 1.5},
		{"45 minutes", 0.75},
		{"10 min", 0.5},      // clamped up
		{"20 hours", 10},     // clamped down
		{"stroll around", 2}, // unparseable
		{"", 2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseDurationHours(tt.text), 1e-9)
		})
	}
}

func TestSlotOrder(t *testing.T) {
	assert.Less(t, SlotOrder(domain.TimeMorning), SlotOrder(domain.TimeAfternoon))
	assert.Less(t, SlotOrder(domain.TimeAfternoon), SlotOrder(domain.TimeEvening))
	assert.Less(t, SlotOrder(domain.TimeEvening), SlotOrder(domain.TimeAny))
}

func TestProximitySynthetic(t *testing.T) {
	morning := domain.Activity{ID: "a", Category: "museum", BestTimeOfDay: domain.TimeMorning}
	evening := domain.Activity{ID: "b", Category: "museum", BestTimeOfDay: domain.TimeEvening}
	anyTime := domain.Activity{ID: "c", Category: "park", BestTimeOfDay: domain.TimeAny}

	// Two slots apart, same category: 2*1.2 + 0.3.
	assert.InDelta(t, 2.7, Proximity(morning, evening), 1e-9)

	// "any" uses the fixed slot distance; different category adds 1.
	assert.InDelta(t, 1.8, Proximity(morning, anyTime), 1e-9)
}

func TestProximityPrefersCoordinates(t *testing.T) {
	a := domain.Activity{ID: "a", Location: &domain.LatLng{Lat: 48.8566, Lng: 2.3522}}
	b := domain.Activity{ID: "b", Location: &domain.LatLng{Lat: 48.8606, Lng: 2.3376}}

	d := Proximity(a, b)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 2.0) // both points are inside central Paris
}
