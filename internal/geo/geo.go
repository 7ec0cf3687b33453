// Package geo holds the pure distance and duration utilities the
// day-grouping optimizer is built on.
package geo

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roamline/roamline/internal/domain"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates
// in kilometers.
func Haversine(a, b domain.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Duration parse bounds in hours.
const (
	minDurationHours     = 0.5
	maxDurationHours     = 10
	defaultDurationHours = 2
)

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseDurationHours normalizes a free-text estimated duration to hours.
// "full day"/"all day" map to 8, "half day" to 4. Otherwise the first one
// or two numeric tokens are used (a range is averaged), values are read
// as minutes when the text says "min" without "hour", and the result is
// clamped to [0.5, 10]. Unparseable text defaults to 2.
func ParseDurationHours(text string) float64 {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return defaultDurationHours
	}

	if strings.Contains(s, "full day") || strings.Contains(s, "all day") {
		return 8
	}
	if strings.Contains(s, "half day") {
		return 4
	}

	tokens := numberRe.FindAllString(s, 2)
	if len(tokens) == 0 {
		return defaultDurationHours
	}

	first, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return defaultDurationHours
	}
	value := first
	if len(tokens) == 2 {
		if second, err := strconv.ParseFloat(tokens[1], 64); err == nil {
			value = (first + second) / 2
		}
	}

	if strings.Contains(s, "min") && !strings.Contains(s, "hour") {
		value /= 60
	}

	return clamp(value, minDurationHours, maxDurationHours)
}

// slotOrder maps each fixed time-of-day slot to its position in a day.
var slotOrder = map[domain.TimeOfDay]int{
	domain.TimeMorning:   0,
	domain.TimeAfternoon: 1,
	domain.TimeEvening:   2,
	domain.TimeAny:       3,
}

// SlotOrder returns the same-day ordering rank of a time-of-day tag.
// Anchored slots come before "any"; unknown tags sort last.
func SlotOrder(t domain.TimeOfDay) int {
	if o, ok := slotOrder[t]; ok {
		return o
	}
	return 4
}

// Synthetic-proximity tuning.
const (
	slotDistanceWeight = 1.2
	anySlotDistance    = 0.8
	sameCategoryCost   = 0.3
	diffCategoryCost   = 1.0
)

// Proximity is the distance proxy between two activities: haversine
// kilometers when both have coordinates, otherwise a synthetic distance
// built from time-of-day slot separation and category affinity.
func Proximity(a, b domain.Activity) float64 {
	if a.Location != nil && b.Location != nil {
		return Haversine(*a.Location, *b.Location)
	}

	var slot float64
	if a.BestTimeOfDay == domain.TimeAny || b.BestTimeOfDay == domain.TimeAny {
		slot = anySlotDistance
	} else {
		slot = math.Abs(float64(SlotOrder(a.BestTimeOfDay)-SlotOrder(b.BestTimeOfDay))) * slotDistanceWeight
	}

	if a.Category == b.Category {
		return slot + sameCategoryCost
	}
	return slot + diffCategoryCost
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
