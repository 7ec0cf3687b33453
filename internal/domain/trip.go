package domain

import "time"

// TimeOfDay tags an activity with its preferred slot.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeAny       TimeOfDay = "any"
)

// Anchored reports whether the slot is fixed rather than flexible.
func (t TimeOfDay) Anchored() bool {
	return t == TimeMorning || t == TimeAfternoon || t == TimeEvening
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TripInfo holds the facts gathered about the trip being planned.
type TripInfo struct {
	Destination  string     `json:"destination,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	DurationDays int        `json:"durationDays,omitempty"`
	Travelers    int        `json:"travelers,omitempty"`
	Preferences  []string   `json:"preferences,omitempty"`
}

// Activity is a single point of interest offered to the user.
// Immutable once suggested; referenced by ID from day groups.
type Activity struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	EstDuration   string    `json:"estDuration,omitempty"` // free text, e.g. "2-3 hours"
	BestTimeOfDay TimeOfDay `json:"bestTimeOfDay"`
	Rating        float64   `json:"rating,omitempty"`
	Location      *LatLng   `json:"location,omitempty"`
}
