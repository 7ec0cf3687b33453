package domain

import "time"

// DayGroup assigns activities (by ID) to one day of the trip.
// Across all groups of a session, every selected activity ID appears
// exactly once.
type DayGroup struct {
	Day         int       `json:"day"` // 1-based
	Date        time.Time `json:"date"`
	Theme       string    `json:"theme"`
	ActivityIDs []string  `json:"activityIds"`
}

// GroupedDay is a DayGroup hydrated with full activity records and any
// restaurants assigned to that day.
type GroupedDay struct {
	Day         int          `json:"day"`
	Date        time.Time    `json:"date"`
	Theme       string       `json:"theme"`
	Activities  []Activity   `json:"activities"`
	Restaurants []Restaurant `json:"restaurants,omitempty"`
}

// Restaurant is a dining suggestion tied to a day of the trip.
type Restaurant struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Cuisine  string  `json:"cuisine,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Day      int     `json:"day,omitempty"`
	Location *LatLng `json:"location,omitempty"`
}

// SearchStatus tracks the lifecycle of a travel-offer sub-agent search.
type SearchStatus string

const (
	SearchIdle     SearchStatus = "idle"
	SearchRunning  SearchStatus = "running"
	SearchComplete SearchStatus = "complete"
	SearchFailed   SearchStatus = "failed"
)

// TravelOption is one accommodation or flight offer returned by a
// sub-agent search.
type TravelOption struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"` // "accommodation" | "flight"
	Name     string  `json:"name"`
	Detail   string  `json:"detail,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

// TravelSearch is the combined state of both travel-offer searches.
type TravelSearch struct {
	Accommodation SearchStatus `json:"accommodation"`
	Flight        SearchStatus `json:"flight"`
}

// Ready is the single finalize-gate predicate: both searches finished
// successfully. All call sites (validator included) go through this.
func (t TravelSearch) Ready() bool {
	return t.Accommodation == SearchComplete && t.Flight == SearchComplete
}
