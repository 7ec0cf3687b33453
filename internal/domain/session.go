package domain

import (
	"slices"
	"time"
)

// MaxRecoveryHints bounds the rolling audit log of recovered failures.
const MaxRecoveryHints = 20

// Message is one line of the conversation transcript.
type Message struct {
	Role      string    `json:"role"` // "user", "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RecoveryHint is a bounded audit-log entry describing a failure that
// was recovered within a single turn.
type RecoveryHint struct {
	TurnID string        `json:"turnId"`
	Stage  WorkflowState `json:"stage"`
	Kind   string        `json:"kind"` // "validation", "allow_list", "schema", "execution", "collaborator", "transition"
	Detail string        `json:"detail"`
	At     time.Time     `json:"at"`
}

// Session is the full state of one planning conversation. It is owned
// by the session store and mutated only through the store's commit
// operation, never by direct field writes from callers.
type Session struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`

	State WorkflowState `json:"workflowState"`
	Trip  TripInfo      `json:"tripInfo"`

	SuggestedActivities []Activity `json:"suggestedActivities,omitempty"`
	SelectedActivityIDs []string   `json:"selectedActivityIds,omitempty"`

	DayGroups   []DayGroup   `json:"dayGroups,omitempty"`
	GroupedDays []GroupedDay `json:"groupedDays,omitempty"`

	RestaurantSuggestions []Restaurant `json:"restaurantSuggestions,omitempty"`
	SelectedRestaurantIDs []string     `json:"selectedRestaurantIds,omitempty"`
	MealPreferences       []string     `json:"mealPreferences,omitempty"`

	AccommodationStatus     SearchStatus   `json:"accommodationStatus"`
	FlightStatus            SearchStatus   `json:"flightStatus"`
	AccommodationOptions    []TravelOption `json:"accommodationOptions,omitempty"`
	FlightOptions           []TravelOption `json:"flightOptions,omitempty"`
	SelectedAccommodationID string         `json:"selectedAccommodationOptionId,omitempty"`
	SelectedFlightID        string         `json:"selectedFlightOptionId,omitempty"`

	ActiveLoop     LoopName    `json:"activeLoop,omitempty"`
	LastTurnID     string      `json:"lastTurnId,omitempty"`
	LastLoopResult *LoopResult `json:"loopResult,omitempty"`

	RecoveryHints []RecoveryHint `json:"recoveryHints,omitempty"`
	Transcript    []Message      `json:"transcript,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TravelSearch returns the combined travel-offer search state.
func (s *Session) TravelSearch() TravelSearch {
	return TravelSearch{Accommodation: s.AccommodationStatus, Flight: s.FlightStatus}
}

// Activity looks up a suggested activity by ID.
func (s *Session) Activity(id string) (Activity, bool) {
	for _, a := range s.SuggestedActivities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// AddRecoveryHint appends a hint, dropping the oldest entries beyond
// MaxRecoveryHints.
func (s *Session) AddRecoveryHint(h RecoveryHint) {
	s.RecoveryHints = append(s.RecoveryHints, h)
	if n := len(s.RecoveryHints); n > MaxRecoveryHints {
		s.RecoveryHints = s.RecoveryHints[n-MaxRecoveryHints:]
	}
}

// Clone returns a deep copy of the session. The turn supervisor mutates
// clones, never the stored session itself.
func (s *Session) Clone() *Session {
	c := *s

	c.Trip.Preferences = slices.Clone(s.Trip.Preferences)
	if s.Trip.StartDate != nil {
		d := *s.Trip.StartDate
		c.Trip.StartDate = &d
	}
	if s.Trip.EndDate != nil {
		d := *s.Trip.EndDate
		c.Trip.EndDate = &d
	}

	c.SuggestedActivities = cloneActivities(s.SuggestedActivities)
	c.SelectedActivityIDs = slices.Clone(s.SelectedActivityIDs)

	c.DayGroups = make([]DayGroup, len(s.DayGroups))
	for i, g := range s.DayGroups {
		g.ActivityIDs = slices.Clone(g.ActivityIDs)
		c.DayGroups[i] = g
	}
	c.GroupedDays = make([]GroupedDay, len(s.GroupedDays))
	for i, g := range s.GroupedDays {
		g.Activities = cloneActivities(g.Activities)
		g.Restaurants = cloneRestaurants(g.Restaurants)
		c.GroupedDays[i] = g
	}

	c.RestaurantSuggestions = cloneRestaurants(s.RestaurantSuggestions)
	c.SelectedRestaurantIDs = slices.Clone(s.SelectedRestaurantIDs)
	c.MealPreferences = slices.Clone(s.MealPreferences)

	c.AccommodationOptions = slices.Clone(s.AccommodationOptions)
	c.FlightOptions = slices.Clone(s.FlightOptions)

	if s.LastLoopResult != nil {
		lr := *s.LastLoopResult
		lr.Actions = slices.Clone(s.LastLoopResult.Actions)
		c.LastLoopResult = &lr
	}

	c.RecoveryHints = slices.Clone(s.RecoveryHints)
	c.Transcript = slices.Clone(s.Transcript)

	return &c
}

func cloneActivities(in []Activity) []Activity {
	out := make([]Activity, len(in))
	for i, a := range in {
		if a.Location != nil {
			loc := *a.Location
			a.Location = &loc
		}
		out[i] = a
	}
	return out
}

func cloneRestaurants(in []Restaurant) []Restaurant {
	out := make([]Restaurant, len(in))
	for i, r := range in {
		if r.Location != nil {
			loc := *r.Location
			r.Location = &loc
		}
		out[i] = r
	}
	return out
}
