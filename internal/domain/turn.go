package domain

import "encoding/json"

// TriggerType distinguishes free-text turns from structured UI actions.
type TriggerType string

const (
	TriggerUserMessage TriggerType = "user_message"
	TriggerUIAction    TriggerType = "ui_action"
)

// UIAction is a structured interaction from the UI, e.g. the user
// pressing "confirm grouping".
type UIAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TurnRequest is one inbound request/response cycle of the conversation.
type TurnRequest struct {
	SessionID string      `json:"sessionId"`
	Trigger   TriggerType `json:"trigger"`
	Message   string      `json:"message,omitempty"`
	UIAction  *UIAction   `json:"uiAction,omitempty"`
}

// TurnResponse is the session snapshot returned after a turn.
type TurnResponse struct {
	Success                 bool           `json:"success"`
	SessionID               string         `json:"sessionId"`
	WorkflowState           WorkflowState  `json:"workflowState"`
	Message                 string         `json:"message"`
	TripInfo                TripInfo       `json:"tripInfo"`
	SuggestedActivities     []Activity     `json:"suggestedActivities,omitempty"`
	SelectedActivityIDs     []string       `json:"selectedActivityIds,omitempty"`
	DayGroups               []DayGroup     `json:"dayGroups,omitempty"`
	GroupedDays             []GroupedDay   `json:"groupedDays,omitempty"`
	RestaurantSuggestions   []Restaurant   `json:"restaurantSuggestions,omitempty"`
	SelectedRestaurantIDs   []string       `json:"selectedRestaurantIds,omitempty"`
	AccommodationStatus     SearchStatus   `json:"accommodationStatus"`
	FlightStatus            SearchStatus   `json:"flightStatus"`
	AccommodationOptions    []TravelOption `json:"accommodationOptions,omitempty"`
	FlightOptions           []TravelOption `json:"flightOptions,omitempty"`
	SelectedAccommodationID string         `json:"selectedAccommodationOptionId,omitempty"`
	SelectedFlightID        string         `json:"selectedFlightOptionId,omitempty"`
	ActiveLoop              LoopName       `json:"activeLoop,omitempty"`
	LoopResult              *LoopResult    `json:"loopResult,omitempty"`
}

// SnapshotFrom builds a TurnResponse from a committed session.
func SnapshotFrom(s *Session, success bool, message string) *TurnResponse {
	return &TurnResponse{
		Success:                 success,
		SessionID:               s.ID,
		WorkflowState:           s.State,
		Message:                 message,
		TripInfo:                s.Trip,
		SuggestedActivities:     s.SuggestedActivities,
		SelectedActivityIDs:     s.SelectedActivityIDs,
		DayGroups:               s.DayGroups,
		GroupedDays:             s.GroupedDays,
		RestaurantSuggestions:   s.RestaurantSuggestions,
		SelectedRestaurantIDs:   s.SelectedRestaurantIDs,
		AccommodationStatus:     s.AccommodationStatus,
		FlightStatus:            s.FlightStatus,
		AccommodationOptions:    s.AccommodationOptions,
		FlightOptions:           s.FlightOptions,
		SelectedAccommodationID: s.SelectedAccommodationID,
		SelectedFlightID:        s.SelectedFlightID,
		ActiveLoop:              s.ActiveLoop,
		LoopResult:              s.LastLoopResult,
	}
}
