package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
)

const gatherSystemPrompt = `You are a travel-planning assistant collecting trip basics.
Extract any trip details the user has given so far and ask for what is
still missing. Reply with JSON:
{"message": "<your reply to the user>",
 "fields": {"destination": "", "startDate": "YYYY-MM-DD", "endDate": "YYYY-MM-DD",
            "durationDays": 0, "travelers": 0, "preferences": []}}
Omit fields the user has not stated. Never invent values.`

// tripFieldsPayload is the structured extraction the model returns
// during information gathering.
type tripFieldsPayload struct {
	Destination  string   `json:"destination,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	DurationDays int      `json:"durationDays,omitempty"`
	Travelers    int      `json:"travelers,omitempty"`
	Preferences  []string `json:"preferences,omitempty"`
}

// GatherHandler runs the information-gathering stage. Unlike the
// routed loops it writes trip fields into the working session itself;
// it never touches plan state except to reset it on a destination
// change.
type GatherHandler struct {
	llm llm.Client
	log *logging.Logger
}

func NewGatherHandler(client llm.Client, log *logging.Logger) *GatherHandler {
	return &GatherHandler{llm: client, log: log.Sub("gather")}
}

// Run extracts trip fields from the user's message, merges them into
// ws, and proposes moving on once the trip is sketchable.
func (h *GatherHandler) Run(ctx context.Context, lc *LoopContext, ws *domain.Session) (*domain.LoopResult, error) {
	reply, err := h.llm.Generate(ctx, llm.Request{
		Task:       llm.TaskGatherInfo,
		System:     gatherSystemPrompt,
		Prompt:     lc.Message,
		Transcript: lc.Transcript,
	})
	if err != nil {
		h.log.Warn().Str("sessionId", ws.ID).Err(err).Msg("gather generation failed")
		return &domain.LoopResult{
			Message:    "I hit a snag understanding that. Could you tell me again where you'd like to go and when?",
			Confidence: 0,
			StopReason: domain.StopNeedsUserInput,
		}, nil
	}

	var fields tripFieldsPayload
	if len(reply.Fields) > 0 {
		if err := reply.DecodeFields(&fields); err != nil {
			h.log.Warn().Str("sessionId", ws.ID).Err(err).Msg("unusable trip fields, keeping message only")
		}
	}
	h.merge(ws, fields)

	result := &domain.LoopResult{
		Message:    reply.Message,
		Confidence: 0.9,
		StopReason: domain.StopNeedsUserInput,
	}
	if sketchable(ws.Trip) {
		result.ProposedState = domain.StateInitialResearch
		result.StopReason = domain.StopCompletedStage
		if result.Message == "" {
			result.Message = fmt.Sprintf("Great, %s it is. Let me pull together some ideas.", ws.Trip.Destination)
		}
	} else if result.Message == "" {
		result.Message = "Tell me a bit more: where are you headed, and roughly when?"
	}
	return result, nil
}

// merge folds extracted fields into the trip. A destination change
// invalidates everything planned downstream.
func (h *GatherHandler) merge(ws *domain.Session, fields tripFieldsPayload) {
	trip := &ws.Trip

	if d := strings.TrimSpace(fields.Destination); d != "" && !strings.EqualFold(d, trip.Destination) {
		if trip.Destination != "" {
			h.log.Info().Str("sessionId", ws.ID).
				Str("from", trip.Destination).Str("to", d).
				Msg("destination changed, resetting plan state")
			resetPlanState(ws)
		}
		trip.Destination = d
	}
	if t := parseDate(fields.StartDate); t != nil {
		trip.StartDate = t
	}
	if t := parseDate(fields.EndDate); t != nil {
		trip.EndDate = t
	}
	if fields.DurationDays > 0 {
		trip.DurationDays = fields.DurationDays
	}
	if fields.Travelers > 0 {
		trip.Travelers = fields.Travelers
	}
	for _, p := range fields.Preferences {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !containsFold(trip.Preferences, p) {
			trip.Preferences = append(trip.Preferences, p)
		}
	}
}

// resetPlanState clears everything derived from the old destination.
func resetPlanState(ws *domain.Session) {
	ws.SuggestedActivities = nil
	ws.SelectedActivityIDs = nil
	ws.DayGroups = nil
	ws.GroupedDays = nil
	ws.RestaurantSuggestions = nil
	ws.SelectedRestaurantIDs = nil
	ws.MealPreferences = nil
	ws.AccommodationStatus = domain.SearchIdle
	ws.FlightStatus = domain.SearchIdle
	ws.AccommodationOptions = nil
	ws.FlightOptions = nil
	ws.SelectedAccommodationID = ""
	ws.SelectedFlightID = ""
}

// sketchable reports whether enough of the trip is known to research
// activities: a destination plus either dates or a duration.
func sketchable(trip domain.TripInfo) bool {
	if trip.Destination == "" {
		return false
	}
	return trip.DurationDays > 0 || (trip.StartDate != nil && trip.EndDate != nil)
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
