package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
	"github.com/roamline/roamline/internal/places"
	"github.com/samber/lo"
)

const researchSystemPrompt = `You are a travel-planning assistant researching things to do.
Suggest 8 to 12 concrete activities for the trip described. Reply with JSON:
{"message": "<a short pitch for the suggestions>",
 "fields": {"activities": [{"name": "", "category": "", "estDuration": "2 hours",
                            "bestTimeOfDay": "morning|afternoon|evening|any"}]}}
Categories are single lowercase words such as museum, park, landmark, market.`

// activityPayload is one suggested activity as the model returns it.
type activityPayload struct {
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	EstDuration   string `json:"estDuration,omitempty"`
	BestTimeOfDay string `json:"bestTimeOfDay,omitempty"`
}

type researchPayload struct {
	Activities []activityPayload `json:"activities"`
}

// ResearchHandler runs the activity-research stage: one generation for
// candidate activities, enriched with coordinates and ratings from the
// places collaborator.
type ResearchHandler struct {
	llm    llm.Client
	places places.Client
	log    *logging.Logger
}

func NewResearchHandler(client llm.Client, placesClient places.Client, log *logging.Logger) *ResearchHandler {
	return &ResearchHandler{llm: client, places: placesClient, log: log.Sub("research")}
}

// Run fills ws.SuggestedActivities and proposes the grouping stage.
func (h *ResearchHandler) Run(ctx context.Context, lc *LoopContext, ws *domain.Session) (*domain.LoopResult, error) {
	reply, err := h.llm.Generate(ctx, llm.Request{
		Task:       llm.TaskResearch,
		System:     researchSystemPrompt,
		Prompt:     researchPrompt(ws.Trip, lc.Message),
		Transcript: lc.Transcript,
	})
	if err != nil {
		h.log.Warn().Str("sessionId", ws.ID).Err(err).Msg("research generation failed")
		return &domain.LoopResult{
			Message:    "I couldn't pull activity ideas together just now. Give me another nudge and I'll retry.",
			Confidence: 0,
			StopReason: domain.StopNeedsUserInput,
		}, nil
	}

	var payload researchPayload
	if err := reply.DecodeFields(&payload); err != nil || len(payload.Activities) == 0 {
		h.log.Warn().Str("sessionId", ws.ID).Err(err).Msg("research reply had no usable activities")
		return &domain.LoopResult{
			Message:    "I came up empty on concrete suggestions. Could you tell me what kind of things you enjoy?",
			Confidence: 0.3,
			StopReason: domain.StopNeedsUserInput,
		}, nil
	}

	ws.SuggestedActivities = h.enrich(ctx, ws.Trip.Destination, payload.Activities)

	message := reply.Message
	if message == "" {
		message = fmt.Sprintf("Here are %d ideas for %s. Pick the ones you like and I'll sketch the days.",
			len(ws.SuggestedActivities), ws.Trip.Destination)
	}
	return &domain.LoopResult{
		Message:       message,
		Confidence:    0.85,
		ProposedState: domain.StateGroupDays,
		StopReason:    domain.StopCompletedStage,
	}, nil
}

// enrich resolves coordinates and ratings per suggestion. A places
// failure leaves the activity usable without a location.
func (h *ResearchHandler) enrich(ctx context.Context, destination string, suggestions []activityPayload) []domain.Activity {
	out := make([]domain.Activity, 0, len(suggestions))
	for _, s := range suggestions {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		act := domain.Activity{
			ID:            uuid.NewString(),
			Name:          name,
			Category:      strings.ToLower(strings.TrimSpace(s.Category)),
			EstDuration:   s.EstDuration,
			BestTimeOfDay: domain.TimeOfDay(s.BestTimeOfDay),
		}
		records, err := h.places.SearchPlaces(ctx, name+" "+destination, nil, 0)
		if err != nil {
			h.log.Debug().Str("activity", name).Err(err).Msg("places lookup failed")
		} else if rec, ok := lo.Find(records, func(r places.PlaceRecord) bool {
			return r.Location != nil
		}); ok {
			act.Location = rec.Location
			act.Rating = rec.Rating
		}
		out = append(out, act)
	}
	return out
}

func researchPrompt(trip domain.TripInfo, userMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Destination: %s.", trip.Destination)
	if trip.DurationDays > 0 {
		fmt.Fprintf(&b, " Duration: %d days.", trip.DurationDays)
	}
	if trip.Travelers > 0 {
		fmt.Fprintf(&b, " Travelers: %d.", trip.Travelers)
	}
	if len(trip.Preferences) > 0 {
		fmt.Fprintf(&b, " Interests: %s.", strings.Join(trip.Preferences, ", "))
	}
	if userMessage != "" {
		fmt.Fprintf(&b, " Latest request: %s", userMessage)
	}
	return b.String()
}
