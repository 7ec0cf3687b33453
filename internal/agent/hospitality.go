package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
)

// HospitalityLoop handles meal planning and the final review: dining
// picks, lodging and flight selection, and finalizing the plan.
type HospitalityLoop struct {
	llm llm.Client
	log *logging.Logger

	uiHandlers map[string]uiHandler
}

func NewHospitalityLoop(client llm.Client, log *logging.Logger) *HospitalityLoop {
	l := &HospitalityLoop{llm: client, log: log.Sub("hospitality")}
	l.uiHandlers = map[string]uiHandler{
		"set_meal_preferences": uiToolRelay(domain.ToolSetMealPreferences, "Noted. Let me find places that fit."),
		"select_restaurants":   uiToolRelay(domain.ToolSelectRestaurants, "Reserving those picks in the plan."),
		"select_accommodation": uiToolRelay(domain.ToolSelectAccommodation, "Locking in that stay."),
		"select_flight":        uiToolRelay(domain.ToolSelectFlight, "Locking in that flight."),
		"confirm_meals":        l.confirmMeals,
		"finalize":             l.finalize,
	}
	return l
}

func (l *HospitalityLoop) Name() domain.LoopName { return domain.LoopHospitality }

func (l *HospitalityLoop) Run(ctx context.Context, lc *LoopContext) (*domain.LoopResult, error) {
	if lc.Trigger == domain.TriggerUIAction && lc.UIAction != nil {
		if h, ok := l.uiHandlers[lc.UIAction.Type]; ok {
			return h(lc), nil
		}
		l.log.Debug().Str("uiAction", lc.UIAction.Type).Msg("unrecognized ui action, asking the model")
	}
	return modelFallback(ctx, l.llm, l.log, lc, llm.TaskMealPlanning, l.fallbackSystem(lc.Session))
}

func (l *HospitalityLoop) confirmMeals(lc *LoopContext) *domain.LoopResult {
	if lc.Session.State != domain.StateMealPreferences {
		return &domain.LoopResult{
			Message:    "Meals are already settled; we're on to the final review.",
			Confidence: 1,
			StopReason: domain.StopNeedsUserInput,
		}
	}
	return &domain.LoopResult{
		Message:       "Dining sorted. Here's the whole plan for a last look.",
		Confidence:    1,
		ProposedState: domain.StateReview,
		StopReason:    domain.StopCompletedStage,
	}
}

// finalize closes the plan. The travel-readiness gate itself lives in
// the stage-transition rules; this handler just gives a helpful message
// when the gate would deny.
func (l *HospitalityLoop) finalize(lc *LoopContext) *domain.LoopResult {
	if travel := lc.Session.TravelSearch(); !travel.Ready() {
		return &domain.LoopResult{
			Message:    "Almost there. I'm still waiting on lodging and flight offers before we can wrap up.",
			Confidence: 1,
			StopReason: domain.StopNeedsUserInput,
		}
	}
	return &domain.LoopResult{
		Message:       "Wrapping everything up.",
		Confidence:    1,
		Actions:       []domain.ToolAction{{Tool: domain.ToolFinalize}},
		ProposedState: domain.StateFinalize,
		StopReason:    domain.StopCompletedStage,
	}
}

func (l *HospitalityLoop) fallbackSystem(s *domain.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a travel-planning assistant handling dining and bookings for a trip to %s.\n", s.Trip.Destination)
	if len(s.MealPreferences) > 0 {
		fmt.Fprintf(&b, "Meal preferences: %s.\n", strings.Join(s.MealPreferences, ", "))
	}
	if len(s.RestaurantSuggestions) > 0 {
		b.WriteString("Restaurant suggestions:\n")
		for _, r := range s.RestaurantSuggestions {
			fmt.Fprintf(&b, "- %s (%s) id=%s\n", r.Name, r.Cuisine, r.ID)
		}
	}
	writeTravelOptions(&b, "Accommodation", s.AccommodationOptions)
	writeTravelOptions(&b, "Flights", s.FlightOptions)
	b.WriteString(hospitalityToolsSystem)
	return b.String()
}

func writeTravelOptions(b *strings.Builder, label string, options []domain.TravelOption) {
	if len(options) == 0 {
		return
	}
	fmt.Fprintf(b, "%s offers:\n", label)
	for _, o := range options {
		fmt.Fprintf(b, "- %s, %.0f %s, id=%s\n", o.Name, o.Price, o.Currency, o.ID)
	}
}

const hospitalityToolsSystem = `Reply with JSON:
{"message": "<reply to the user>", "confidence": 0.0,
 "actions": [], "proposedState": ""}
Available tools: set_meal_preferences {"preferences": [..]},
select_restaurants {"restaurantIds": [..]},
select_accommodation {"optionId": ""}, select_flight {"optionId": ""},
finalize {}.
Only propose actions you are sure about; otherwise return none and ask.`
