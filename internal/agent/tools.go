package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/logging"
	"github.com/roamline/roamline/internal/places"
	"github.com/roamline/roamline/internal/planner"
	"github.com/roamline/roamline/internal/subagent"
	"github.com/samber/lo"
)

// Per-tool input payloads. Each tool has exactly one schema, decoded
// strictly at the dispatch boundary; unknown fields are rejected.

type selectActivitiesInput struct {
	ActivityIDs []string `json:"activityIds"`
}

type adjustDayGroupsInput struct {
	ActivityID string `json:"activityId"`
	FromDay    int    `json:"fromDay"`
	ToDay      int    `json:"toDay"`
}

type selectRestaurantsInput struct {
	RestaurantIDs []string `json:"restaurantIds"`
}

type mealPreferencesInput struct {
	Preferences []string `json:"preferences"`
}

type selectOptionInput struct {
	OptionID string `json:"optionId"`
}

type finalizeInput struct{}

// ErrMalformedInput marks tool inputs that failed schema decoding, as
// opposed to well-formed inputs that failed semantic checks.
var ErrMalformedInput = errors.New("malformed tool input")

// decodeStrict unmarshals a tool input, rejecting unknown fields.
func decodeStrict(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return nil
}

// ToolExecutor applies tool actions to a working session clone. Effects
// never touch the stored session; the supervisor commits or discards
// the clone as a whole.
type ToolExecutor struct {
	travel *subagent.Runner
	places places.Client
	log    *logging.Logger
}

// NewToolExecutor creates an executor using the given collaborators.
func NewToolExecutor(travel *subagent.Runner, placesClient places.Client, log *logging.Logger) *ToolExecutor {
	return &ToolExecutor{travel: travel, places: placesClient, log: log.Sub("tools")}
}

// Execute runs one tool action against ws. The returned message, when
// non-empty, replaces the loop's assistant message (used by finalize's
// closing summary).
func (e *ToolExecutor) Execute(ctx context.Context, action domain.ToolAction, ws *domain.Session) (string, error) {
	switch action.Tool {
	case domain.ToolSelectActivities:
		var in selectActivitiesInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return "", e.selectActivities(ctx, in, ws)

	case domain.ToolAdjustDayGroups:
		var in adjustDayGroupsInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return "", e.adjustDayGroups(in, ws)

	case domain.ToolSelectRestaurants:
		var in selectRestaurantsInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return "", e.selectRestaurants(in, ws)

	case domain.ToolSetMealPreferences:
		var in mealPreferencesInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return "", e.setMealPreferences(ctx, in, ws)

	case domain.ToolSelectAccommodation:
		var in selectOptionInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return "", selectTravelOption(in.OptionID, ws.AccommodationOptions, &ws.SelectedAccommodationID)

	case domain.ToolSelectFlight:
		var in selectOptionInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return "", selectTravelOption(in.OptionID, ws.FlightOptions, &ws.SelectedFlightID)

	case domain.ToolFinalize:
		var in finalizeInput
		if err := decodeStrict(action.Input, &in); err != nil {
			return "", err
		}
		return composeFinalSummary(ws), nil

	default:
		return "", fmt.Errorf("unknown tool %q", action.Tool)
	}
}

// selectActivities replaces the selection, re-runs the day-grouping
// optimizer, and kicks off both travel-offer searches.
func (e *ToolExecutor) selectActivities(ctx context.Context, in selectActivitiesInput, ws *domain.Session) error {
	if len(in.ActivityIDs) == 0 {
		return fmt.Errorf("select_activities: empty selection")
	}

	// Dedupe before resolving: a repeated id must not land on two days.
	ids := lo.Uniq(in.ActivityIDs)
	selected := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		a, ok := ws.Activity(id)
		if !ok {
			return fmt.Errorf("select_activities: unknown activity id %q", id)
		}
		selected = append(selected, a)
	}

	ws.SelectedActivityIDs = ids
	ws.DayGroups = planner.GroupActivitiesByDay(ws.Trip, selected)
	ws.GroupedDays = planner.Hydrate(ws.DayGroups, ws.SuggestedActivities, e.selectedRestaurants(ws))

	ws.AccommodationStatus = domain.SearchRunning
	ws.FlightStatus = domain.SearchRunning
	results := e.travel.Run(ctx, ws)
	ws.AccommodationStatus = results.Accommodation.Status
	ws.AccommodationOptions = results.Accommodation.Options
	ws.FlightStatus = results.Flight.Status
	ws.FlightOptions = results.Flight.Options

	return nil
}

// adjustDayGroups moves one activity between two days and regenerates
// both days' themes.
func (e *ToolExecutor) adjustDayGroups(in adjustDayGroupsInput, ws *domain.Session) error {
	if in.ActivityID == "" {
		return fmt.Errorf("adjust_day_groups: missing activity id")
	}
	if in.FromDay == in.ToDay {
		return fmt.Errorf("adjust_day_groups: source and target day are the same")
	}

	from := dayGroup(ws, in.FromDay)
	to := dayGroup(ws, in.ToDay)
	if from == nil || to == nil {
		return fmt.Errorf("adjust_day_groups: no such day (%d -> %d)", in.FromDay, in.ToDay)
	}
	if !lo.Contains(from.ActivityIDs, in.ActivityID) {
		return fmt.Errorf("adjust_day_groups: activity %q is not on day %d", in.ActivityID, in.FromDay)
	}

	from.ActivityIDs = lo.Without(from.ActivityIDs, in.ActivityID)
	to.ActivityIDs = append(to.ActivityIDs, in.ActivityID)

	from.Theme = planner.Theme(activitiesOf(ws, from.ActivityIDs))
	to.Theme = planner.Theme(activitiesOf(ws, to.ActivityIDs))

	ws.GroupedDays = planner.Hydrate(ws.DayGroups, ws.SuggestedActivities, e.selectedRestaurants(ws))
	return nil
}

func (e *ToolExecutor) selectRestaurants(in selectRestaurantsInput, ws *domain.Session) error {
	known := lo.SliceToMap(ws.RestaurantSuggestions, func(r domain.Restaurant) (string, struct{}) {
		return r.ID, struct{}{}
	})
	for _, id := range in.RestaurantIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("select_restaurants: unknown restaurant id %q", id)
		}
	}
	ws.SelectedRestaurantIDs = lo.Uniq(in.RestaurantIDs)
	ws.GroupedDays = planner.Hydrate(ws.DayGroups, ws.SuggestedActivities, e.selectedRestaurants(ws))
	return nil
}

// setMealPreferences records the preferences and refreshes restaurant
// suggestions from the places collaborator. A places failure keeps the
// preferences but leaves suggestions unchanged.
func (e *ToolExecutor) setMealPreferences(ctx context.Context, in mealPreferencesInput, ws *domain.Session) error {
	if len(in.Preferences) == 0 {
		return fmt.Errorf("set_meal_preferences: empty preferences")
	}
	ws.MealPreferences = in.Preferences

	query := strings.Join(in.Preferences, " ") + " restaurants " + ws.Trip.Destination
	records, err := e.places.SearchPlaces(ctx, query, firstActivityLocation(ws), 3000)
	if err != nil {
		e.log.Warn().Str("sessionId", ws.ID).Err(err).Msg("places search failed, keeping previous suggestions")
		return nil
	}

	suggestions := make([]domain.Restaurant, 0, len(records))
	for i, rec := range records {
		day := 0
		if len(ws.DayGroups) > 0 {
			day = ws.DayGroups[i%len(ws.DayGroups)].Day
		}
		suggestions = append(suggestions, domain.Restaurant{
			ID:       rec.ID,
			Name:     rec.Name,
			Cuisine:  rec.Category,
			Rating:   rec.Rating,
			Day:      day,
			Location: rec.Location,
		})
	}
	ws.RestaurantSuggestions = suggestions
	return nil
}

func selectTravelOption(optionID string, options []domain.TravelOption, target *string) error {
	if optionID == "" {
		return fmt.Errorf("missing option id")
	}
	_, ok := lo.Find(options, func(o domain.TravelOption) bool { return o.ID == optionID })
	if !ok {
		return fmt.Errorf("unknown travel option %q", optionID)
	}
	*target = optionID
	return nil
}

// composeFinalSummary builds the closing message for a finalized plan.
func composeFinalSummary(ws *domain.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your %s trip is finalized!", ws.Trip.Destination)
	for _, g := range ws.DayGroups {
		fmt.Fprintf(&b, "\nDay %d — %s: %d activities", g.Day, g.Theme, len(g.ActivityIDs))
	}
	if ws.SelectedAccommodationID != "" {
		if opt, ok := lo.Find(ws.AccommodationOptions, func(o domain.TravelOption) bool {
			return o.ID == ws.SelectedAccommodationID
		}); ok {
			fmt.Fprintf(&b, "\nStaying at %s.", opt.Name)
		}
	}
	if ws.SelectedFlightID != "" {
		if opt, ok := lo.Find(ws.FlightOptions, func(o domain.TravelOption) bool {
			return o.ID == ws.SelectedFlightID
		}); ok {
			fmt.Fprintf(&b, "\nFlying with %s.", opt.Name)
		}
	}
	b.WriteString("\nHave a wonderful trip!")
	return b.String()
}

func dayGroup(ws *domain.Session, day int) *domain.DayGroup {
	for i := range ws.DayGroups {
		if ws.DayGroups[i].Day == day {
			return &ws.DayGroups[i]
		}
	}
	return nil
}

func activitiesOf(ws *domain.Session, ids []string) []domain.Activity {
	out := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		if a, ok := ws.Activity(id); ok {
			out = append(out, a)
		}
	}
	return out
}

func (e *ToolExecutor) selectedRestaurants(ws *domain.Session) []domain.Restaurant {
	return lo.Filter(ws.RestaurantSuggestions, func(r domain.Restaurant, _ int) bool {
		return lo.Contains(ws.SelectedRestaurantIDs, r.ID)
	})
}

func firstActivityLocation(ws *domain.Session) *domain.LatLng {
	for _, a := range ws.SuggestedActivities {
		if a.Location != nil {
			return a.Location
		}
	}
	return nil
}
