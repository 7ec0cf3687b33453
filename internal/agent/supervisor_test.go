package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
	"github.com/roamline/roamline/internal/places"
	"github.com/roamline/roamline/internal/store"
	"github.com/roamline/roamline/internal/subagent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      store.Store
	llm        *llm.MockClient
	places     *places.MockClient
	supervisor *Supervisor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.New(io.Discard, "debug")
	st := store.NewMemoryStore(time.Minute, log)
	t.Cleanup(func() { _ = st.Close() })

	mockLLM := &llm.MockClient{ProviderName: "mock"}
	mockPlaces := &places.MockClient{}
	travel := subagent.NewRunner(
		&subagent.StaticSearcher{Kind: "accommodation", Options: []domain.TravelOption{
			{ID: "hotel-1", Kind: "accommodation", Name: "Hotel Lumen", Price: 180, Currency: "EUR"},
		}},
		&subagent.StaticSearcher{Kind: "flight", Options: []domain.TravelOption{
			{ID: "flight-1", Kind: "flight", Name: "AF 1234", Price: 240, Currency: "EUR"},
		}},
		time.Second, log,
	)

	return &fixture{
		store:      st,
		llm:        mockLLM,
		places:     mockPlaces,
		supervisor: NewSupervisor(st, mockLLM, mockPlaces, travel, log),
	}
}

// seedSession creates a session and force-commits it into the given shape.
func (f *fixture) seedSession(t *testing.T, mutate func(s *domain.Session)) *domain.Session {
	t.Helper()
	s, err := f.store.Create(domain.TripInfo{Destination: "Lisbon", DurationDays: 3, Travelers: 2})
	require.NoError(t, err)
	if mutate != nil {
		mutate(s)
		s, err = f.store.Commit(s, s.Version)
		require.NoError(t, err)
	}
	return s
}

func suggested(n int) []domain.Activity {
	out := make([]domain.Activity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Activity{
			ID:            fmt.Sprintf("act-%d", i),
			Name:          fmt.Sprintf("Activity %d", i),
			Category:      "museum",
			EstDuration:   "2 hours",
			BestTimeOfDay: domain.TimeAny,
		})
	}
	return out
}

func staticReply(message string, fields string) func(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	return func(ctx context.Context, req llm.Request) (*llm.Reply, error) {
		r := &llm.Reply{Message: message}
		if fields != "" {
			r.Fields = json.RawMessage(fields)
		}
		return r, nil
	}
}

func TestRunTurnValidatesRequestShape(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, nil)

	tests := []struct {
		name string
		req  domain.TurnRequest
	}{
		{"missing session id", domain.TurnRequest{Trigger: domain.TriggerUserMessage, Message: "hi"}},
		{"message trigger without message", domain.TurnRequest{SessionID: s.ID, Trigger: domain.TriggerUserMessage}},
		{"ui trigger without action", domain.TurnRequest{SessionID: s.ID, Trigger: domain.TriggerUIAction}},
		{"unknown trigger", domain.TurnRequest{SessionID: s.ID, Trigger: "webhook", Message: "hi"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.supervisor.RunTurn(context.Background(), tc.req)
			assert.Error(t, err)
		})
	}
}

func TestGatherTurnMergesTripFields(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.Trip = domain.TripInfo{}
	})
	f.llm.GenerateFunc = staticReply("Kyoto in spring, lovely. How long are you going for?",
		`{"destination": "Kyoto", "travelers": 2, "preferences": ["temples"]}`)

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage,
		Message: "We want to visit Kyoto, two of us, we love temples",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, domain.StateInfoGathering, resp.WorkflowState)
	assert.Equal(t, "Kyoto", resp.TripInfo.Destination)
	assert.Equal(t, 2, resp.TripInfo.Travelers)
	assert.Equal(t, []string{"temples"}, resp.TripInfo.Preferences)
}

func TestGatherAdvancesOnceTripIsSketchable(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.Trip = domain.TripInfo{Destination: "Kyoto", Travelers: 2}
	})
	f.llm.GenerateFunc = staticReply("Five days gives us room to breathe.",
		`{"durationDays": 5}`)

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "five days",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateInitialResearch, resp.WorkflowState)
	assert.Equal(t, 5, resp.TripInfo.DurationDays)
}

func TestDestinationChangeResetsDownstreamState(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.Trip = domain.TripInfo{Destination: "Lisbon", DurationDays: 3}
		s.SuggestedActivities = suggested(4)
		s.SelectedActivityIDs = []string{"act-0", "act-1"}
		s.DayGroups = []domain.DayGroup{{Day: 1, Theme: "Culture", ActivityIDs: []string{"act-0", "act-1"}}}
		s.AccommodationStatus = domain.SearchComplete
		s.FlightStatus = domain.SearchComplete
	})
	f.llm.GenerateFunc = staticReply("Porto instead, got it. Same three days?",
		`{"destination": "Porto"}`)

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "actually let's do Porto",
	})
	require.NoError(t, err)

	assert.Equal(t, "Porto", resp.TripInfo.Destination)
	assert.Empty(t, resp.SuggestedActivities)
	assert.Empty(t, resp.SelectedActivityIDs)
	assert.Empty(t, resp.DayGroups)
	assert.Equal(t, domain.SearchIdle, resp.AccommodationStatus)
	assert.Equal(t, domain.SearchIdle, resp.FlightStatus)
}

func TestResearchFillsSuggestionsAndAdvances(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateInitialResearch
	})
	f.llm.GenerateFunc = staticReply("Here's what Lisbon has in store.",
		`{"activities": [
			{"name": "Belem Tower", "category": "landmark", "estDuration": "1.5 hours", "bestTimeOfDay": "morning"},
			{"name": "Alfama Walk", "category": "tour", "estDuration": "3 hours", "bestTimeOfDay": "any"}
		]}`)
	f.places.SearchFunc = func(ctx context.Context, query string, near *domain.LatLng, radiusMeters int) ([]places.PlaceRecord, error) {
		return []places.PlaceRecord{{
			ID: "pl-1", Name: query, Rating: 4.6,
			Location: &domain.LatLng{Lat: 38.69, Lng: -9.21},
		}}, nil
	}

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "show me ideas",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateGroupDays, resp.WorkflowState)
	require.Len(t, resp.SuggestedActivities, 2)
	assert.Equal(t, "Belem Tower", resp.SuggestedActivities[0].Name)
	assert.NotNil(t, resp.SuggestedActivities[0].Location)
	assert.InDelta(t, 4.6, resp.SuggestedActivities[0].Rating, 1e-9)
}

func TestResearchDegradesWhenProviderFails(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateInitialResearch
	})
	f.llm.GenerateFunc = func(ctx context.Context, req llm.Request) (*llm.Reply, error) {
		return nil, &llm.ProviderError{Provider: "mock", Message: "boom"}
	}

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "show me ideas",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateInitialResearch, resp.WorkflowState)
	assert.Empty(t, resp.SuggestedActivities)
	assert.NotEmpty(t, resp.Message)
}

func TestSelectActivitiesGroupsDaysAndStartsSearches(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(6)
	})

	payload, _ := json.Marshal(selectActivitiesInput{ActivityIDs: []string{"act-0", "act-1", "act-2", "act-3"}})
	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "select_activities", Payload: payload},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.ElementsMatch(t, []string{"act-0", "act-1", "act-2", "act-3"}, resp.SelectedActivityIDs)
	assert.NotEmpty(t, resp.DayGroups)

	total := 0
	for _, g := range resp.DayGroups {
		total += len(g.ActivityIDs)
	}
	assert.Equal(t, 4, total, "every selected activity lands on exactly one day")

	assert.Equal(t, domain.SearchComplete, resp.AccommodationStatus)
	assert.Equal(t, domain.SearchComplete, resp.FlightStatus)
	assert.NotEmpty(t, resp.AccommodationOptions)
	assert.NotEmpty(t, resp.FlightOptions)
}

func TestSelectActivitiesDeduplicatesRepeatedIDs(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.Trip.DurationDays = 2
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(3)
	})

	payload, _ := json.Marshal(selectActivitiesInput{ActivityIDs: []string{"act-0", "act-1", "act-1", "act-2"}})
	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "select_activities", Payload: payload},
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.Equal(t, []string{"act-0", "act-1", "act-2"}, resp.SelectedActivityIDs)

	seen := map[string]int{}
	for _, g := range resp.DayGroups {
		for _, id := range g.ActivityIDs {
			seen[id]++
		}
	}
	assert.Equal(t, map[string]int{"act-0": 1, "act-1": 1, "act-2": 1}, seen,
		"each selected activity lands on exactly one day")
}

func TestSelectActivitiesUnknownIDAbortsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(3)
		s.SelectedActivityIDs = []string{"act-0"}
	})

	payload, _ := json.Marshal(selectActivitiesInput{ActivityIDs: []string{"act-0", "no-such-id"}})
	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "select_activities", Payload: payload},
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, []string{"act-0"}, resp.SelectedActivityIDs, "selection untouched")
	assert.Empty(t, resp.DayGroups)

	stored, err := f.store.Get(s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.RecoveryHints)
	assert.Equal(t, "execution", stored.RecoveryHints[len(stored.RecoveryHints)-1].Kind)
}

func TestMalformedToolInputRecordsSchemaHint(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(3)
	})

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "select_activities", Payload: json.RawMessage(`{"bogus": true}`)},
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	stored, err := f.store.Get(s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.RecoveryHints)
	assert.Equal(t, "schema", stored.RecoveryHints[len(stored.RecoveryHints)-1].Kind)
}

func TestToolOutsideAllowListLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(3)
	})

	// Model proposes a hospitality tool while grouping days.
	f.llm.GenerateFunc = staticReply("Booking you a hotel now.",
		`{"confidence": 0.95, "actions": [{"tool": "select_accommodation", "input": {"optionId": "hotel-1"}}]}`)

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "book me a hotel",
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Empty(t, resp.SelectedAccommodationID)
	assert.Equal(t, domain.StateGroupDays, resp.WorkflowState)

	stored, err := f.store.Get(s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.RecoveryHints)
	assert.Equal(t, "allow_list", stored.RecoveryHints[len(stored.RecoveryHints)-1].Kind)
}

func TestLowConfidenceHoldsAllEffects(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(3)
	})
	f.llm.GenerateFunc = staticReply("Maybe pick these two?",
		`{"confidence": 0.2, "actions": [{"tool": "select_activities", "input": {"activityIds": ["act-0", "act-1"]}}]}`)

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "not sure what I want",
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "Maybe pick these two?", resp.Message, "assistant still speaks")
	assert.Empty(t, resp.SelectedActivityIDs)
	assert.Empty(t, resp.DayGroups)
	assert.Equal(t, domain.StateGroupDays, resp.WorkflowState)
}

func TestConfirmGroupingAdvancesStage(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(4)
		s.SelectedActivityIDs = []string{"act-0", "act-1"}
		s.DayGroups = []domain.DayGroup{{Day: 1, Theme: "Culture", ActivityIDs: []string{"act-0", "act-1"}}}
	})

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "confirm_grouping"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.StateDayItinerary, resp.WorkflowState)
}

func TestAdjustDayGroupsMovesActivityAndRethemes(t *testing.T) {
	f := newFixture(t)
	acts := []domain.Activity{
		{ID: "m1", Name: "Museum", Category: "museum", BestTimeOfDay: domain.TimeAny},
		{ID: "m2", Name: "Gallery", Category: "gallery", BestTimeOfDay: domain.TimeAny},
		{ID: "p1", Name: "Park", Category: "park", BestTimeOfDay: domain.TimeAny},
	}
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateDayItinerary
		s.SuggestedActivities = acts
		s.SelectedActivityIDs = []string{"m1", "m2", "p1"}
		s.DayGroups = []domain.DayGroup{
			{Day: 1, Theme: "Culture", ActivityIDs: []string{"m1", "m2"}},
			{Day: 2, Theme: "Outdoors", ActivityIDs: []string{"p1"}},
		}
	})

	payload, _ := json.Marshal(adjustDayGroupsInput{ActivityID: "m2", FromDay: 1, ToDay: 2})
	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "adjust_day_groups", Payload: payload},
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.Equal(t, []string{"m1"}, resp.DayGroups[0].ActivityIDs)
	assert.ElementsMatch(t, []string{"p1", "m2"}, resp.DayGroups[1].ActivityIDs)
	assert.Equal(t, "Culture", resp.DayGroups[0].Theme)
	assert.Equal(t, "Culture & Outdoors", resp.DayGroups[1].Theme)
}

func TestFinalizeDeniedUntilTravelOffersComplete(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateReview
		s.AccommodationStatus = domain.SearchRunning
		s.FlightStatus = domain.SearchComplete
	})

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "finalize"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateReview, resp.WorkflowState)
	assert.NotEqual(t, domain.StateFinalize, resp.WorkflowState)
}

func TestFinalizeHappyPath(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateReview
		s.SuggestedActivities = suggested(2)
		s.SelectedActivityIDs = []string{"act-0", "act-1"}
		s.DayGroups = []domain.DayGroup{{Day: 1, Theme: "Culture", ActivityIDs: []string{"act-0", "act-1"}}}
		s.AccommodationStatus = domain.SearchComplete
		s.FlightStatus = domain.SearchComplete
		s.AccommodationOptions = []domain.TravelOption{{ID: "hotel-1", Name: "Hotel Lumen"}}
		s.FlightOptions = []domain.TravelOption{{ID: "flight-1", Name: "AF 1234"}}
		s.SelectedAccommodationID = "hotel-1"
		s.SelectedFlightID = "flight-1"
	})

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "finalize"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, domain.StateFinalize, resp.WorkflowState)
	assert.Contains(t, resp.Message, "finalized")
	assert.Contains(t, resp.Message, "Hotel Lumen")

	// Further turns short-circuit against a finalized session.
	again, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "one more thing",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalize, again.WorkflowState)
	assert.Contains(t, again.Message, "already finalized")
}

func TestTransitionDeniedKeepsMutations(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateGroupDays
		s.SuggestedActivities = suggested(4)
	})

	// Model tries to leap straight to review while also making a valid
	// selection. The selection sticks; the leap is refused and logged.
	f.llm.GenerateFunc = staticReply("Picked two and jumping ahead.",
		`{"confidence": 0.9,
		  "actions": [{"tool": "select_activities", "input": {"activityIds": ["act-0", "act-1"]}}],
		  "proposedState": "REVIEW"}`)

	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "just pick for me",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, domain.StateGroupDays, resp.WorkflowState)
	assert.ElementsMatch(t, []string{"act-0", "act-1"}, resp.SelectedActivityIDs)

	stored, err := f.store.Get(s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.RecoveryHints)
	assert.Equal(t, "transition", stored.RecoveryHints[len(stored.RecoveryHints)-1].Kind)
}

func TestSetMealPreferencesFetchesRestaurants(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, func(s *domain.Session) {
		s.State = domain.StateMealPreferences
		s.DayGroups = []domain.DayGroup{{Day: 1}, {Day: 2}}
	})
	f.places.SearchFunc = func(ctx context.Context, query string, near *domain.LatLng, radiusMeters int) ([]places.PlaceRecord, error) {
		return []places.PlaceRecord{
			{ID: "r1", Name: "Taberna", Category: "portuguese", Rating: 4.7},
			{ID: "r2", Name: "Cantina", Category: "seafood", Rating: 4.4},
		}, nil
	}

	payload, _ := json.Marshal(mealPreferencesInput{Preferences: []string{"seafood", "vegetarian-friendly"}})
	resp, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUIAction,
		UIAction: &domain.UIAction{Type: "set_meal_preferences", Payload: payload},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.RestaurantSuggestions, 2)
	assert.Equal(t, 1, resp.RestaurantSuggestions[0].Day)
	assert.Equal(t, 2, resp.RestaurantSuggestions[1].Day)
}

func TestTranscriptRecordsBothSides(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, nil)
	f.llm.GenerateFunc = staticReply("Where to?", "")

	_, err := f.supervisor.RunTurn(context.Background(), domain.TurnRequest{
		SessionID: s.ID, Trigger: domain.TriggerUserMessage, Message: "help me plan a trip",
	})
	require.NoError(t, err)

	stored, err := f.store.Get(s.ID)
	require.NoError(t, err)
	require.Len(t, stored.Transcript, 2)
	assert.Equal(t, "user", stored.Transcript[0].Role)
	assert.Equal(t, "help me plan a trip", stored.Transcript[0].Content)
	assert.Equal(t, "assistant", stored.Transcript[1].Role)
}
