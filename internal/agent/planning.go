package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
)

// PlanningLoop handles the day-grouping and itinerary stages.
// Structured UI actions dispatch through a fixed table; free-text
// messages fall through to the model.
type PlanningLoop struct {
	llm llm.Client
	log *logging.Logger

	uiHandlers map[string]uiHandler
}

func NewPlanningLoop(client llm.Client, log *logging.Logger) *PlanningLoop {
	l := &PlanningLoop{llm: client, log: log.Sub("planning")}
	l.uiHandlers = map[string]uiHandler{
		"confirm_grouping":  l.confirmGrouping,
		"confirm_itinerary": l.confirmItinerary,
		"select_activities": uiToolRelay(domain.ToolSelectActivities, "Updating your activity picks."),
		"adjust_day_groups": uiToolRelay(domain.ToolAdjustDayGroups, "Moving that activity for you."),
	}
	return l
}

func (l *PlanningLoop) Name() domain.LoopName { return domain.LoopPlanning }

func (l *PlanningLoop) Run(ctx context.Context, lc *LoopContext) (*domain.LoopResult, error) {
	if lc.Trigger == domain.TriggerUIAction && lc.UIAction != nil {
		if h, ok := l.uiHandlers[lc.UIAction.Type]; ok {
			return h(lc), nil
		}
		l.log.Debug().Str("uiAction", lc.UIAction.Type).Msg("unrecognized ui action, asking the model")
	}
	return modelFallback(ctx, l.llm, l.log, lc, llm.TaskReviewFeedback, planningFallbackSystem(lc.Session))
}

// confirmGrouping advances from the grouping overview to the detailed
// itinerary. Confirming from any other stage is a no-op reply.
func (l *PlanningLoop) confirmGrouping(lc *LoopContext) *domain.LoopResult {
	if lc.Session.State != domain.StateGroupDays {
		return &domain.LoopResult{
			Message:    "The day grouping is already settled; we're past that step.",
			Confidence: 1,
			StopReason: domain.StopNeedsUserInput,
		}
	}
	if len(lc.Session.DayGroups) == 0 {
		return &domain.LoopResult{
			Message:    "There's nothing grouped yet. Pick some activities first and I'll lay out the days.",
			Confidence: 1,
			StopReason: domain.StopNeedsUserInput,
		}
	}
	return &domain.LoopResult{
		Message:       "Day plan locked in. Let's flesh out each day.",
		Confidence:    1,
		ProposedState: domain.StateDayItinerary,
		StopReason:    domain.StopCompletedStage,
	}
}

func (l *PlanningLoop) confirmItinerary(lc *LoopContext) *domain.LoopResult {
	if lc.Session.State != domain.StateDayItinerary {
		return &domain.LoopResult{
			Message:    "Let's settle the day grouping before confirming the itinerary.",
			Confidence: 1,
			StopReason: domain.StopNeedsUserInput,
		}
	}
	return &domain.LoopResult{
		Message:       "Itinerary confirmed. Now, any food preferences I should plan around?",
		Confidence:    1,
		ProposedState: domain.StateMealPreferences,
		StopReason:    domain.StopCompletedStage,
	}
}

// uiToolRelay turns a structured UI action whose payload is already a
// tool input into the matching tool action.
func uiToolRelay(tool domain.ToolName, message string) uiHandler {
	return func(lc *LoopContext) *domain.LoopResult {
		var input json.RawMessage
		if lc.UIAction != nil {
			input = lc.UIAction.Payload
		}
		return &domain.LoopResult{
			Message:    message,
			Confidence: 1,
			Actions:    []domain.ToolAction{{Tool: tool, Input: input}},
			StopReason: domain.StopCompletedStage,
		}
	}
}

func planningFallbackSystem(s *domain.Session) string {
	var b strings.Builder
	b.WriteString("You are a travel-planning assistant refining a day-by-day plan for ")
	b.WriteString(s.Trip.Destination)
	b.WriteString(".\nCurrent plan:\n")
	for _, g := range s.DayGroups {
		fmt.Fprintf(&b, "Day %d (%s): %d activities\n", g.Day, g.Theme, len(g.ActivityIDs))
	}
	b.WriteString(planningToolsSystem)
	return b.String()
}

const planningToolsSystem = `Reply with JSON:
{"message": "<reply to the user>", "confidence": 0.0,
 "actions": [{"tool": "select_activities", "input": {"activityIds": []}}],
 "proposedState": ""}
Available tools: select_activities {"activityIds": [..]},
adjust_day_groups {"activityId": "", "fromDay": 1, "toDay": 2}.
Only propose actions you are sure about; otherwise return none and ask.`

// modelResultPayload is the structured turn plan the model returns when
// a loop falls back to free-form handling.
type modelResultPayload struct {
	Confidence    float64             `json:"confidence"`
	Actions       []domain.ToolAction `json:"actions,omitempty"`
	ProposedState string              `json:"proposedState,omitempty"`
}

// modelFallback asks the model to plan the turn and adapts its reply
// into a LoopResult. Provider failures degrade to a retry message.
func modelFallback(ctx context.Context, client llm.Client, log *logging.Logger, lc *LoopContext, task llm.Task, system string) (*domain.LoopResult, error) {
	reply, err := client.Generate(ctx, llm.Request{
		Task:       task,
		System:     system,
		Prompt:     lc.Message,
		Transcript: lc.Transcript,
	})
	if err != nil {
		log.Warn().Str("sessionId", lc.Session.ID).Err(err).Msg("fallback generation failed")
		return &domain.LoopResult{
			Message:    "Sorry, I lost my train of thought. Could you say that again?",
			Confidence: 0,
			StopReason: domain.StopNeedsUserInput,
		}, nil
	}

	result := &domain.LoopResult{
		Message:    reply.Message,
		Confidence: 0.6,
		StopReason: domain.StopNeedsUserInput,
	}
	var payload modelResultPayload
	if len(reply.Fields) == 0 || reply.DecodeFields(&payload) != nil {
		return result, nil
	}
	if payload.Confidence > 0 && payload.Confidence <= 1 {
		result.Confidence = payload.Confidence
	}
	result.Actions = payload.Actions
	if payload.ProposedState != "" {
		result.ProposedState = domain.WorkflowState(payload.ProposedState)
	}
	if len(result.Actions) > 0 || result.ProposedState != "" {
		result.StopReason = domain.StopCompletedStage
	}
	return result, nil
}
