package agent

import (
	"context"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/samber/lo"
)

// defaultConfidenceThreshold is the minimum loop confidence required
// before proposed tool actions are executed. Below it the assistant can
// talk but cannot mutate plan state.
const defaultConfidenceThreshold = 0.55

// transcriptWindow is how many transcript lines a loop sees.
const transcriptWindow = 10

// LoopContext is the immutable snapshot of session sub-state handed to
// a loop for one turn. Loops read it; they never write session state.
type LoopContext struct {
	Session  *domain.Session
	Trigger  domain.TriggerType
	Message  string
	UIAction *domain.UIAction

	// Transcript holds the last lines of conversation in LLM form.
	Transcript []llm.Message
}

func newLoopContext(snapshot *domain.Session, req domain.TurnRequest) *LoopContext {
	lines := snapshot.Transcript
	if len(lines) > transcriptWindow {
		lines = lines[len(lines)-transcriptWindow:]
	}
	return &LoopContext{
		Session:  snapshot,
		Trigger:  req.Trigger,
		Message:  req.Message,
		UIAction: req.UIAction,
		Transcript: lo.Map(lines, func(m domain.Message, _ int) llm.Message {
			return llm.Message{Role: m.Role, Content: m.Content}
		}),
	}
}

// Loop is a stage-specific handler producing a LoopResult for a turn.
type Loop interface {
	Name() domain.LoopName
	Run(ctx context.Context, lc *LoopContext) (*domain.LoopResult, error)
}

// uiHandler handles one structured UI action type within a loop.
type uiHandler func(lc *LoopContext) *domain.LoopResult

// route maps a workflow stage to its loop, tool allow-list, and
// confidence threshold.
type route struct {
	Loop         Loop
	AllowedTools []domain.ToolName
	Threshold    float64
}

func (r route) allows(tool domain.ToolName) bool {
	return lo.Contains(r.AllowedTools, tool)
}

// buildRoutes wires the per-stage routing table. INFO_GATHERING and
// INITIAL_RESEARCH have dedicated handlers and do not appear here.
func buildRoutes(planning, hospitality Loop) map[domain.WorkflowState]route {
	planningRoute := route{
		Loop: planning,
		AllowedTools: []domain.ToolName{
			domain.ToolSelectActivities,
			domain.ToolAdjustDayGroups,
		},
		Threshold: defaultConfidenceThreshold,
	}
	hospitalityRoute := route{
		Loop: hospitality,
		AllowedTools: []domain.ToolName{
			domain.ToolSelectRestaurants,
			domain.ToolSetMealPreferences,
			domain.ToolSelectAccommodation,
			domain.ToolSelectFlight,
			domain.ToolFinalize,
		},
		Threshold: defaultConfidenceThreshold,
	}

	return map[domain.WorkflowState]route{
		domain.StateGroupDays:       planningRoute,
		domain.StateDayItinerary:    planningRoute,
		domain.StateMealPreferences: hospitalityRoute,
		domain.StateReview:          hospitalityRoute,
	}
}

// validateLoopResult checks the shape of a loop's output before any of
// it is trusted. A failure here means the loop (usually its model
// fallback) produced something the engine will not act on.
func validateLoopResult(r *domain.LoopResult) error {
	if r == nil {
		return errLoopResult("nil result")
	}
	if r.Message == "" {
		return errLoopResult("empty message")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errLoopResult("confidence out of range")
	}
	switch r.StopReason {
	case domain.StopCompletedStage, domain.StopNeedsUserInput,
		domain.StopLowConfidence, domain.StopToolRecovered, domain.StopTerminal:
	default:
		return errLoopResult("unknown stop reason")
	}
	if r.ProposedState != "" && !r.ProposedState.Known() {
		return errLoopResult("unknown proposed state")
	}
	return nil
}

type errLoopResult string

func (e errLoopResult) Error() string { return "invalid loop result: " + string(e) }
