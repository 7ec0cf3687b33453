package domain

import "encoding/json"

// LoopName identifies the stage handler that produced a turn's result.
type LoopName string

const (
	LoopInfoGathering   LoopName = "info_gathering"
	LoopInitialResearch LoopName = "initial_research"
	LoopPlanning        LoopName = "planning"
	LoopHospitality     LoopName = "hospitality"
)

// StopReason explains why a loop ended its turn.
type StopReason string

const (
	StopCompletedStage StopReason = "completed_stage"
	StopNeedsUserInput StopReason = "needs_user_input"
	StopLowConfidence  StopReason = "low_confidence_noop"
	StopToolRecovered  StopReason = "tool_error_recovered"
	StopTerminal       StopReason = "terminal"
)

// ToolName is the closed enumeration of mutation tools.
type ToolName string

const (
	ToolSelectActivities    ToolName = "select_activities"
	ToolAdjustDayGroups     ToolName = "adjust_day_groups"
	ToolSelectRestaurants   ToolName = "select_restaurants"
	ToolSetMealPreferences  ToolName = "set_meal_preferences"
	ToolSelectAccommodation ToolName = "select_accommodation"
	ToolSelectFlight        ToolName = "select_flight"
	ToolFinalize            ToolName = "finalize"
)

// ToolAction is a named, schema-checked mutation request. It lives only
// for the duration of one turn and is never persisted.
type ToolAction struct {
	Tool  ToolName        `json:"tool"`
	Input json.RawMessage `json:"input,omitempty"`
}

// LoopResult is what a stage handler returns for one turn.
type LoopResult struct {
	Message       string        `json:"message"`
	Confidence    float64       `json:"confidence"`
	Actions       []ToolAction  `json:"actions,omitempty"`
	ProposedState WorkflowState `json:"proposedState,omitempty"`
	StopReason    StopReason    `json:"stopReason"`
}
