package domain

// WorkflowState is one stage of the planning conversation.
type WorkflowState string

const (
	StateInfoGathering   WorkflowState = "INFO_GATHERING"
	StateInitialResearch WorkflowState = "INITIAL_RESEARCH"
	StateGroupDays       WorkflowState = "GROUP_DAYS"
	StateDayItinerary    WorkflowState = "DAY_ITINERARY"
	StateMealPreferences WorkflowState = "MEAL_PREFERENCES"
	StateReview          WorkflowState = "REVIEW"
	StateFinalize        WorkflowState = "FINALIZE"
)

// stateOrder defines the forward progression of the workflow.
var stateOrder = map[WorkflowState]int{
	StateInfoGathering:   0,
	StateInitialResearch: 1,
	StateGroupDays:       2,
	StateDayItinerary:    3,
	StateMealPreferences: 4,
	StateReview:          5,
	StateFinalize:        6,
}

// Order returns the position of the state in the workflow, or -1 for an
// unknown state.
func (s WorkflowState) Order() int {
	if o, ok := stateOrder[s]; ok {
		return o
	}
	return -1
}

// Known reports whether s is a declared workflow state.
func (s WorkflowState) Known() bool {
	_, ok := stateOrder[s]
	return ok
}

// Terminal reports whether the workflow accepts no further mutating turns.
func (s WorkflowState) Terminal() bool {
	return s == StateFinalize
}

// Initiator identifies who proposed a workflow transition.
type Initiator string

const (
	InitiatorUser      Initiator = "user"
	InitiatorAssistant Initiator = "assistant"
)
