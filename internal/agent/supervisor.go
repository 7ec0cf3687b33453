package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/hooks"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
	"github.com/roamline/roamline/internal/places"
	"github.com/roamline/roamline/internal/store"
	"github.com/roamline/roamline/internal/subagent"
	"github.com/roamline/roamline/internal/workflow"
)

// Supervisor drives one request/response turn of the conversation: it
// snapshots the session, dispatches to the stage's loop, applies the
// loop's tool actions and transition to a working clone, and commits
// the clone atomically with optimistic concurrency.
type Supervisor struct {
	store    store.Store
	gather   *GatherHandler
	research *ResearchHandler
	routes   map[domain.WorkflowState]route
	tools    *ToolExecutor
	hooks    *hooks.Manager
	log      *logging.Logger
}

// AttachHooks registers a hook manager for lifecycle events. Optional;
// a supervisor without hooks emits nothing.
func (sv *Supervisor) AttachHooks(m *hooks.Manager) {
	sv.hooks = m
}

// NewSupervisor wires the turn engine from its collaborators.
func NewSupervisor(st store.Store, client llm.Client, placesClient places.Client, travel *subagent.Runner, log *logging.Logger) *Supervisor {
	return &Supervisor{
		store:    st,
		gather:   NewGatherHandler(client, log),
		research: NewResearchHandler(client, placesClient, log),
		routes: buildRoutes(
			NewPlanningLoop(client, log),
			NewHospitalityLoop(client, log),
		),
		tools: NewToolExecutor(travel, placesClient, log),
		log:   log.Sub("supervisor"),
	}
}

// RunTurn processes one turn. Exactly one of two things happens to the
// stored session: the full set of turn effects is committed, or only an
// audit trail (hints and transcript) is.
func (sv *Supervisor) RunTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	snapshot, err := sv.store.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	baseVersion := snapshot.Version
	turnID := uuid.NewString()
	log := sv.log.WithSession(snapshot.ID).WithTurn(turnID)

	if snapshot.State.Terminal() {
		log.Debug().Msg("turn against a finalized session")
		return domain.SnapshotFrom(snapshot, true, "This trip is already finalized. Start a new session to plan another."), nil
	}

	sv.hooks.Emit(ctx, hooks.EventTurnStart, map[string]any{
		"sessionId": snapshot.ID, "turnId": turnID, "stage": string(snapshot.State),
	})

	lc := newLoopContext(snapshot, req)
	ws := snapshot.Clone()
	ws.LastTurnID = turnID

	result, loopName, err := sv.dispatch(ctx, lc, ws)
	if err != nil {
		return nil, err
	}
	ws.ActiveLoop = loopName

	if verr := validateLoopResult(result); verr != nil {
		log.Warn().Err(verr).Str("loop", string(loopName)).Msg("loop result rejected")
		return sv.commitAudit(snapshot, baseVersion, req, turnID, "validation", verr.Error(),
			"I need to regroup for a moment. Could you rephrase that?")
	}

	threshold := defaultConfidenceThreshold
	if r, ok := sv.routes[snapshot.State]; ok {
		threshold = r.Threshold
	}
	if result.Confidence < threshold && (len(result.Actions) > 0 || result.ProposedState != "") {
		log.Info().Float64("confidence", result.Confidence).Msg("confidence below threshold, holding all effects")
		return sv.commitAudit(snapshot, baseVersion, req, turnID, "validation",
			fmt.Sprintf("confidence %.2f below threshold", result.Confidence),
			result.Message)
	}

	message := result.Message
	for _, action := range result.Actions {
		if r, ok := sv.routes[snapshot.State]; ok && !r.allows(action.Tool) {
			log.Warn().Str("tool", string(action.Tool)).Msg("tool outside stage allow-list")
			return sv.commitAudit(snapshot, baseVersion, req, turnID, "allow_list",
				fmt.Sprintf("tool %s not allowed in %s", action.Tool, snapshot.State),
				"I tried something that isn't available at this step. Let's take it from here instead.")
		}
		toolMessage, terr := sv.tools.Execute(ctx, action, ws)
		if terr != nil {
			kind := "execution"
			if errors.Is(terr, ErrMalformedInput) {
				kind = "schema"
			}
			log.Warn().Str("tool", string(action.Tool)).Err(terr).Msg("tool execution aborted")
			return sv.commitAudit(snapshot, baseVersion, req, turnID, kind, terr.Error(),
				"That change didn't go through, so I've left your plan as it was. Want to try again?")
		}
		if toolMessage != "" {
			message = toolMessage
		}
	}

	if result.ProposedState != "" && result.ProposedState != ws.State {
		decision := workflow.Validate(ws.State, result.ProposedState, initiatorOf(req), ws.TravelSearch())
		if decision.OK {
			from := ws.State
			ws.State = result.ProposedState
			sv.hooks.Emit(ctx, hooks.EventStageChanged, map[string]any{
				"sessionId": ws.ID, "from": string(from), "to": string(ws.State),
			})
			if ws.State.Terminal() {
				sv.hooks.Emit(ctx, hooks.EventPlanFinalized, map[string]any{
					"sessionId": ws.ID, "destination": ws.Trip.Destination,
				})
			}
		} else {
			log.Info().Str("from", string(ws.State)).Str("to", string(result.ProposedState)).
				Str("reason", decision.Reason).Msg("transition denied, keeping mutations")
			ws.AddRecoveryHint(domain.RecoveryHint{
				TurnID: turnID, Stage: ws.State, Kind: "transition",
				Detail: decision.Reason, At: time.Now().UTC(),
			})
		}
	}

	appendTranscript(ws, req, message)
	ws.LastLoopResult = result

	committed, err := sv.store.Commit(ws, baseVersion)
	if err != nil {
		if errors.Is(err, store.ErrStaleSession) {
			log.Warn().Int64("baseVersion", baseVersion).Msg("concurrent turn won the commit race")
			return nil, fmt.Errorf("session %s changed under this turn: %w", ws.ID, err)
		}
		return nil, err
	}
	sv.hooks.Emit(ctx, hooks.EventTurnEnd, map[string]any{
		"sessionId": committed.ID, "turnId": turnID, "stage": string(committed.State),
	})
	return domain.SnapshotFrom(committed, true, message), nil
}

// dispatch routes the turn to the stage's handler.
func (sv *Supervisor) dispatch(ctx context.Context, lc *LoopContext, ws *domain.Session) (*domain.LoopResult, domain.LoopName, error) {
	switch ws.State {
	case domain.StateInfoGathering:
		result, err := sv.gather.Run(ctx, lc, ws)
		return result, domain.LoopInfoGathering, err
	case domain.StateInitialResearch:
		result, err := sv.research.Run(ctx, lc, ws)
		return result, domain.LoopInitialResearch, err
	}
	r, ok := sv.routes[ws.State]
	if !ok {
		return nil, "", fmt.Errorf("no handler for stage %s", ws.State)
	}
	result, err := r.Loop.Run(ctx, lc)
	return result, r.Loop.Name(), err
}

// commitAudit records a recovered failure without any of the turn's
// mutations: a fresh clone of the original snapshot gets the hint and
// the transcript lines, nothing else.
func (sv *Supervisor) commitAudit(snapshot *domain.Session, baseVersion int64, req domain.TurnRequest, turnID, kind, detail, message string) (*domain.TurnResponse, error) {
	audit := snapshot.Clone()
	audit.LastTurnID = turnID
	audit.AddRecoveryHint(domain.RecoveryHint{
		TurnID: turnID, Stage: audit.State, Kind: kind,
		Detail: detail, At: time.Now().UTC(),
	})
	appendTranscript(audit, req, message)

	committed, err := sv.store.Commit(audit, baseVersion)
	if err != nil {
		return nil, err
	}
	return domain.SnapshotFrom(committed, false, message), nil
}

func appendTranscript(s *domain.Session, req domain.TurnRequest, assistantMessage string) {
	now := time.Now().UTC()
	if req.Trigger == domain.TriggerUserMessage && req.Message != "" {
		s.Transcript = append(s.Transcript, domain.Message{Role: "user", Content: req.Message, Timestamp: now})
	}
	if assistantMessage != "" {
		s.Transcript = append(s.Transcript, domain.Message{Role: "assistant", Content: assistantMessage, Timestamp: now})
	}
}

// initiatorOf attributes a proposed transition: structured UI actions
// speak for the user, free-text turns advance on the assistant's say.
func initiatorOf(req domain.TurnRequest) domain.Initiator {
	if req.Trigger == domain.TriggerUIAction {
		return domain.InitiatorUser
	}
	return domain.InitiatorAssistant
}

func validateRequest(req domain.TurnRequest) error {
	if req.SessionID == "" {
		return fmt.Errorf("turn request: missing session id")
	}
	switch req.Trigger {
	case domain.TriggerUserMessage:
		if req.Message == "" {
			return fmt.Errorf("turn request: user_message trigger without a message")
		}
	case domain.TriggerUIAction:
		if req.UIAction == nil || req.UIAction.Type == "" {
			return fmt.Errorf("turn request: ui_action trigger without an action")
		}
	default:
		return fmt.Errorf("turn request: unknown trigger %q", req.Trigger)
	}
	return nil
}
