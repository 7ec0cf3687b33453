// Package workflow validates stage transitions of the planning
// conversation. Validation is pure and side-effect-free: rejections
// return a structured reason for audit logging, never an error or panic.
package workflow

import (
	"fmt"

	"github.com/roamline/roamline/internal/domain"
)

// Decision is the outcome of a transition check.
type Decision struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{OK: true}
}

func deny(format string, args ...any) Decision {
	return Decision{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks whether the workflow may move from one stage to the
// next. Stages advance one step at a time; backward moves are explicit
// go-back UI actions handled by the caller, not by this validator.
// Advancing into FINALIZE requires both travel-offer searches to be
// complete, regardless of initiator.
func Validate(from, to domain.WorkflowState, initiator domain.Initiator, travel domain.TravelSearch) Decision {
	if !from.Known() {
		return deny("unknown source stage %q", from)
	}
	if !to.Known() {
		return deny("unknown target stage %q", to)
	}
	if from.Terminal() {
		return deny("stage %s is terminal", from)
	}
	if to == from {
		return allow()
	}

	step := to.Order() - from.Order()
	switch {
	case step < 0:
		return deny("backward transition %s -> %s not allowed (initiator %s)", from, to, initiator)
	case step > 1:
		return deny("transition %s -> %s skips %d stage(s)", from, to, step-1)
	}

	if to == domain.StateFinalize && !travel.Ready() {
		return deny("cannot enter %s: accommodation search %s, flight search %s",
			domain.StateFinalize, travel.Accommodation, travel.Flight)
	}

	return allow()
}
