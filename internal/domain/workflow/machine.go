package workflow

import "context"

// StateMachine tracks a current status and validates transitions
type StateMachine interface {
	State() State

	// CanFire returns true if the trigger has a transition from the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the target state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	PermittedTriggers() []Trigger
}

var lifecycle = newLifecycleBuilder()

func newLifecycleBuilder() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerAdvance, StatePending).
		Permit(TriggerAmend, StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerReturn, StateReturned).
		Permit(TriggerEscalate, StateEscalated).
		Permit(TriggerReassign, StatePending)
	for s := range validStates {
		if s.IsTerminal() {
			b.Configure(s)
		}
	}
	b.Configure(StateEscalated).
		Permit(TriggerReassign, StatePending)
	return b
}

// NewLifecycle returns a status machine positioned at current. Unknown
// statuses yield ErrInvalidState instead of panicking since they come
// from storage.
func NewLifecycle(current State) (StateMachine, error) {
	if !current.IsValid() {
		return nil, InvalidStatef("unknown workflow status %q", current)
	}
	return lifecycle.Build(current), nil
}
