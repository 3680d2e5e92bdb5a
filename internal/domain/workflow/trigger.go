package workflow

// Trigger is an event fired against a workflow's status machine
type Trigger string

const (
	// TriggerAdvance moves to the next step without leaving PENDING.
	TriggerAdvance  Trigger = "ADVANCE"
	TriggerApprove  Trigger = "APPROVE"
	TriggerComplete Trigger = "COMPLETE"
	TriggerReject   Trigger = "REJECT"
	TriggerReturn   Trigger = "RETURN"
	TriggerEscalate Trigger = "ESCALATE"
	// TriggerAmend covers in-place edits on a live workflow: bookings,
	// reassignment, priority.
	TriggerAmend Trigger = "AMEND"
	// TriggerReassign hands the step to a new approver. It is the only way
	// out of ESCALATED, back to PENDING.
	TriggerReassign Trigger = "REASSIGN"
)

func (t Trigger) String() string {
	return string(t)
}

// TriggerForCompletion maps a terminal completion status to the trigger that reaches it.
func TriggerForCompletion(s State) (Trigger, bool) {
	switch s {
	case StateApproved:
		return TriggerApprove, true
	case StateCompleted:
		return TriggerComplete, true
	case StateRejected:
		return TriggerReject, true
	case StateReturned:
		return TriggerReturn, true
	case StateEscalated:
		return TriggerEscalate, true
	default:
		return "", false
	}
}
