package workflow

// State is the lifecycle status of a workflow. PENDING is the only live
// status; progress through the steps is tracked separately.
type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateReturned  State = "RETURNED"
	StateEscalated State = "ESCALATED"
	StateCompleted State = "COMPLETED"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateApproved:  true,
	StateRejected:  true,
	StateReturned:  true,
	StateEscalated: true,
	StateCompleted: true,
}

// IsTerminal returns true for every status other than PENDING. ESCALATED
// can still be reassigned back to PENDING.
func (s State) IsTerminal() bool {
	return validStates[s] && s != StatePending
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known workflow status
func (s State) IsValid() bool {
	return validStates[s]
}
