package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowInitiated  Type = "workflow.initiated"
	TypeWorkflowAdvanced   Type = "workflow.advanced"
	TypeWorkflowReassigned Type = "workflow.reassigned"
	TypeWorkflowRejected   Type = "workflow.rejected"
	TypeWorkflowReturned   Type = "workflow.returned"
	TypeWorkflowEscalated  Type = "workflow.escalated"
	TypeWorkflowCompleted  Type = "workflow.completed"
)

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowInitiated,
		TypeWorkflowAdvanced,
		TypeWorkflowReassigned,
		TypeWorkflowRejected,
		TypeWorkflowReturned,
		TypeWorkflowEscalated,
		TypeWorkflowCompleted:
		return true
	default:
		return false
	}
}
