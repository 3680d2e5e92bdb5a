package entity

// StepConfig is one configured stage of a workflow type
type StepConfig struct {
	ID             int64  `json:"id"`
	WorkflowType   string `json:"workflow_type"`
	StepName       string `json:"step_name"`
	ApproverRole   string `json:"approver_role"`
	SequenceOrder  int    `json:"sequence_order"`
	TimeLimitHours *int   `json:"time_limit_hours,omitempty"`
	IsActive       bool   `json:"is_active"`
}
