package entity

import "time"

// Workflow is one approval run of a travel request for a single workflow type
type Workflow struct {
	ID                  string          `json:"workflow_id"`
	TravelRequestID     string          `json:"travel_request_id"`
	WorkflowType        string          `json:"workflow_type"`
	CurrentStep         string          `json:"current_step"`
	PreviousStep        string          `json:"previous_step,omitempty"`
	NextStep            string          `json:"next_step,omitempty"`
	CurrentApproverRole string          `json:"current_approver_role"`
	CurrentApproverID   *string         `json:"current_approver_id,omitempty"`
	Status              string          `json:"status"`
	Priority            string          `json:"priority"`
	EstimatedCost       *float64        `json:"estimated_cost,omitempty"`
	ActualCost          *float64        `json:"actual_cost,omitempty"`
	IsOverpriced        bool            `json:"is_overpriced"`
	OverpricedReason    string          `json:"overpriced_reason,omitempty"`
	BookingDetails      *BookingDetails `json:"booking_details,omitempty"`
	TotalBookingAmount  float64         `json:"total_booking_amount"`
	DueDate             *time.Time      `json:"due_date,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	// Version guards optimistic updates; incremented on every write.
	Version int64 `json:"version"`
}

// IsPending reports whether the workflow can still transition
func (w *Workflow) IsPending() bool {
	return w.Status == StatusPending
}

// ApproverID returns the assigned approver identity or "" for role-only steps
func (w *Workflow) ApproverID() string {
	if w.CurrentApproverID == nil {
		return ""
	}
	return *w.CurrentApproverID
}

// Bookings returns the booking sub-ledger, creating an empty one on first use.
func (w *Workflow) Bookings() *BookingDetails {
	if w.BookingDetails == nil {
		w.BookingDetails = &BookingDetails{}
	}
	return w.BookingDetails
}

// Clone returns a deep copy, used to keep the pre-transition snapshot.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.CurrentApproverID = cloneString(w.CurrentApproverID)
	c.EstimatedCost = cloneFloat(w.EstimatedCost)
	c.ActualCost = cloneFloat(w.ActualCost)
	c.DueDate = cloneTime(w.DueDate)
	c.CompletedAt = cloneTime(w.CompletedAt)
	if w.BookingDetails != nil {
		c.BookingDetails = w.BookingDetails.Clone()
	}
	return &c
}

// WorkflowMetrics is a snapshot of workflow counts by status
type WorkflowMetrics struct {
	TotalWorkflows      int64   `json:"total_workflows"`
	PendingWorkflows    int64   `json:"pending_workflows"`
	ApprovedWorkflows   int64   `json:"approved_workflows"`
	RejectedWorkflows   int64   `json:"rejected_workflows"`
	ReturnedWorkflows   int64   `json:"returned_workflows"`
	EscalatedWorkflows  int64   `json:"escalated_workflows"`
	CompletedWorkflows  int64   `json:"completed_workflows"`
	AverageApprovalTime float64 `json:"average_approval_time_hours"`
}

// ApproverStats summarizes one approver's queue and decisions
type ApproverStats struct {
	ApproverID            string  `json:"approver_id"`
	TotalAssigned         int64   `json:"total_assigned"`
	Pending               int64   `json:"pending"`
	Approved              int64   `json:"approved"`
	Rejected              int64   `json:"rejected"`
	AverageProcessingTime float64 `json:"average_processing_time_hours"`
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
