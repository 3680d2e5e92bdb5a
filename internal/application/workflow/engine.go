package workflow

import (
	"context"
	"time"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// Engine orchestrates travel approval workflows. Every mutating call runs
// in one transaction that writes the workflow and exactly one ledger entry.
type Engine interface {
	// Initiate fetches the travel request and starts a workflow for it.
	Initiate(ctx context.Context, req InitiateRequest) (*entity.Workflow, error)
	// InitiateForRequest starts a workflow from an already fetched request.
	InitiateForRequest(ctx context.Context, travelRequest *entity.TravelRequest, workflowType string, estimatedCost *float64) (*entity.Workflow, error)

	ProcessApproval(ctx context.Context, req ApprovalRequest) (*entity.Workflow, error)
	Escalate(ctx context.Context, workflowID, reason, escalatedBy string) (*entity.Workflow, error)
	Reassign(ctx context.Context, req ReassignRequest) (*entity.Workflow, error)
	UpdatePriority(ctx context.Context, workflowID, priority, updatedBy string) (*entity.Workflow, error)

	MarkBookingUploaded(ctx context.Context, workflowID, actorID, comments string) (*entity.Workflow, error)
	MarkBookingCompleted(ctx context.Context, workflowID, actorID, comments string) (*entity.Workflow, error)
	UpdateBookingDetails(ctx context.Context, workflowID, actorID string, details *entity.BookingDetails, comments string) (*entity.Workflow, error)
	AddBooking(ctx context.Context, workflowID, actorID string, booking entity.Booking) (*entity.Booking, error)
	UpdateBooking(ctx context.Context, workflowID, actorID, bookingID string, booking entity.Booking) (*entity.Booking, error)
	UpdateBookingStatus(ctx context.Context, workflowID, actorID, bookingID, status string) (*entity.Booking, error)
	DeleteBooking(ctx context.Context, workflowID, actorID, bookingID string) (*entity.Workflow, error)
	UploadBills(ctx context.Context, req UploadBillsRequest) (*entity.Workflow, error)
	RecordBookingAction(ctx context.Context, workflowID, actorID, action, comments string) (*entity.Action, error)

	GetWorkflow(ctx context.Context, workflowID string) (*entity.Workflow, error)
	GetWorkflowByRequest(ctx context.Context, travelRequestID, workflowType string) (*entity.Workflow, error)
	PendingApprovals(ctx context.Context, role, approverID string) ([]*entity.Workflow, error)
	WorkflowsByStatus(ctx context.Context, status string) ([]*entity.Workflow, error)
	WorkflowsByStatusAndStep(ctx context.Context, status, step string) ([]*entity.Workflow, error)
	ListWorkflows(ctx context.Context, limit, offset int) ([]*entity.Workflow, error)
	History(ctx context.Context, travelRequestID string) ([]*entity.Action, error)
	Metrics(ctx context.Context) (*entity.WorkflowMetrics, error)
	ApproverStats(ctx context.Context, approverID string) (*entity.ApproverStats, error)

	Bookings(ctx context.Context, workflowID string) ([]entity.Booking, error)
	BookingSummary(ctx context.Context, workflowID string) (*BookingSummary, error)
	BookingStats(ctx context.Context, workflowID string) (*entity.BookingStats, error)

	// ReloadCatalog replaces the step catalog snapshot. Running workflows
	// keep routing by step name and are unaffected.
	ReloadCatalog(ctx context.Context) (int64, error)
}

// InitiateRequest starts a workflow for a travel request
type InitiateRequest struct {
	TravelRequestID string   `json:"travel_request_id"`
	WorkflowType    string   `json:"workflow_type"`
	EstimatedCost   *float64 `json:"estimated_cost,omitempty"`
}

// ApprovalRequest is one decision taken by an approver at the current step
type ApprovalRequest struct {
	WorkflowID   string `json:"workflow_id"`
	ApproverRole string `json:"approver_role"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	// Action is APPROVE, REJECT, RETURN or ESCALATE.
	Action              string   `json:"action"`
	Comments            string   `json:"comments,omitempty"`
	EscalationReason    *string  `json:"escalation_reason,omitempty"`
	AmountApproved      *float64 `json:"amount_approved,omitempty"`
	ReimbursementAmount *float64 `json:"reimbursement_amount,omitempty"`
	// MarkOverpriced is honored at the travel desk cost check.
	MarkOverpriced   bool   `json:"mark_overpriced,omitempty"`
	OverpricedReason string `json:"overpriced_reason,omitempty"`
}

// ReassignRequest moves a pending step to another role or identity
type ReassignRequest struct {
	WorkflowID   string  `json:"workflow_id"`
	ApproverRole string  `json:"approver_role"`
	ApproverID   *string `json:"approver_id,omitempty"`
	ReassignedBy string  `json:"reassigned_by"`
	Comments     string  `json:"comments,omitempty"`
}

// UploadBillsRequest records the traveller's bills after the trip
type UploadBillsRequest struct {
	WorkflowID    string  `json:"workflow_id"`
	EmployeeID    string  `json:"employee_id"`
	ActualCost    float64 `json:"actual_cost"`
	DocumentCount int     `json:"document_count,omitempty"`
	Comments      string  `json:"comments,omitempty"`
}

// BookingSummary is a read model of a workflow's booking sub-ledger
type BookingSummary struct {
	WorkflowID         string                 `json:"workflow_id"`
	TravelRequestID    string                 `json:"travel_request_id"`
	CurrentStep        string                 `json:"current_step"`
	Status             string                 `json:"status"`
	Editable           bool                   `json:"editable"`
	TotalBookings      int                    `json:"total_bookings"`
	TotalBookingAmount float64                `json:"total_booking_amount"`
	Details            *entity.BookingDetails `json:"booking_details"`
}

// Logger is a minimal logging interface
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Option configures the engine
type Option func(*engineImpl)

// WithDispatcher sets the dispatcher that receives events after commit
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithPolicy overrides the priority and due date thresholds
func WithPolicy(p domainwf.Policy) Option {
	return func(e *engineImpl) {
		e.policy = p
	}
}

// WithRouter overrides the default branching table
func WithRouter(r *domainwf.Router) Option {
	return func(e *engineImpl) {
		if r != nil {
			e.router.Store(r)
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) Option {
	return func(e *engineImpl) {
		e.logger = l
	}
}
