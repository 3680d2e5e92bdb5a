package entity

// Workflow types
const (
	WorkflowTypePreTravel  = "PRE_TRAVEL"
	WorkflowTypePostTravel = "POST_TRAVEL"
)

// Workflow status constants
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusReturned  = "RETURNED"
	StatusEscalated = "ESCALATED"
	StatusCompleted = "COMPLETED"
)

// Priority constants
const (
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
)

// Approver roles
const (
	RoleSystem     = "SYSTEM"
	RoleEmployee   = "EMPLOYEE"
	RoleManager    = "MANAGER"
	RoleTravelDesk = "TRAVEL_DESK"
	RoleFinance    = "FINANCE"
	RoleHR         = "HR"
)

// Step names with behavior attached to them
const (
	StepSubmit               = "SUBMIT"
	StepManagerApproval      = "MANAGER_APPROVAL"
	StepTravelDeskCheck      = "TRAVEL_DESK_CHECK"
	StepFinanceApproval      = "FINANCE_APPROVAL"
	StepHRApproval           = "HR_APPROVAL"
	StepTravelDeskBooking    = "TRAVEL_DESK_BOOKING"
	StepHRCompliance         = "HR_COMPLIANCE"
	StepFinanceFinal         = "FINANCE_FINAL"
	StepBillUpload           = "BILL_UPLOAD"
	StepTravelDeskBillReview = "TRAVEL_DESK_BILL_REVIEW"
	StepFinanceReimbursement = "FINANCE_REIMBURSEMENT"

	// StepCompleted is the synthetic current step of a finished workflow.
	StepCompleted = "COMPLETED"
	// StepWorkflowComplete is the reserved catalog step that auto-completes a
	// workflow as soon as routing reaches it.
	StepWorkflowComplete = "WORKFLOW_COMPLETE"
)

// Travel request statuses pushed to the request tracking service
const (
	RequestStatusUnderReview = "UNDER_REVIEW"
	RequestStatusBooked      = "BOOKED"
	RequestStatusCompleted   = "COMPLETED"
)

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// SystemFallbackApproverID is assigned to manager steps when no manager can be resolved.
const SystemFallbackApproverID = "ff78684e-ed8d-4696-bccf-582ecf1ab900"
