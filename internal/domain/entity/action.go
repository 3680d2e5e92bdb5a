package entity

import "time"

// Action kinds recorded in the ledger
const (
	ActionSubmit               = "SUBMIT"
	ActionApprove              = "APPROVE"
	ActionReject               = "REJECT"
	ActionReturn               = "RETURN"
	ActionEscalate             = "ESCALATE"
	ActionUploadBooking        = "UPLOAD_BOOKING"
	ActionCompleteBooking      = "COMPLETE_BOOKING"
	ActionUpdateBookingDetails = "UPDATE_BOOKING_DETAILS"
	ActionAddBooking           = "ADD_BOOKING"
	ActionUpdateBooking        = "UPDATE_BOOKING"
	ActionUpdateBookingStatus  = "UPDATE_BOOKING_STATUS"
	ActionDeleteBooking        = "DELETE_BOOKING"
	ActionUploadBills          = "UPLOAD_BILLS"
	ActionReassign             = "REASSIGN"
	ActionUpdatePriority       = "UPDATE_PRIORITY"
)

// Action is an immutable audit record of one state-changing call
type Action struct {
	ID                  string    `json:"action_id"`
	WorkflowID          string    `json:"workflow_id"`
	TravelRequestID     string    `json:"travel_request_id"`
	ApproverRole        string    `json:"approver_role"`
	ApproverID          string    `json:"approver_id,omitempty"`
	ApproverName        string    `json:"approver_name,omitempty"`
	Action              string    `json:"action"`
	Step                string    `json:"step"`
	Comments            string    `json:"comments,omitempty"`
	EscalationReason    *string   `json:"escalation_reason,omitempty"`
	IsEscalated         bool      `json:"is_escalated"`
	AmountApproved      *float64  `json:"amount_approved,omitempty"`
	ReimbursementAmount *float64  `json:"reimbursement_amount,omitempty"`
	CreatedAt           time.Time `json:"action_taken_at"`
}
