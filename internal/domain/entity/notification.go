package entity

import "time"

// Notification types
const (
	NotificationApprovalRequest   = "APPROVAL_REQUEST"
	NotificationApprovalNext      = "APPROVAL_NEXT"
	NotificationWorkflowRejected  = "WORKFLOW_REJECTED"
	NotificationWorkflowReturned  = "WORKFLOW_RETURNED"
	NotificationWorkflowEscalated = "WORKFLOW_ESCALATED"
	NotificationWorkflowCompleted = "WORKFLOW_COMPLETED"
)

// ReferenceTypeTravelRequest tags notifications that point at a travel request.
const ReferenceTypeTravelRequest = "TRAVEL_REQUEST"

// Notification is an outbound message about a committed transition
type Notification struct {
	ID               string     `json:"id"`
	WorkflowID       string     `json:"workflow_id"`
	RecipientID      string     `json:"recipient_id,omitempty"`
	RecipientRole    string     `json:"recipient_role,omitempty"`
	Subject          string     `json:"subject"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	ReferenceID      string     `json:"reference_id"`
	ReferenceType    string     `json:"reference_type"`
	Status           string     `json:"status"`
	Attempts         int        `json:"attempts"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
