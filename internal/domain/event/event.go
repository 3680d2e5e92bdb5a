package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys
const (
	KeyWorkflowType = "workflow_type"
	KeyStep         = "step"
	KeyApproverRole = "approver_role"
	KeyApproverID   = "approver_id"
	KeyStatus       = "status"
	KeyComments     = "comments"
	KeyReason       = "reason"
	KeyEmployeeName = "employee_name"
	KeyEmployeeID   = "employee_id"
	KeyPreviousStep = "previous_step"
)

// Event is a fact about a committed workflow transition
type Event struct {
	ID              string                 `json:"id"`
	Type            Type                   `json:"type"`
	WorkflowID      string                 `json:"workflow_id"`
	TravelRequestID string                 `json:"travel_request_id"`
	Payload         map[string]interface{} `json:"payload"`
	Timestamp       time.Time              `json:"timestamp"`
	CorrelationID   string                 `json:"correlation_id"`
}

// NewEvent creates a domain event with a fresh ID and timestamp
func NewEvent(eventType Type, workflowID, travelRequestID string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, workflowID, travelRequestID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain,
// e.g. the completion of a pre-travel workflow and the post-travel workflow it starts.
func NewEventWithCorrelation(eventType Type, workflowID, travelRequestID string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		WorkflowID:      workflowID,
		TravelRequestID: travelRequestID,
		Payload:         payload,
		Timestamp:       time.Now(),
		CorrelationID:   correlationID,
	}
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case *string:
			if v != nil {
				return *v
			}
		}
	}
	return ""
}

func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
