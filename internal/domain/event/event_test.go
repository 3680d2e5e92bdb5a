package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		want      bool
	}{
		{TypeWorkflowInitiated, true},
		{TypeWorkflowAdvanced, true},
		{TypeWorkflowReassigned, true},
		{TypeWorkflowRejected, true},
		{TypeWorkflowReturned, true},
		{TypeWorkflowEscalated, true},
		{TypeWorkflowCompleted, true},
		{Type("workflow.archived"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	e := NewEvent(TypeWorkflowInitiated, "wf-1", "tr-1", map[string]interface{}{KeyStep: "MANAGER_APPROVAL"})

	if e.ID == "" || e.CorrelationID == "" {
		t.Fatal("NewEvent() should assign ID and correlation ID")
	}
	if e.ID == e.CorrelationID {
		t.Error("ID and CorrelationID should differ")
	}
	if e.WorkflowID != "wf-1" || e.TravelRequestID != "tr-1" {
		t.Errorf("unexpected identifiers: %+v", e)
	}
	if e.Timestamp.Before(before) {
		t.Error("Timestamp should be set to now")
	}
	if got := e.GetPayloadString(KeyStep); got != "MANAGER_APPROVAL" {
		t.Errorf("GetPayloadString() = %q", got)
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	e := NewEventWithCorrelation(TypeWorkflowCompleted, "wf-1", "tr-1", nil, "chain-7")
	if e.CorrelationID != "chain-7" {
		t.Errorf("CorrelationID = %q, want chain-7", e.CorrelationID)
	}
	if e.Payload == nil {
		t.Error("nil payload should be replaced with an empty map")
	}
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	e := NewEvent(TypeWorkflowRejected, "wf-1", "tr-1", map[string]interface{}{KeyComments: "too costly"})
	e2 := e.WithPayload(KeyReason, "budget")

	if _, ok := e.Payload[KeyReason]; ok {
		t.Error("WithPayload() mutated the original event")
	}
	if e2.GetPayloadString(KeyReason) != "budget" || e2.GetPayloadString(KeyComments) != "too costly" {
		t.Errorf("unexpected payload: %v", e2.Payload)
	}
	if e2.ID != e.ID {
		t.Error("WithPayload() should keep the event ID")
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	reason := "late booking"
	e := NewEvent(TypeWorkflowEscalated, "wf-1", "tr-1", map[string]interface{}{
		KeyReason: &reason,
		"urgent":  true,
		KeyStep:   42,
	})

	if got := e.GetPayloadString(KeyReason); got != reason {
		t.Errorf("GetPayloadString(*string) = %q", got)
	}
	if !e.GetPayloadBool("urgent") {
		t.Error("GetPayloadBool() = false, want true")
	}
	if got := e.GetPayloadString(KeyStep); got != "" {
		t.Errorf("GetPayloadString(non-string) = %q, want empty", got)
	}
}
