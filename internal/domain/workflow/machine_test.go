package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateReturned, true},
		{StateEscalated, true},
		{StateCompleted, true},
		{State("UNKNOWN"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"completed", StateCompleted, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLifecycle_FromPending(t *testing.T) {
	tests := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerAdvance, StatePending},
		{TriggerAmend, StatePending},
		{TriggerApprove, StateApproved},
		{TriggerComplete, StateCompleted},
		{TriggerReject, StateRejected},
		{TriggerReturn, StateReturned},
		{TriggerEscalate, StateEscalated},
		{TriggerReassign, StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			m, err := NewLifecycle(StatePending)
			if err != nil {
				t.Fatalf("NewLifecycle() error = %v", err)
			}
			if err := m.Fire(context.Background(), tt.trigger); err != nil {
				t.Fatalf("Fire(%s) error = %v", tt.trigger, err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %s, want %s", m.State(), tt.want)
			}
		})
	}
}

func TestLifecycle_TerminalStatesRejectEverything(t *testing.T) {
	terminal := []State{StateApproved, StateRejected, StateReturned, StateCompleted}
	triggers := []Trigger{TriggerAdvance, TriggerAmend, TriggerApprove, TriggerComplete, TriggerReject, TriggerReturn, TriggerEscalate, TriggerReassign}

	for _, s := range terminal {
		m, err := NewLifecycle(s)
		if err != nil {
			t.Fatalf("NewLifecycle(%s) error = %v", s, err)
		}
		if got := m.PermittedTriggers(); len(got) != 0 {
			t.Errorf("PermittedTriggers() from %s = %v, want none", s, got)
		}
		for _, trig := range triggers {
			err := m.Fire(context.Background(), trig)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) from %s error = %v, want ErrInvalidTransition", trig, s, err)
			}
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("Fire(%s) from %s should classify as invalid state", trig, s)
			}
			if m.State() != s {
				t.Errorf("state changed to %s after failed fire", m.State())
			}
		}
	}
}

func TestLifecycle_EscalatedOnlyReassigns(t *testing.T) {
	m, err := NewLifecycle(StateEscalated)
	if err != nil {
		t.Fatalf("NewLifecycle() error = %v", err)
	}
	if got := m.PermittedTriggers(); len(got) != 1 || got[0] != TriggerReassign {
		t.Errorf("PermittedTriggers() = %v, want [REASSIGN]", got)
	}

	for _, trig := range []Trigger{TriggerAdvance, TriggerAmend, TriggerApprove, TriggerReject, TriggerEscalate} {
		if err := m.Fire(context.Background(), trig); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Fire(%s) from ESCALATED error = %v, want ErrInvalidTransition", trig, err)
		}
	}

	if err := m.Fire(context.Background(), TriggerReassign); err != nil {
		t.Fatalf("Fire(REASSIGN) error = %v", err)
	}
	if m.State() != StatePending {
		t.Errorf("State() = %s, want PENDING", m.State())
	}
}

func TestNewLifecycle_UnknownStatus(t *testing.T) {
	_, err := NewLifecycle(State("ON_HOLD"))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("NewLifecycle() error = %v, want ErrInvalidState", err)
	}
}

func TestBuilder_GuardedTransitions(t *testing.T) {
	builder := NewBuilder()
	allow := false
	builder.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return allow })

	m := builder.Build(StatePending)
	if !m.CanFire(TriggerApprove) {
		t.Fatal("CanFire() should report a configured trigger")
	}
	if err := m.Fire(context.Background(), TriggerApprove); !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want ErrGuardFailed", err)
	}

	allow = true
	if err := m.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != StateApproved {
		t.Errorf("State() = %s, want APPROVED", m.State())
	}
}

func TestBuilder_BuildIsIsolated(t *testing.T) {
	builder := NewBuilder()
	cfg := builder.Configure(StatePending)
	m := builder.Build(StatePending)

	cfg.Permit(TriggerReject, StateRejected)

	if m.CanFire(TriggerReject) {
		t.Error("machine built earlier should not see later configuration")
	}
}

func TestBuilder_PanicsOnInvalidState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Configure() with invalid state should panic")
		}
	}()
	NewBuilder().Configure(State("BOGUS"))
}

func TestTriggerForCompletion(t *testing.T) {
	if trig, ok := TriggerForCompletion(StateApproved); !ok || trig != TriggerApprove {
		t.Errorf("TriggerForCompletion(APPROVED) = %s, %v", trig, ok)
	}
	if _, ok := TriggerForCompletion(StatePending); ok {
		t.Error("PENDING is not a completion status")
	}
}
