package workflow

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// PredicateEvaluator compiles and caches boolean routing conditions
type PredicateEvaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func NewPredicateEvaluator() *PredicateEvaluator {
	return &PredicateEvaluator{programs: make(map[string]*vm.Program)}
}

// predicateEnv is the variable set a condition may reference.
func predicateEnv(wf *entity.Workflow) map[string]interface{} {
	env := map[string]interface{}{
		"workflowType":       "",
		"currentStep":        "",
		"priority":           "",
		"isOverpriced":       false,
		"estimatedCost":      0.0,
		"actualCost":         0.0,
		"totalBookingAmount": 0.0,
		"bookingCount":       0,
	}
	if wf == nil {
		return env
	}
	env["workflowType"] = wf.WorkflowType
	env["currentStep"] = wf.CurrentStep
	env["priority"] = wf.Priority
	env["isOverpriced"] = wf.IsOverpriced
	if wf.EstimatedCost != nil {
		env["estimatedCost"] = *wf.EstimatedCost
	}
	if wf.ActualCost != nil {
		env["actualCost"] = *wf.ActualCost
	}
	env["totalBookingAmount"] = wf.TotalBookingAmount
	if wf.BookingDetails != nil {
		env["bookingCount"] = wf.BookingDetails.Count()
	}
	return env
}

// Compile checks that condition is a valid boolean expression over the
// workflow variables. It is used to reject bad routing tables early.
func (e *PredicateEvaluator) Compile(condition string) error {
	_, err := e.program(condition)
	return err
}

// Evaluate runs condition against wf. An empty condition is always true.
func (e *PredicateEvaluator) Evaluate(condition string, wf *entity.Workflow) (bool, error) {
	if condition == "" {
		return true, nil
	}

	program, err := e.program(condition)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, predicateEnv(wf))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", condition, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a boolean, got %T", condition, out)
	}
	return result, nil
}

func (e *PredicateEvaluator) program(condition string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[condition]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if program, ok = e.programs[condition]; ok {
		return program, nil
	}

	program, err := expr.Compile(condition, expr.Env(predicateEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, Configurationf("invalid routing condition %q: %v", condition, err)
	}
	e.programs[condition] = program
	return program, nil
}
