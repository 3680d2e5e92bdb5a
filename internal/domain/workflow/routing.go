package workflow

import (
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Route sends a workflow from one named step to another when its condition holds
type Route struct {
	WorkflowType string `yaml:"workflow_type" json:"workflow_type"`
	From         string `yaml:"from" json:"from"`
	When         string `yaml:"when,omitempty" json:"when,omitempty"`
	To           string `yaml:"to" json:"to"`
}

// DefaultRoutes is the built-in branching table. Routes are evaluated in
// order and the first matching condition wins.
func DefaultRoutes() []Route {
	return []Route{
		{WorkflowType: entity.WorkflowTypePreTravel, From: entity.StepManagerApproval, To: entity.StepTravelDeskCheck},
		{WorkflowType: entity.WorkflowTypePreTravel, From: entity.StepTravelDeskCheck, When: "isOverpriced", To: entity.StepFinanceApproval},
		{WorkflowType: entity.WorkflowTypePreTravel, From: entity.StepTravelDeskCheck, When: "!isOverpriced", To: entity.StepHRApproval},
		{WorkflowType: entity.WorkflowTypePreTravel, From: entity.StepFinanceApproval, To: entity.StepTravelDeskBooking},
		{WorkflowType: entity.WorkflowTypePreTravel, From: entity.StepTravelDeskBooking, To: entity.StepHRCompliance},
		{WorkflowType: entity.WorkflowTypePreTravel, From: entity.StepHRCompliance, To: entity.StepFinanceFinal},
		{WorkflowType: entity.WorkflowTypePostTravel, From: entity.StepTravelDeskBillReview, To: entity.StepFinanceReimbursement},
	}
}

// Decision is the outcome of routing a workflow off its current step
type Decision struct {
	Step entity.StepConfig
	// Complete is set when routing reached the reserved WORKFLOW_COMPLETE step.
	Complete bool
	// Route is the matching table entry, nil when the positional next step was used.
	Route *Route
}

// Router evaluates the branching table against a catalog step sequence
type Router struct {
	routes    []Route
	evaluator *PredicateEvaluator
}

// NewRouter validates every route condition up front.
func NewRouter(routes []Route, evaluator *PredicateEvaluator) (*Router, error) {
	if evaluator == nil {
		evaluator = NewPredicateEvaluator()
	}
	for _, r := range routes {
		if r.WorkflowType == "" || r.From == "" || r.To == "" {
			return nil, Configurationf("route %+v must name workflow type, from and to", r)
		}
		if r.When == "" {
			continue
		}
		if err := evaluator.Compile(r.When); err != nil {
			return nil, err
		}
	}
	return &Router{routes: append([]Route(nil), routes...), evaluator: evaluator}, nil
}

// Routes returns a copy of the table
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Next picks the step that follows wf's current step. A named target that
// is missing from steps falls back to the positional next step.
func (r *Router) Next(wf *entity.Workflow, steps Steps) (Decision, error) {
	if steps.IndexOf(wf.CurrentStep) < 0 {
		return Decision{}, Configurationf("current step %s not found in %s configuration", wf.CurrentStep, wf.WorkflowType)
	}

	for i := range r.routes {
		route := &r.routes[i]
		if route.WorkflowType != wf.WorkflowType || route.From != wf.CurrentStep {
			continue
		}
		ok, err := r.evaluator.Evaluate(route.When, wf)
		if err != nil {
			return Decision{}, Configurationf("route %s -> %s: %v", route.From, route.To, err)
		}
		if !ok {
			continue
		}
		if route.To == entity.StepWorkflowComplete {
			return Decision{Step: completionStep(wf.WorkflowType, steps), Complete: true, Route: route}, nil
		}
		if step, found := steps.Find(route.To); found {
			return decide(step, route), nil
		}
		break
	}

	next, ok := steps.After(wf.CurrentStep)
	if !ok {
		return Decision{}, Configurationf("no step after %s in %s configuration", wf.CurrentStep, wf.WorkflowType)
	}
	return decide(next, nil), nil
}

func decide(step entity.StepConfig, route *Route) Decision {
	return Decision{Step: step, Complete: IsCompletionStep(step), Route: route}
}

// IsCompletionStep reports whether step is the reserved auto-complete marker.
func IsCompletionStep(step entity.StepConfig) bool {
	return step.StepName == entity.StepWorkflowComplete
}

func completionStep(workflowType string, steps Steps) entity.StepConfig {
	if step, ok := steps.Find(entity.StepWorkflowComplete); ok {
		return step
	}
	return entity.StepConfig{
		WorkflowType: workflowType,
		StepName:     entity.StepWorkflowComplete,
		ApproverRole: entity.RoleSystem,
		IsActive:     true,
	}
}
