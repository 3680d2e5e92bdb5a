package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/travel-approval/internal/application/approver"
	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// Dependencies are the collaborators the engine cannot run without
type Dependencies struct {
	Workflows   port.WorkflowRepository
	Actions     port.ActionRepository
	StepConfigs port.StepConfigRepository
	TxManager   port.TransactionManager
	Requests    port.RequestTracker
	Resolver    *approver.Resolver
	Catalog     *domainwf.Catalog
	// CatalogSource is consulted by ReloadCatalog; nil reloads from StepConfigs.
	CatalogSource port.CatalogSource
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	workflows   port.WorkflowRepository
	actions     port.ActionRepository
	stepConfigs port.StepConfigRepository
	txManager   port.TransactionManager
	requests    port.RequestTracker
	resolver    *approver.Resolver
	catalog     *domainwf.Catalog
	source      port.CatalogSource

	router     atomic.Pointer[domainwf.Router]
	policy     domainwf.Policy
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewEngine creates a workflow engine
func NewEngine(deps Dependencies, opts ...Option) (Engine, error) {
	if deps.Workflows == nil || deps.Actions == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("workflow engine requires workflow and action repositories and a transaction manager")
	}
	if deps.Requests == nil || deps.Resolver == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("workflow engine requires a request tracker, approver resolver and step catalog")
	}

	e := &engineImpl{
		workflows:   deps.Workflows,
		actions:     deps.Actions,
		stepConfigs: deps.StepConfigs,
		txManager:   deps.TxManager,
		requests:    deps.Requests,
		resolver:    deps.Resolver,
		catalog:     deps.Catalog,
		source:      deps.CatalogSource,
		policy:      domainwf.DefaultPolicy(),
		logger:      nopLogger{},
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.router.Load() == nil {
		router, err := domainwf.NewRouter(domainwf.DefaultRoutes(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build default router: %w", err)
		}
		e.router.Store(router)
	}

	return e, nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// outbox collects side effects that may only run once the transaction has
// committed. A rollback discards it.
type outbox struct {
	events        []*event.Event
	statusUpdates []requestUpdate
	costUpdates   []requestUpdate
	correlationID string
}

type requestUpdate struct {
	travelRequestID string
	status          string
	amount          float64
}

func newOutbox() *outbox {
	return &outbox{correlationID: uuid.NewString()}
}

func (o *outbox) emit(eventType event.Type, wf *entity.Workflow, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload[event.KeyWorkflowType] = wf.WorkflowType
	payload[event.KeyStep] = wf.CurrentStep
	payload[event.KeyStatus] = wf.Status
	payload[event.KeyApproverRole] = wf.CurrentApproverRole
	payload[event.KeyApproverID] = wf.ApproverID()
	o.events = append(o.events, event.NewEventWithCorrelation(eventType, wf.ID, wf.TravelRequestID, payload, o.correlationID))
}

func (o *outbox) setRequestStatus(travelRequestID, status string) {
	o.statusUpdates = append(o.statusUpdates, requestUpdate{travelRequestID: travelRequestID, status: status})
}

func (o *outbox) setActualCost(travelRequestID string, amount float64) {
	o.costUpdates = append(o.costUpdates, requestUpdate{travelRequestID: travelRequestID, amount: amount})
}

// flush runs the collected effects. Every failure is logged and dropped;
// the committed transition stays the source of truth.
func (e *engineImpl) flush(ctx context.Context, o *outbox) {
	ctx = context.WithoutCancel(ctx)

	for _, u := range o.statusUpdates {
		if err := e.requests.SetRequestStatus(ctx, u.travelRequestID, u.status); err != nil {
			e.logger.Warn("Failed to update travel request status",
				"travel_request_id", u.travelRequestID,
				"status", u.status,
				"error", err,
			)
		}
	}
	for _, u := range o.costUpdates {
		if err := e.requests.SetActualCost(ctx, u.travelRequestID, u.amount); err != nil {
			e.logger.Warn("Failed to update travel request actual cost",
				"travel_request_id", u.travelRequestID,
				"actual_cost", u.amount,
				"error", err,
			)
		}
	}

	if e.dispatcher == nil {
		return
	}
	for _, evt := range o.events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

// mutation changes a loaded workflow inside the transaction. It must
// record exactly one action before changing routing state.
type mutation func(ctx context.Context, wf *entity.Workflow, ob *outbox) error

// mutate loads, changes and writes a workflow as one unit of work
func (e *engineImpl) mutate(ctx context.Context, workflowID string, fn mutation) (*entity.Workflow, error) {
	if strings.TrimSpace(workflowID) == "" {
		return nil, domainwf.Validationf("workflow id is required")
	}

	ob := newOutbox()
	var result *entity.Workflow

	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		wf, err := e.load(ctx, workflowID)
		if err != nil {
			return err
		}
		if err := fn(ctx, wf, ob); err != nil {
			return err
		}
		wf.UpdatedAt = e.now()
		if err := e.workflows.Update(ctx, wf); err != nil {
			return fmt.Errorf("failed to update workflow %s: %w", wf.ID, err)
		}
		result = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.flush(ctx, ob)
	return result, nil
}

func (e *engineImpl) load(ctx context.Context, workflowID string) (*entity.Workflow, error) {
	wf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}
	if wf == nil {
		return nil, domainwf.NotFoundf("workflow %s not found", workflowID)
	}
	return wf, nil
}

// record appends a ledger entry for wf at its current step. A failed
// write fails the enclosing transaction.
func (e *engineImpl) record(ctx context.Context, wf *entity.Workflow, a *entity.Action) error {
	a.ID = uuid.NewString()
	a.WorkflowID = wf.ID
	a.TravelRequestID = wf.TravelRequestID
	if a.Step == "" {
		a.Step = wf.CurrentStep
	}
	a.CreatedAt = e.now()

	if err := e.actions.Create(ctx, a); err != nil {
		return fmt.Errorf("failed to record %s action: %w", a.Action, err)
	}
	return nil
}

// transition fires trigger against wf's status and stores the result
func transition(ctx context.Context, wf *entity.Workflow, trigger domainwf.Trigger) error {
	machine, err := domainwf.NewLifecycle(domainwf.State(wf.Status))
	if err != nil {
		return err
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return err
	}
	wf.Status = machine.State().String()
	return nil
}

func requirePending(wf *entity.Workflow) error {
	if !wf.IsPending() {
		return domainwf.InvalidStatef("workflow %s is %s, not PENDING", wf.ID, wf.Status)
	}
	return nil
}

func requireStep(wf *entity.Workflow, step string) error {
	if err := requirePending(wf); err != nil {
		return err
	}
	if wf.CurrentStep != step {
		return domainwf.InvalidStatef("workflow %s is at step %s, operation requires %s", wf.ID, wf.CurrentStep, step)
	}
	return nil
}

// authorize checks the actor against the pending step. Manager steps are
// bound to the assigned identity.
func authorize(wf *entity.Workflow, role, actorID string) error {
	if !strings.EqualFold(strings.TrimSpace(role), wf.CurrentApproverRole) {
		return domainwf.Unauthorizedf("role %s cannot act on step %s, it requires %s", role, wf.CurrentStep, wf.CurrentApproverRole)
	}
	if !strings.EqualFold(wf.CurrentApproverRole, entity.RoleManager) {
		return nil
	}
	if wf.CurrentApproverID == nil || *wf.CurrentApproverID == "" {
		return domainwf.Unauthorizedf("step %s has no assigned manager", wf.CurrentStep)
	}
	if actorID != *wf.CurrentApproverID {
		return domainwf.Unauthorizedf("approver %s is not the manager assigned to step %s", actorID, wf.CurrentStep)
	}
	return nil
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (e *engineImpl) stamp() *time.Time {
	t := e.now()
	return &t
}
