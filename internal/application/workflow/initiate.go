package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/tracing"
)

func (e *engineImpl) Initiate(ctx context.Context, req InitiateRequest) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.Initiate",
		attribute.String("travel_request.id", req.TravelRequestID),
		attribute.String("workflow.type", req.WorkflowType),
	)
	defer func() { tracing.End(span, err) }()

	if strings.TrimSpace(req.TravelRequestID) == "" {
		return nil, domainwf.Validationf("travel request id is required")
	}
	workflowType := strings.ToUpper(strings.TrimSpace(req.WorkflowType))

	// Fail fast before calling out to the request tracker.
	if err := e.precheck(ctx, req.TravelRequestID, workflowType); err != nil {
		return nil, err
	}

	travelRequest, err := e.requests.FetchRequest(ctx, req.TravelRequestID)
	if err != nil {
		return nil, domainwf.Upstream(fmt.Sprintf("failed to fetch travel request %s", req.TravelRequestID), err)
	}
	if travelRequest == nil {
		return nil, domainwf.NotFoundf("travel request %s not found", req.TravelRequestID)
	}
	if travelRequest.ID == "" {
		travelRequest.ID = req.TravelRequestID
	}

	return e.initiate(ctx, travelRequest, workflowType, req.EstimatedCost)
}

func (e *engineImpl) InitiateForRequest(ctx context.Context, travelRequest *entity.TravelRequest, workflowType string, estimatedCost *float64) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.InitiateForRequest", attribute.String("workflow.type", workflowType))
	defer func() { tracing.End(span, err) }()

	if travelRequest == nil || strings.TrimSpace(travelRequest.ID) == "" {
		return nil, domainwf.Validationf("travel request with an id is required")
	}
	workflowType = strings.ToUpper(strings.TrimSpace(workflowType))
	if err := e.precheck(ctx, travelRequest.ID, workflowType); err != nil {
		return nil, err
	}
	return e.initiate(ctx, travelRequest, workflowType, estimatedCost)
}

func (e *engineImpl) precheck(ctx context.Context, travelRequestID, workflowType string) error {
	if workflowType == "" {
		return domainwf.Validationf("workflow type is required")
	}
	if err := e.ensureUnique(ctx, travelRequestID, workflowType); err != nil {
		return err
	}
	if _, err := e.catalog.StepsFor(workflowType); err != nil {
		return err
	}
	return nil
}

func (e *engineImpl) ensureUnique(ctx context.Context, travelRequestID, workflowType string) error {
	existing, err := e.workflows.GetByRequestAndType(ctx, travelRequestID, workflowType)
	if err != nil {
		return fmt.Errorf("failed to check existing workflow: %w", err)
	}
	if existing != nil {
		return domainwf.Duplicatef("%s workflow already exists for travel request %s", workflowType, travelRequestID)
	}
	return nil
}

func (e *engineImpl) initiate(ctx context.Context, travelRequest *entity.TravelRequest, workflowType string, estimatedCost *float64) (*entity.Workflow, error) {
	ob := newOutbox()
	var created *entity.Workflow

	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		wf, err := e.create(ctx, travelRequest, workflowType, estimatedCost, ob)
		if err != nil {
			return err
		}
		created = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow initiated",
		"workflow_id", created.ID,
		"travel_request_id", created.TravelRequestID,
		"workflow_type", created.WorkflowType,
		"current_step", created.CurrentStep,
		"priority", created.Priority,
	)
	e.flush(ctx, ob)
	return created, nil
}

// create writes a new workflow positioned at the first configured step
// together with its SUBMIT action. It must run inside a transaction.
func (e *engineImpl) create(ctx context.Context, travelRequest *entity.TravelRequest, workflowType string, estimatedCost *float64, ob *outbox) (*entity.Workflow, error) {
	steps, err := e.catalog.StepsFor(workflowType)
	if err != nil {
		return nil, err
	}
	if err := e.ensureUnique(ctx, travelRequest.ID, workflowType); err != nil {
		return nil, err
	}

	if estimatedCost == nil {
		estimatedCost = travelRequest.EstimatedCost
	}

	first := steps[0]
	resolution := e.resolver.Resolve(ctx, first, travelRequest)
	employee := resolution.Employee
	if employee == nil {
		employee = e.resolver.Employee(ctx, travelRequest.EmployeeID)
	}

	ts := e.now()
	due := e.policy.DueDate(first, ts)
	wf := &entity.Workflow{
		ID:                  uuid.NewString(),
		TravelRequestID:     travelRequest.ID,
		WorkflowType:        workflowType,
		CurrentStep:         first.StepName,
		NextStep:            steps.NextHint(first.StepName),
		CurrentApproverRole: first.ApproverRole,
		CurrentApproverID:   resolution.ApproverID,
		Status:              entity.StatusPending,
		Priority:            e.policy.Priority(travelRequest, estimatedCost),
		EstimatedCost:       cloneFloat(estimatedCost),
		DueDate:             &due,
		CreatedAt:           ts,
		UpdatedAt:           ts,
	}

	if err := e.workflows.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	if err := e.record(ctx, wf, &entity.Action{
		ApproverRole: entity.RoleSystem,
		ApproverID:   travelRequest.EmployeeID,
		ApproverName: employee.DisplayName,
		Action:       entity.ActionSubmit,
		Step:         entity.StepSubmit,
		Comments:     fmt.Sprintf("%s workflow initiated", workflowType),
	}); err != nil {
		return nil, err
	}

	ob.setRequestStatus(wf.TravelRequestID, entity.RequestStatusUnderReview)
	ob.emit(event.TypeWorkflowInitiated, wf, map[string]interface{}{
		event.KeyEmployeeID:   travelRequest.EmployeeID,
		event.KeyEmployeeName: displayName(employee),
	})
	return wf, nil
}

// chainPostTravel starts the post-travel workflow once the pre-travel one is
// approved. An existing post-travel workflow is left alone. Failures that
// leave nothing written are logged so the approval itself still commits.
func (e *engineImpl) chainPostTravel(ctx context.Context, pre *entity.Workflow, ob *outbox) error {
	existing, err := e.workflows.GetByRequestAndType(ctx, pre.TravelRequestID, entity.WorkflowTypePostTravel)
	if err != nil {
		e.logger.Warn("Failed to check for post-travel workflow", "workflow_id", pre.ID, "error", err)
		return nil
	}
	if existing != nil {
		e.logger.Info("Post-travel workflow already exists, skipping",
			"workflow_id", pre.ID,
			"post_travel_workflow_id", existing.ID,
		)
		return nil
	}

	travelRequest, err := e.requests.FetchRequest(ctx, pre.TravelRequestID)
	if err != nil || travelRequest == nil {
		e.logger.Warn("Failed to fetch travel request for post-travel workflow",
			"workflow_id", pre.ID,
			"travel_request_id", pre.TravelRequestID,
			"error", err,
		)
		return nil
	}
	if travelRequest.ID == "" {
		travelRequest.ID = pre.TravelRequestID
	}

	post, err := e.create(ctx, travelRequest, entity.WorkflowTypePostTravel, pre.EstimatedCost, ob)
	if err != nil {
		if skippable(err) {
			e.logger.Warn("Post-travel workflow not created",
				"workflow_id", pre.ID,
				"travel_request_id", pre.TravelRequestID,
				"error", err,
			)
			return nil
		}
		return err
	}

	e.logger.Info("Post-travel workflow initiated",
		"workflow_id", pre.ID,
		"post_travel_workflow_id", post.ID,
	)
	return nil
}

// skippable errors are raised before create writes anything.
func skippable(err error) bool {
	return errors.Is(err, domainwf.ErrDuplicateWorkflow) || errors.Is(err, domainwf.ErrConfiguration)
}

func displayName(emp *entity.Employee) string {
	if emp == nil {
		return ""
	}
	if emp.DisplayName != "" {
		return emp.DisplayName
	}
	return emp.EmployeeID
}
