package workflow

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/tracing"
)

func (e *engineImpl) GetWorkflow(ctx context.Context, workflowID string) (*entity.Workflow, error) {
	if strings.TrimSpace(workflowID) == "" {
		return nil, domainwf.Validationf("workflow id is required")
	}
	return e.load(ctx, workflowID)
}

// GetWorkflowByRequest returns the workflow of the given type, or the
// earliest workflow of the request when no type is given.
func (e *engineImpl) GetWorkflowByRequest(ctx context.Context, travelRequestID, workflowType string) (*entity.Workflow, error) {
	if strings.TrimSpace(travelRequestID) == "" {
		return nil, domainwf.Validationf("travel request id is required")
	}

	workflowType = strings.ToUpper(strings.TrimSpace(workflowType))
	if workflowType != "" {
		wf, err := e.workflows.GetByRequestAndType(ctx, travelRequestID, workflowType)
		if err != nil {
			return nil, fmt.Errorf("failed to get workflow: %w", err)
		}
		if wf == nil {
			return nil, domainwf.NotFoundf("no %s workflow for travel request %s", workflowType, travelRequestID)
		}
		return wf, nil
	}

	workflows, err := e.workflows.ListByRequest(ctx, travelRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if len(workflows) == 0 {
		return nil, domainwf.NotFoundf("no workflow for travel request %s", travelRequestID)
	}
	return workflows[0], nil
}

// PendingApprovals lists PENDING workflows assigned to approverID, or to
// role when no identity is given.
func (e *engineImpl) PendingApprovals(ctx context.Context, role, approverID string) ([]*entity.Workflow, error) {
	var (
		workflows []*entity.Workflow
		err       error
	)
	switch {
	case strings.TrimSpace(approverID) != "":
		workflows, err = e.workflows.ListPendingByApprover(ctx, strings.TrimSpace(approverID))
	case strings.TrimSpace(role) != "":
		workflows, err = e.workflows.ListPendingByRole(ctx, strings.ToUpper(strings.TrimSpace(role)))
	default:
		return nil, domainwf.Validationf("role or approver id is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list pending workflows: %w", err)
	}
	return workflows, nil
}

func (e *engineImpl) WorkflowsByStatus(ctx context.Context, status string) ([]*entity.Workflow, error) {
	status, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	workflows, err := e.workflows.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows by status: %w", err)
	}
	return workflows, nil
}

func (e *engineImpl) WorkflowsByStatusAndStep(ctx context.Context, status, step string) ([]*entity.Workflow, error) {
	status, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	step = strings.ToUpper(strings.TrimSpace(step))
	if step == "" {
		return nil, domainwf.Validationf("step is required")
	}
	workflows, err := e.workflows.ListByStatusAndStep(ctx, status, step)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows by status and step: %w", err)
	}
	return workflows, nil
}

func (e *engineImpl) ListWorkflows(ctx context.Context, limit, offset int) ([]*entity.Workflow, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	workflows, err := e.workflows.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}

// History returns every action of the request's workflows, newest first.
func (e *engineImpl) History(ctx context.Context, travelRequestID string) ([]*entity.Action, error) {
	if strings.TrimSpace(travelRequestID) == "" {
		return nil, domainwf.Validationf("travel request id is required")
	}
	actions, err := e.actions.ListByRequest(ctx, travelRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	return actions, nil
}

func (e *engineImpl) Metrics(ctx context.Context) (*entity.WorkflowMetrics, error) {
	counts, err := e.workflows.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	m := &entity.WorkflowMetrics{
		PendingWorkflows:   counts[entity.StatusPending],
		ApprovedWorkflows:  counts[entity.StatusApproved],
		RejectedWorkflows:  counts[entity.StatusRejected],
		ReturnedWorkflows:  counts[entity.StatusReturned],
		EscalatedWorkflows: counts[entity.StatusEscalated],
		CompletedWorkflows: counts[entity.StatusCompleted],
	}
	for _, n := range counts {
		m.TotalWorkflows += n
	}

	approved, err := e.workflows.ListByStatus(ctx, entity.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved workflows: %w", err)
	}
	m.AverageApprovalTime = averageApprovalHours(approved)
	return m, nil
}

// averageApprovalHours averages whole hours from creation to completion.
func averageApprovalHours(workflows []*entity.Workflow) float64 {
	if len(workflows) == 0 {
		return 0
	}
	var total float64
	for _, wf := range workflows {
		if wf.CompletedAt == nil {
			continue
		}
		total += math.Trunc(wf.CompletedAt.Sub(wf.CreatedAt).Hours())
	}
	return total / float64(len(workflows))
}

// ApproverStats combines the approver's open queue with their decisions
// from the ledger. Processing time runs from the previous ledger entry of
// the same workflow to the decision.
func (e *engineImpl) ApproverStats(ctx context.Context, approverID string) (*entity.ApproverStats, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return nil, domainwf.Validationf("approver id is required")
	}

	pending, err := e.workflows.ListPendingByApprover(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending workflows: %w", err)
	}
	actions, err := e.actions.ListByActor(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approver actions: %w", err)
	}

	stats := &entity.ApproverStats{ApproverID: approverID, Pending: int64(len(pending))}

	ledgers := make(map[string][]*entity.Action)
	var totalHours float64
	var timed int64
	for _, a := range actions {
		switch a.Action {
		case entity.ActionApprove:
			stats.Approved++
		case entity.ActionReject:
			stats.Rejected++
		default:
			continue
		}

		ledger, ok := ledgers[a.WorkflowID]
		if !ok {
			ledger, err = e.actions.ListByWorkflow(ctx, a.WorkflowID)
			if err != nil {
				return nil, fmt.Errorf("failed to list workflow actions: %w", err)
			}
			sort.SliceStable(ledger, func(i, j int) bool { return ledger[i].CreatedAt.Before(ledger[j].CreatedAt) })
			ledgers[a.WorkflowID] = ledger
		}
		if prev := previousAction(ledger, a); prev != nil {
			totalHours += a.CreatedAt.Sub(prev.CreatedAt).Hours()
			timed++
		}
	}

	stats.TotalAssigned = stats.Pending + stats.Approved + stats.Rejected
	if timed > 0 {
		stats.AverageProcessingTime = totalHours / float64(timed)
	}
	return stats, nil
}

func previousAction(ledger []*entity.Action, a *entity.Action) *entity.Action {
	var prev *entity.Action
	for _, entry := range ledger {
		if entry.ID == a.ID {
			return prev
		}
		prev = entry
	}
	return nil
}

// ReloadCatalog validates the new configuration in full before storing it
// and swapping the live snapshot. Sources that carry routes also replace
// the branching table. It returns the new catalog revision.
func (e *engineImpl) ReloadCatalog(ctx context.Context) (revision int64, err error) {
	ctx, span := tracing.Start(ctx, "workflow.ReloadCatalog")
	defer func() { tracing.End(span, err) }()

	var configs []entity.StepConfig
	switch {
	case e.source != nil:
		configs, err = e.source.Load(ctx)
	case e.stepConfigs != nil:
		configs, err = e.stepConfigs.ListAll(ctx)
	default:
		return 0, domainwf.Configurationf("no step configuration source available")
	}
	if err != nil {
		return 0, domainwf.Configurationf("failed to load step configuration: %v", err)
	}

	candidate := domainwf.NewCatalog(configs)
	types := candidate.WorkflowTypes()
	if len(types) == 0 {
		return 0, domainwf.Configurationf("step configuration has no active steps")
	}
	for _, t := range types {
		if _, err := candidate.StepsFor(t); err != nil {
			return 0, err
		}
	}

	var router *domainwf.Router
	if rs, ok := e.source.(port.RouteSource); ok {
		routes, err := rs.Routes()
		if err != nil {
			return 0, domainwf.Configurationf("failed to load routes: %v", err)
		}
		if router, err = domainwf.NewRouter(routes, nil); err != nil {
			return 0, err
		}
	}

	if e.source != nil && e.stepConfigs != nil {
		if err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			return e.stepConfigs.ReplaceAll(ctx, configs)
		}); err != nil {
			return 0, fmt.Errorf("failed to store step configuration: %w", err)
		}
	}

	e.catalog.Reload(configs)
	if router != nil {
		e.router.Store(router)
	}
	revision = e.catalog.Revision()
	e.logger.Info("Step catalog reloaded", "revision", revision, "workflow_types", strings.Join(types, ","))
	return revision, nil
}

func parseStatus(status string) (string, error) {
	s := domainwf.State(strings.ToUpper(strings.TrimSpace(status)))
	if !s.IsValid() {
		return "", domainwf.Validationf("unknown workflow status %q", status)
	}
	return s.String(), nil
}
