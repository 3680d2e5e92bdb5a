package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/tracing"
)

func (e *engineImpl) ProcessApproval(ctx context.Context, req ApprovalRequest) (wf *entity.Workflow, err error) {
	action := strings.ToUpper(strings.TrimSpace(req.Action))

	ctx, span := tracing.Start(ctx, "workflow.ProcessApproval",
		attribute.String("workflow.id", req.WorkflowID),
		attribute.String("workflow.action", action),
	)
	defer func() { tracing.End(span, err) }()

	switch action {
	case entity.ActionApprove, entity.ActionReject, entity.ActionReturn, entity.ActionEscalate:
	default:
		return nil, domainwf.InvalidActionf("unknown action %q", req.Action)
	}

	wf, err = e.mutate(ctx, req.WorkflowID, func(ctx context.Context, wf *entity.Workflow, ob *outbox) error {
		if err := requirePending(wf); err != nil {
			return err
		}
		if err := authorize(wf, req.ApproverRole, req.ApproverID); err != nil {
			return err
		}

		if err := e.record(ctx, wf, &entity.Action{
			ApproverRole:        strings.ToUpper(strings.TrimSpace(req.ApproverRole)),
			ApproverID:          req.ApproverID,
			ApproverName:        req.ApproverName,
			Action:              action,
			Comments:            req.Comments,
			EscalationReason:    req.EscalationReason,
			IsEscalated:         req.EscalationReason != nil,
			AmountApproved:      cloneFloat(req.AmountApproved),
			ReimbursementAmount: cloneFloat(req.ReimbursementAmount),
		}); err != nil {
			return err
		}

		switch action {
		case entity.ActionApprove:
			return e.approve(ctx, wf, req, ob)
		case entity.ActionReject:
			return e.reject(ctx, wf, req.Comments, ob)
		case entity.ActionReturn:
			return e.returnForCorrection(ctx, wf, req.Comments, ob)
		default:
			reason := req.Comments
			if req.EscalationReason != nil {
				reason = *req.EscalationReason
			}
			return e.escalate(ctx, wf, reason, ob)
		}
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval processed",
		"workflow_id", wf.ID,
		"action", action,
		"approver_id", req.ApproverID,
		"status", wf.Status,
		"current_step", wf.CurrentStep,
	)
	return wf, nil
}

func (e *engineImpl) approve(ctx context.Context, wf *entity.Workflow, req ApprovalRequest, ob *outbox) error {
	switch wf.CurrentStep {
	case entity.StepTravelDeskCheck:
		if req.MarkOverpriced {
			wf.IsOverpriced = true
			wf.OverpricedReason = req.OverpricedReason
		}
	case entity.StepFinanceApproval:
		if req.AmountApproved != nil {
			wf.EstimatedCost = cloneFloat(req.AmountApproved)
		}
	}

	steps, err := e.catalog.StepsFor(wf.WorkflowType)
	if err != nil {
		return err
	}
	if steps.IndexOf(wf.CurrentStep) < 0 {
		return domainwf.Configurationf("current step %s not found in %s configuration", wf.CurrentStep, wf.WorkflowType)
	}
	if steps.IsLast(wf.CurrentStep) {
		return e.complete(ctx, wf, domainwf.StateApproved, ob)
	}
	return e.advance(ctx, wf, steps, ob)
}

// advance routes wf off its current step. Reaching the reserved completion
// step finishes the workflow as COMPLETED.
func (e *engineImpl) advance(ctx context.Context, wf *entity.Workflow, steps domainwf.Steps, ob *outbox) error {
	decision, err := e.router.Load().Next(wf, steps)
	if err != nil {
		return err
	}
	if decision.Complete {
		return e.complete(ctx, wf, domainwf.StateCompleted, ob)
	}
	return e.moveTo(ctx, wf, steps, decision.Step, ob)
}

// moveTo parks wf on step and assigns its approver
func (e *engineImpl) moveTo(ctx context.Context, wf *entity.Workflow, steps domainwf.Steps, step entity.StepConfig, ob *outbox) error {
	if err := transition(ctx, wf, domainwf.TriggerAdvance); err != nil {
		return err
	}

	// A failed fetch leaves the request unknown and the resolver assigns the fallback approver.
	var travelRequest *entity.TravelRequest
	if strings.EqualFold(step.ApproverRole, entity.RoleManager) {
		req, err := e.requests.FetchRequest(ctx, wf.TravelRequestID)
		if err != nil {
			e.logger.Warn("Failed to fetch travel request for manager lookup",
				"workflow_id", wf.ID,
				"travel_request_id", wf.TravelRequestID,
				"error", err,
			)
		}
		travelRequest = req
	}
	resolution := e.resolver.Resolve(ctx, step, travelRequest)

	previous := wf.CurrentStep
	due := e.policy.DueDate(step, e.now())

	wf.PreviousStep = previous
	wf.CurrentStep = step.StepName
	wf.CurrentApproverRole = step.ApproverRole
	wf.CurrentApproverID = resolution.ApproverID
	wf.NextStep = steps.NextHint(step.StepName)
	wf.DueDate = &due

	ob.emit(event.TypeWorkflowAdvanced, wf, map[string]interface{}{
		event.KeyPreviousStep: previous,
	})
	return nil
}

// complete finishes wf with a completion status. A pre-travel approval
// starts the post-travel workflow in the same transaction.
func (e *engineImpl) complete(ctx context.Context, wf *entity.Workflow, status domainwf.State, ob *outbox) error {
	trigger, ok := domainwf.TriggerForCompletion(status)
	if !ok {
		return domainwf.InvalidStatef("%s is not a completion status", status)
	}
	if err := transition(ctx, wf, trigger); err != nil {
		return err
	}

	wf.PreviousStep = wf.CurrentStep
	wf.CurrentStep = entity.StepCompleted
	wf.NextStep = ""
	wf.CompletedAt = e.stamp()

	ob.setRequestStatus(wf.TravelRequestID, domainwf.RequestStatusFor(wf.Status))
	ob.emit(event.TypeWorkflowCompleted, wf, nil)

	if wf.WorkflowType == entity.WorkflowTypePreTravel && status == domainwf.StateApproved {
		return e.chainPostTravel(ctx, wf, ob)
	}
	return nil
}

func (e *engineImpl) reject(ctx context.Context, wf *entity.Workflow, comments string, ob *outbox) error {
	if err := transition(ctx, wf, domainwf.TriggerReject); err != nil {
		return err
	}
	wf.CompletedAt = e.stamp()

	ob.setRequestStatus(wf.TravelRequestID, entity.StatusRejected)
	ob.emit(event.TypeWorkflowRejected, wf, map[string]interface{}{event.KeyComments: comments})
	return nil
}

// returnForCorrection ends this instance; a resubmission starts a new workflow.
func (e *engineImpl) returnForCorrection(ctx context.Context, wf *entity.Workflow, comments string, ob *outbox) error {
	if err := transition(ctx, wf, domainwf.TriggerReturn); err != nil {
		return err
	}

	ob.setRequestStatus(wf.TravelRequestID, entity.StatusReturned)
	ob.emit(event.TypeWorkflowReturned, wf, map[string]interface{}{event.KeyComments: comments})
	return nil
}

// escalate keeps the current step and approver so someone can pick it up.
func (e *engineImpl) escalate(ctx context.Context, wf *entity.Workflow, reason string, ob *outbox) error {
	if err := transition(ctx, wf, domainwf.TriggerEscalate); err != nil {
		return err
	}
	wf.Priority = entity.PriorityHigh

	ob.emit(event.TypeWorkflowEscalated, wf, map[string]interface{}{event.KeyReason: reason})
	return nil
}

func (e *engineImpl) Escalate(ctx context.Context, workflowID, reason, escalatedBy string) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.Escalate", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	if strings.TrimSpace(reason) == "" {
		return nil, domainwf.Validationf("escalation reason is required")
	}

	wf, err = e.mutate(ctx, workflowID, func(ctx context.Context, wf *entity.Workflow, ob *outbox) error {
		if err := requirePending(wf); err != nil {
			return err
		}
		if err := e.record(ctx, wf, &entity.Action{
			ApproverRole:     entity.RoleSystem,
			ApproverID:       escalatedBy,
			Action:           entity.ActionEscalate,
			Comments:         reason,
			EscalationReason: &reason,
			IsEscalated:      true,
		}); err != nil {
			return err
		}
		return e.escalate(ctx, wf, reason, ob)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Warn("Workflow escalated", "workflow_id", wf.ID, "escalated_by", escalatedBy, "reason", reason)
	return wf, nil
}

func (e *engineImpl) Reassign(ctx context.Context, req ReassignRequest) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.Reassign", attribute.String("workflow.id", req.WorkflowID))
	defer func() { tracing.End(span, err) }()

	role := strings.ToUpper(strings.TrimSpace(req.ApproverRole))
	if role == "" {
		return nil, domainwf.Validationf("approver role is required")
	}
	var approverID *string
	if req.ApproverID != nil && strings.TrimSpace(*req.ApproverID) != "" {
		id := strings.TrimSpace(*req.ApproverID)
		approverID = &id
	}
	if role == entity.RoleManager && approverID == nil {
		return nil, domainwf.Validationf("manager steps require an approver id")
	}

	wf, err = e.mutate(ctx, req.WorkflowID, func(ctx context.Context, wf *entity.Workflow, ob *outbox) error {
		// An escalated workflow keeps its step and goes back to PENDING under the new approver.
		if !wf.IsPending() && wf.Status != entity.StatusEscalated {
			return domainwf.InvalidStatef("workflow %s is %s and cannot be reassigned", wf.ID, wf.Status)
		}

		comments := req.Comments
		if comments == "" {
			comments = fmt.Sprintf("Reassigned from %s to %s", describeApprover(wf.CurrentApproverRole, wf.CurrentApproverID), describeApprover(role, approverID))
		}
		if err := e.record(ctx, wf, &entity.Action{
			ApproverRole: entity.RoleSystem,
			ApproverID:   req.ReassignedBy,
			Action:       entity.ActionReassign,
			Comments:     comments,
		}); err != nil {
			return err
		}
		if err := transition(ctx, wf, domainwf.TriggerReassign); err != nil {
			return err
		}

		wf.CurrentApproverRole = role
		wf.CurrentApproverID = approverID
		ob.emit(event.TypeWorkflowReassigned, wf, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow reassigned",
		"workflow_id", wf.ID,
		"approver_role", wf.CurrentApproverRole,
		"approver_id", wf.ApproverID(),
		"reassigned_by", req.ReassignedBy,
	)
	return wf, nil
}

func (e *engineImpl) UpdatePriority(ctx context.Context, workflowID, priority, updatedBy string) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.UpdatePriority", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	priority = strings.ToUpper(strings.TrimSpace(priority))
	if !domainwf.ValidPriority(priority) {
		return nil, domainwf.Validationf("unknown priority %q", priority)
	}

	return e.mutate(ctx, workflowID, func(ctx context.Context, wf *entity.Workflow, ob *outbox) error {
		if err := requirePending(wf); err != nil {
			return err
		}
		if err := e.record(ctx, wf, &entity.Action{
			ApproverRole: entity.RoleSystem,
			ApproverID:   updatedBy,
			Action:       entity.ActionUpdatePriority,
			Comments:     fmt.Sprintf("Priority changed from %s to %s", wf.Priority, priority),
		}); err != nil {
			return err
		}
		if err := transition(ctx, wf, domainwf.TriggerAmend); err != nil {
			return err
		}
		wf.Priority = priority
		return nil
	})
}

func describeApprover(role string, id *string) string {
	if id == nil || *id == "" {
		return role
	}
	return role + " " + *id
}
