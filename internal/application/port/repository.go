package port

import (
	"context"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// WorkflowRepository defines persistence operations for Workflow.
// Lookups return (nil, nil) when the workflow does not exist.
type WorkflowRepository interface {
	// Create inserts a workflow; a second workflow for the same request and
	// type fails with a DUPLICATE_WORKFLOW error.
	Create(ctx context.Context, wf *entity.Workflow) error
	GetByID(ctx context.Context, id string) (*entity.Workflow, error)
	GetByRequestAndType(ctx context.Context, travelRequestID, workflowType string) (*entity.Workflow, error)
	ListByRequest(ctx context.Context, travelRequestID string) ([]*entity.Workflow, error)

	// Update writes wf if its Version matches the stored row and bumps
	// Version. A stale version fails with ErrConcurrentModification.
	Update(ctx context.Context, wf *entity.Workflow) error

	ListByStatus(ctx context.Context, status string) ([]*entity.Workflow, error)
	ListByStatusAndStep(ctx context.Context, status, step string) ([]*entity.Workflow, error)
	ListPendingByRole(ctx context.Context, role string) ([]*entity.Workflow, error)
	ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Workflow, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Workflow, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ActionRepository is the append-only action ledger
type ActionRepository interface {
	Create(ctx context.Context, action *entity.Action) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Action, error)
	// ListByRequest returns actions for every workflow of a request, newest first.
	ListByRequest(ctx context.Context, travelRequestID string) ([]*entity.Action, error)
	ListByActor(ctx context.Context, approverID string) ([]*entity.Action, error)
}

// StepConfigRepository stores step configuration reference data
type StepConfigRepository interface {
	ListAll(ctx context.Context) ([]entity.StepConfig, error)
	// ReplaceAll swaps the whole configuration set.
	ReplaceAll(ctx context.Context, configs []entity.StepConfig) error
}

// NotificationRepository records outbound notifications and their delivery outcome
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	MarkSent(ctx context.Context, id string, attempts int) error
	MarkFailed(ctx context.Context, id string, attempts int, errMsg string) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
