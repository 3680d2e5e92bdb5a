package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

const actionColumns = `
	action_id, workflow_id, travel_request_id, approver_role, approver_id, approver_name,
	action, step, comments, escalation_reason, is_escalated,
	amount_approved, reimbursement_amount, action_taken_at
`

// ActionRepository is the append-only ledger store
type ActionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewActionRepository(db *sql.DB, logger *zap.Logger) port.ActionRepository {
	return &ActionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ActionRepository) Create(ctx context.Context, a *entity.Action) error {
	query := `INSERT INTO workflow_actions (` + actionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		a.ID,
		a.WorkflowID,
		a.TravelRequestID,
		a.ApproverRole,
		a.ApproverID,
		a.ApproverName,
		a.Action,
		a.Step,
		a.Comments,
		a.EscalationReason,
		a.IsEscalated,
		a.AmountApproved,
		a.ReimbursementAmount,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to record action",
			zap.String("workflow_id", a.WorkflowID),
			zap.String("action", a.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create action: %w", err)
	}
	return nil
}

// ListByWorkflow returns the workflow's ledger oldest first
func (r *ActionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Action, error) {
	return r.list(ctx,
		`SELECT `+actionColumns+` FROM workflow_actions WHERE workflow_id = ? ORDER BY action_taken_at, rowid`,
		workflowID)
}

func (r *ActionRepository) ListByRequest(ctx context.Context, travelRequestID string) ([]*entity.Action, error) {
	return r.list(ctx,
		`SELECT `+actionColumns+` FROM workflow_actions WHERE travel_request_id = ? ORDER BY action_taken_at DESC, rowid DESC`,
		travelRequestID)
}

func (r *ActionRepository) ListByActor(ctx context.Context, approverID string) ([]*entity.Action, error) {
	return r.list(ctx,
		`SELECT `+actionColumns+` FROM workflow_actions WHERE approver_id = ? ORDER BY action_taken_at, rowid`,
		approverID)
}

func (r *ActionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Action, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list actions", zap.Error(err))
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*entity.Action
	for rows.Next() {
		var (
			a                   entity.Action
			escalationReason    sql.NullString
			amountApproved      sql.NullFloat64
			reimbursementAmount sql.NullFloat64
		)
		err := rows.Scan(
			&a.ID,
			&a.WorkflowID,
			&a.TravelRequestID,
			&a.ApproverRole,
			&a.ApproverID,
			&a.ApproverName,
			&a.Action,
			&a.Step,
			&a.Comments,
			&escalationReason,
			&a.IsEscalated,
			&amountApproved,
			&reimbursementAmount,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if escalationReason.Valid {
			a.EscalationReason = &escalationReason.String
		}
		if amountApproved.Valid {
			a.AmountApproved = &amountApproved.Float64
		}
		if reimbursementAmount.Valid {
			a.ReimbursementAmount = &reimbursementAmount.Float64
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var _ port.ActionRepository = (*ActionRepository)(nil)
