package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

const workflowColumns = `
	workflow_id, travel_request_id, workflow_type, current_step, previous_step, next_step,
	current_approver_role, current_approver_id, status, priority,
	estimated_cost, actual_cost, is_overpriced, overpriced_reason,
	booking_details, total_booking_amount, due_date,
	created_at, updated_at, completed_at, version
`

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts wf at version 1
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	bookings, err := encodeBookings(wf.BookingDetails)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflows (` + workflowColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		wf.ID,
		wf.TravelRequestID,
		wf.WorkflowType,
		wf.CurrentStep,
		wf.PreviousStep,
		wf.NextStep,
		wf.CurrentApproverRole,
		wf.CurrentApproverID,
		wf.Status,
		wf.Priority,
		wf.EstimatedCost,
		wf.ActualCost,
		wf.IsOverpriced,
		wf.OverpricedReason,
		bookings,
		wf.TotalBookingAmount,
		utcPtr(wf.DueDate),
		wf.CreatedAt.UTC(),
		wf.UpdatedAt.UTC(),
		utcPtr(wf.CompletedAt),
		1,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return workflow.Duplicatef("workflow %s already exists for travel request %s", wf.WorkflowType, wf.TravelRequestID)
		}
		r.logger.Error("Failed to create workflow", zap.String("travel_request_id", wf.TravelRequestID), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	wf.Version = 1
	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	return r.getOne(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE workflow_id = ?`, id)
}

func (r *WorkflowRepository) GetByRequestAndType(ctx context.Context, travelRequestID, workflowType string) (*entity.Workflow, error) {
	return r.getOne(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE travel_request_id = ? AND workflow_type = ?`,
		travelRequestID, workflowType)
}

// ListByRequest returns the request's workflows in creation order
func (r *WorkflowRepository) ListByRequest(ctx context.Context, travelRequestID string) ([]*entity.Workflow, error) {
	return r.list(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE travel_request_id = ? ORDER BY created_at, rowid`,
		travelRequestID)
}

// Update writes wf when the stored version still matches and bumps it.
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.Workflow) error {
	bookings, err := encodeBookings(wf.BookingDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows SET
			current_step = ?, previous_step = ?, next_step = ?,
			current_approver_role = ?, current_approver_id = ?, status = ?, priority = ?,
			estimated_cost = ?, actual_cost = ?, is_overpriced = ?, overpriced_reason = ?,
			booking_details = ?, total_booking_amount = ?, due_date = ?,
			updated_at = ?, completed_at = ?, version = version + 1
		WHERE workflow_id = ? AND version = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		wf.CurrentStep,
		wf.PreviousStep,
		wf.NextStep,
		wf.CurrentApproverRole,
		wf.CurrentApproverID,
		wf.Status,
		wf.Priority,
		wf.EstimatedCost,
		wf.ActualCost,
		wf.IsOverpriced,
		wf.OverpricedReason,
		bookings,
		wf.TotalBookingAmount,
		utcPtr(wf.DueDate),
		wf.UpdatedAt.UTC(),
		utcPtr(wf.CompletedAt),
		wf.ID,
		wf.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.String("workflow_id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return workflow.ErrConcurrentModification
	}

	wf.Version++
	return nil
}

func (r *WorkflowRepository) ListByStatus(ctx context.Context, status string) ([]*entity.Workflow, error) {
	return r.list(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE status = ? ORDER BY created_at DESC, rowid DESC`,
		status)
}

func (r *WorkflowRepository) ListByStatusAndStep(ctx context.Context, status, step string) ([]*entity.Workflow, error) {
	return r.list(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE status = ? AND current_step = ? ORDER BY created_at DESC, rowid DESC`,
		status, step)
}

// ListPendingByRole matches the role case-insensitively, oldest due first.
func (r *WorkflowRepository) ListPendingByRole(ctx context.Context, role string) ([]*entity.Workflow, error) {
	return r.list(ctx,
		`SELECT `+workflowColumns+` FROM workflows
		WHERE status = ? AND UPPER(current_approver_role) = ?
		ORDER BY due_date IS NULL, due_date, created_at`,
		entity.StatusPending, strings.ToUpper(role))
}

func (r *WorkflowRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Workflow, error) {
	return r.list(ctx,
		`SELECT `+workflowColumns+` FROM workflows
		WHERE status = ? AND current_approver_id = ?
		ORDER BY due_date IS NULL, due_date, created_at`,
		entity.StatusPending, approverID)
}

func (r *WorkflowRepository) List(ctx context.Context, limit, offset int) ([]*entity.Workflow, error) {
	return r.list(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset)
}

func (r *WorkflowRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `SELECT status, COUNT(*) FROM workflows GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to count workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.Workflow, error) {
	wf, err := scanWorkflow(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

func (r *WorkflowRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Workflow, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*entity.Workflow, error) {
	var (
		wf            entity.Workflow
		approverID    sql.NullString
		estimatedCost sql.NullFloat64
		actualCost    sql.NullFloat64
		bookings      sql.NullString
		dueDate       sql.NullTime
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&wf.ID,
		&wf.TravelRequestID,
		&wf.WorkflowType,
		&wf.CurrentStep,
		&wf.PreviousStep,
		&wf.NextStep,
		&wf.CurrentApproverRole,
		&approverID,
		&wf.Status,
		&wf.Priority,
		&estimatedCost,
		&actualCost,
		&wf.IsOverpriced,
		&wf.OverpricedReason,
		&bookings,
		&wf.TotalBookingAmount,
		&dueDate,
		&wf.CreatedAt,
		&wf.UpdatedAt,
		&completedAt,
		&wf.Version,
	)
	if err != nil {
		return nil, err
	}

	if approverID.Valid {
		wf.CurrentApproverID = &approverID.String
	}
	if estimatedCost.Valid {
		wf.EstimatedCost = &estimatedCost.Float64
	}
	if actualCost.Valid {
		wf.ActualCost = &actualCost.Float64
	}
	if dueDate.Valid {
		wf.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		wf.CompletedAt = &completedAt.Time
	}
	if bookings.Valid && bookings.String != "" {
		var details entity.BookingDetails
		if err := json.Unmarshal([]byte(bookings.String), &details); err != nil {
			return nil, fmt.Errorf("failed to decode booking details of %s: %w", wf.ID, err)
		}
		wf.BookingDetails = &details
	}
	return &wf, nil
}

func encodeBookings(details *entity.BookingDetails) (interface{}, error) {
	if details == nil {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode booking details: %w", err)
	}
	return string(data), nil
}

var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
