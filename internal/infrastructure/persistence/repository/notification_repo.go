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

const notificationColumns = `
	id, workflow_id, recipient_id, recipient_role, subject, message,
	notification_type, reference_id, reference_type, status, attempts,
	error_message, sent_at, created_at
`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now()
	}
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}

	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.WorkflowID,
		n.RecipientID,
		n.RecipientRole,
		n.Subject,
		n.Message,
		n.NotificationType,
		n.ReferenceID,
		n.ReferenceType,
		n.Status,
		n.Attempts,
		n.ErrorMessage,
		utcPtr(n.SentAt),
		n.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("workflow_id", n.WorkflowID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	rows, err := r.query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string, attempts int) error {
	query := `UPDATE notifications SET status = ?, attempts = ?, sent_at = ?, error_message = '' WHERE id = ?`

	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		entity.NotificationStatusSent, attempts, r.now().UTC(), id,
	); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, attempts int, errMsg string) error {
	query := `UPDATE notifications SET status = ?, attempts = ?, error_message = ? WHERE id = ?`

	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		entity.NotificationStatusFailed, attempts, errMsg, id,
	); err != nil {
		r.logger.Error("Failed to mark notification failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Notification, error) {
	return r.query(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE workflow_id = ? ORDER BY created_at, rowid`,
		workflowID)
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var sentAt sql.NullTime
		if err := rows.Scan(
			&n.ID,
			&n.WorkflowID,
			&n.RecipientID,
			&n.RecipientRole,
			&n.Subject,
			&n.Message,
			&n.NotificationType,
			&n.ReferenceID,
			&n.ReferenceType,
			&n.Status,
			&n.Attempts,
			&n.ErrorMessage,
			&sentAt,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
