package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

// StepConfigRepository implements port.StepConfigRepository
type StepConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStepConfigRepository(db *sql.DB, logger *zap.Logger) port.StepConfigRepository {
	return &StepConfigRepository{
		db:     db,
		logger: logger,
	}
}

// ListAll returns every configuration row, active or not
func (r *StepConfigRepository) ListAll(ctx context.Context) ([]entity.StepConfig, error) {
	query := `
		SELECT id, workflow_type, step_name, approver_role, sequence_order, time_limit_hours, is_active
		FROM step_configs
		ORDER BY workflow_type, sequence_order, id
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list step configs", zap.Error(err))
		return nil, fmt.Errorf("failed to list step configs: %w", err)
	}
	defer rows.Close()

	var configs []entity.StepConfig
	for rows.Next() {
		var cfg entity.StepConfig
		var limit sql.NullInt64
		if err := rows.Scan(
			&cfg.ID,
			&cfg.WorkflowType,
			&cfg.StepName,
			&cfg.ApproverRole,
			&cfg.SequenceOrder,
			&limit,
			&cfg.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step config: %w", err)
		}
		if limit.Valid {
			hours := int(limit.Int64)
			cfg.TimeLimitHours = &hours
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// ReplaceAll deletes the stored set and inserts configs. Run it inside a
// transaction so readers never see a partial set.
func (r *StepConfigRepository) ReplaceAll(ctx context.Context, configs []entity.StepConfig) error {
	conn := sqlite.Conn(ctx, r.db)

	if _, err := conn.ExecContext(ctx, `DELETE FROM step_configs`); err != nil {
		return fmt.Errorf("failed to clear step configs: %w", err)
	}

	query := `
		INSERT INTO step_configs (workflow_type, step_name, approver_role, sequence_order, time_limit_hours, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, cfg := range configs {
		if _, err := conn.ExecContext(ctx, query,
			cfg.WorkflowType,
			cfg.StepName,
			cfg.ApproverRole,
			cfg.SequenceOrder,
			cfg.TimeLimitHours,
			cfg.IsActive,
		); err != nil {
			r.logger.Error("Failed to insert step config",
				zap.String("workflow_type", cfg.WorkflowType),
				zap.String("step_name", cfg.StepName),
				zap.Error(err))
			return fmt.Errorf("failed to insert step config: %w", err)
		}
	}

	r.logger.Info("Step configs replaced", zap.Int("count", len(configs)))
	return nil
}

var _ port.StepConfigRepository = (*StepConfigRepository)(nil)
