package directory

import (
	"context"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Entry is one configured employee
type Entry struct {
	ManagerID   string `mapstructure:"manager_id" yaml:"manager_id"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
	Email       string `mapstructure:"email" yaml:"email"`
}

// Static serves employee records from configuration, for environments
// without a Lark tenant.
type Static struct {
	entries map[string]Entry
}

func NewStatic(entries map[string]Entry) *Static {
	copied := make(map[string]Entry, len(entries))
	for id, e := range entries {
		copied[id] = e
	}
	return &Static{entries: copied}
}

func (s *Static) FetchEmployee(ctx context.Context, employeeID string) (*entity.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.entries[employeeID]
	if !ok {
		return nil, nil
	}

	emp := &entity.Employee{
		EmployeeID:  employeeID,
		DisplayName: e.DisplayName,
		Email:       e.Email,
	}
	if e.ManagerID != "" {
		manager := e.ManagerID
		emp.ManagerID = &manager
	}
	return emp, nil
}

var _ port.Directory = (*Static)(nil)
