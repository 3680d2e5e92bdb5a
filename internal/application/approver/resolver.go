// Package approver decides who must act on a workflow step.
package approver

import (
	"context"
	"strings"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Logger is a minimal logging interface
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Outcome tags how an approver identity was obtained
type Outcome string

const (
	// OutcomeRoleOnly: the step is claimed by any holder of its role.
	OutcomeRoleOnly     Outcome = "role_only"
	OutcomeManagerFound Outcome = "manager_found"
	OutcomeNoManager    Outcome = "no_manager"
	// OutcomeDirectoryMiss: the directory has no record of the employee.
	OutcomeDirectoryMiss Outcome = "directory_miss"
	OutcomeLookupFailed  Outcome = "lookup_failed"
)

// Resolution is the full result of resolving a step's approver
type Resolution struct {
	ApproverID *string
	Outcome    Outcome
	Employee   *entity.Employee
	Err        error
}

// UsedFallback reports whether the system fallback identity was assigned
func (r Resolution) UsedFallback() bool {
	switch r.Outcome {
	case OutcomeNoManager, OutcomeDirectoryMiss, OutcomeLookupFailed:
		return true
	}
	return false
}

// Resolver maps a step and the originating request to an approver identity
type Resolver struct {
	directory  port.Directory
	fallbackID string
	logger     Logger
}

// NewResolver creates a resolver. An empty fallbackID selects the
// built-in system fallback identity.
func NewResolver(directory port.Directory, fallbackID string, logger Logger) *Resolver {
	if fallbackID == "" {
		fallbackID = entity.SystemFallbackApproverID
	}
	return &Resolver{directory: directory, fallbackID: fallbackID, logger: logger}
}

// FallbackID returns the identity assigned when no manager can be resolved
func (r *Resolver) FallbackID() string {
	return r.fallbackID
}

// Resolve returns the approver for step. Manager steps always receive an
// identity; every other role resolves to nil.
func (r *Resolver) Resolve(ctx context.Context, step entity.StepConfig, req *entity.TravelRequest) Resolution {
	if !strings.EqualFold(step.ApproverRole, entity.RoleManager) {
		return Resolution{Outcome: OutcomeRoleOnly}
	}

	employeeID := ""
	if req != nil {
		employeeID = req.EmployeeID
	}

	res := r.lookupManager(ctx, employeeID)
	if res.ApproverID == nil {
		fallback := r.fallbackID
		res.ApproverID = &fallback
	}

	fields := []interface{}{
		"step", step.StepName,
		"employee_id", employeeID,
		"approver_id", *res.ApproverID,
		"outcome", string(res.Outcome),
	}
	switch res.Outcome {
	case OutcomeManagerFound:
		r.logger.Info("Manager approver assigned", fields...)
	case OutcomeLookupFailed:
		r.logger.Error("Manager lookup failed, using fallback approver", append(fields, "error", res.Err)...)
	default:
		r.logger.Warn("No manager on record, using fallback approver", fields...)
	}
	return res
}

func (r *Resolver) lookupManager(ctx context.Context, employeeID string) Resolution {
	if employeeID == "" || r.directory == nil {
		return Resolution{Outcome: OutcomeDirectoryMiss}
	}

	emp, err := r.directory.FetchEmployee(ctx, employeeID)
	if err != nil {
		return Resolution{Outcome: OutcomeLookupFailed, Err: err}
	}
	if emp == nil {
		return Resolution{Outcome: OutcomeDirectoryMiss}
	}
	if emp.ManagerID == nil || *emp.ManagerID == "" {
		return Resolution{Outcome: OutcomeNoManager, Employee: emp}
	}

	manager := *emp.ManagerID
	return Resolution{ApproverID: &manager, Outcome: OutcomeManagerFound, Employee: emp}
}

// Employee fetches the employee record for display purposes. Failures
// degrade to a record carrying only the id.
func (r *Resolver) Employee(ctx context.Context, employeeID string) *entity.Employee {
	empty := &entity.Employee{EmployeeID: employeeID}
	if r.directory == nil || employeeID == "" {
		return empty
	}
	emp, err := r.directory.FetchEmployee(ctx, employeeID)
	if err != nil {
		r.logger.Warn("Failed to fetch employee", "employee_id", employeeID, "error", err)
		return empty
	}
	if emp == nil {
		return empty
	}
	return emp
}
