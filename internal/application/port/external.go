package port

import (
	"context"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/workflow"
)

// RequestTracker is the travel request service
type RequestTracker interface {
	FetchRequest(ctx context.Context, travelRequestID string) (*entity.TravelRequest, error)
	SetRequestStatus(ctx context.Context, travelRequestID, status string) error
	SetActualCost(ctx context.Context, travelRequestID string, amount float64) error
}

// Directory resolves employee records
type Directory interface {
	// FetchEmployee returns (nil, nil) when the employee is unknown.
	FetchEmployee(ctx context.Context, employeeID string) (*entity.Employee, error)
}

// Notifier delivers a notification to its recipient
type Notifier interface {
	Send(ctx context.Context, n *entity.Notification) error
}

// NotificationQueue decouples delivery from the transition that produced a notification
type NotificationQueue interface {
	Enqueue(ctx context.Context, n *entity.Notification) error
	// Dequeue blocks until a notification is available or ctx is done.
	Dequeue(ctx context.Context) (*entity.Notification, error)
	Close() error
}

// CatalogSource loads step configuration from its authoritative source
type CatalogSource interface {
	Load(ctx context.Context) ([]entity.StepConfig, error)
}

// RouteSource is implemented by catalog sources that also carry the
// branching table. Reloading such a source rebuilds the router.
type RouteSource interface {
	Routes() ([]workflow.Route, error)
}
