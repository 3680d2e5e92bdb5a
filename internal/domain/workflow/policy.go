package workflow

import (
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Policy holds the scheduling thresholds used when a workflow is created or advanced
type Policy struct {
	HighCostThreshold float64
	LongTripDays      int
	DefaultDueWindow  time.Duration
}

// DefaultPolicy: HIGH above 5000 or beyond 14 days, three-day due window.
func DefaultPolicy() Policy {
	return Policy{
		HighCostThreshold: 5000,
		LongTripDays:      14,
		DefaultDueWindow:  72 * time.Hour,
	}
}

// Priority computes the initial priority of a workflow
func (p Policy) Priority(req *entity.TravelRequest, estimatedCost *float64) string {
	if estimatedCost != nil && *estimatedCost > p.HighCostThreshold {
		return entity.PriorityHigh
	}
	if req != nil && req.TripDays() > p.LongTripDays {
		return entity.PriorityHigh
	}
	return entity.PriorityNormal
}

// DueDate is now plus the step's time limit, or the default window.
func (p Policy) DueDate(step entity.StepConfig, now time.Time) time.Time {
	if step.TimeLimitHours != nil {
		return now.Add(time.Duration(*step.TimeLimitHours) * time.Hour)
	}
	return now.Add(p.DefaultDueWindow)
}

// ValidPriority reports whether p is a known priority
func ValidPriority(p string) bool {
	return p == entity.PriorityNormal || p == entity.PriorityHigh
}

// RequestStatusFor maps a completion status to the status pushed to the request tracker.
func RequestStatusFor(status string) string {
	if status == entity.StatusApproved {
		return entity.RequestStatusCompleted
	}
	return status
}
