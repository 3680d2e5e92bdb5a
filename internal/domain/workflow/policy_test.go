package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

func TestPolicy_Priority(t *testing.T) {
	p := DefaultPolicy()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trip := func(days int) *entity.TravelRequest {
		end := start.AddDate(0, 0, days)
		return &entity.TravelRequest{StartDate: &start, EndDate: &end}
	}
	cost := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		req  *entity.TravelRequest
		cost *float64
		want string
	}{
		{"expensive", trip(2), cost(6000), entity.PriorityHigh},
		{"threshold is exclusive", trip(2), cost(5000), entity.PriorityNormal},
		{"long trip", trip(15), cost(100), entity.PriorityHigh},
		{"fourteen days is normal", trip(14), nil, entity.PriorityNormal},
		{"no dates", &entity.TravelRequest{}, nil, entity.PriorityNormal},
		{"no request", nil, cost(10), entity.PriorityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Priority(tt.req, tt.cost))
		})
	}
}

func TestPolicy_DueDate(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	limited := entity.StepConfig{TimeLimitHours: hours(24)}
	assert.Equal(t, now.Add(24*time.Hour), p.DueDate(limited, now))
	assert.Equal(t, now.AddDate(0, 0, 3), p.DueDate(entity.StepConfig{}, now))
}

func TestRequestStatusFor(t *testing.T) {
	assert.Equal(t, entity.RequestStatusCompleted, RequestStatusFor(entity.StatusApproved))
	assert.Equal(t, entity.StatusCompleted, RequestStatusFor(entity.StatusCompleted))
	assert.Equal(t, entity.StatusRejected, RequestStatusFor(entity.StatusRejected))
}
