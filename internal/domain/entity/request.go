package entity

import "time"

// TravelRequest is the snapshot returned by the request tracking service
type TravelRequest struct {
	ID            string     `json:"travelRequestId"`
	EmployeeID    string     `json:"employeeId"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	EstimatedCost *float64   `json:"estimatedCost,omitempty"`
	Purpose       string     `json:"purpose,omitempty"`
	Status        string     `json:"status,omitempty"`
}

// TripDays returns the whole days between start and end date, or 0 when
// either date is missing.
func (r *TravelRequest) TripDays() int {
	if r.StartDate == nil || r.EndDate == nil {
		return 0
	}
	start := r.StartDate.Truncate(24 * time.Hour)
	end := r.EndDate.Truncate(24 * time.Hour)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

// Employee is a directory record
type Employee struct {
	EmployeeID  string  `json:"employee_id"`
	ManagerID   *string `json:"manager_id,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Email       string  `json:"email,omitempty"`
}
