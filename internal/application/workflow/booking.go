package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/tracing"
)

const (
	defaultUploadedComment = "Travel bookings uploaded"
	defaultCompleteComment = "All travel bookings completed and confirmed"
	defaultDetailsComment  = "Booking details updated"
)

var bookingActions = map[string]bool{
	entity.ActionUploadBooking:        true,
	entity.ActionCompleteBooking:      true,
	entity.ActionUpdateBookingDetails: true,
	entity.ActionAddBooking:           true,
	entity.ActionUpdateBooking:        true,
	entity.ActionUpdateBookingStatus:  true,
	entity.ActionDeleteBooking:        true,
}

func (e *engineImpl) MarkBookingUploaded(ctx context.Context, workflowID, actorID, comments string) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.MarkBookingUploaded", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	return e.finishBookingStep(ctx, workflowID, actorID, entity.ActionUploadBooking, orDefault(comments, defaultUploadedComment), false)
}

func (e *engineImpl) MarkBookingCompleted(ctx context.Context, workflowID, actorID, comments string) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.MarkBookingCompleted", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	return e.finishBookingStep(ctx, workflowID, actorID, entity.ActionCompleteBooking, orDefault(comments, defaultCompleteComment), true)
}

// finishBookingStep moves a workflow off TRAVEL_DESK_BOOKING the way an
// approval would.
func (e *engineImpl) finishBookingStep(ctx context.Context, workflowID, actorID, action, comments string, booked bool) (*entity.Workflow, error) {
	return e.mutate(ctx, workflowID, func(ctx context.Context, wf *entity.Workflow, ob *outbox) error {
		if err := requireStep(wf, entity.StepTravelDeskBooking); err != nil {
			return err
		}
		if err := e.record(ctx, wf, &entity.Action{
			ApproverRole: entity.RoleTravelDesk,
			ApproverID:   actorID,
			Action:       action,
			Comments:     comments,
		}); err != nil {
			return err
		}

		steps, err := e.catalog.StepsFor(wf.WorkflowType)
		if err != nil {
			return err
		}
		if booked {
			ob.setRequestStatus(wf.TravelRequestID, entity.RequestStatusBooked)
		}
		return e.advance(ctx, wf, steps, ob)
	})
}

func (e *engineImpl) UpdateBookingDetails(ctx context.Context, workflowID, actorID string, details *entity.BookingDetails, comments string) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.UpdateBookingDetails", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	if details == nil {
		return nil, domainwf.Validationf("booking details are required")
	}

	return e.editBookings(ctx, workflowID, actorID, entity.ActionUpdateBookingDetails, func(wf *entity.Workflow) (string, error) {
		if err := wf.Bookings().Replace(details, e.now()); err != nil {
			return "", err
		}
		return orDefault(comments, defaultDetailsComment), nil
	})
}

func (e *engineImpl) AddBooking(ctx context.Context, workflowID, actorID string, booking entity.Booking) (b *entity.Booking, err error) {
	ctx, span := tracing.Start(ctx, "workflow.AddBooking", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	booking.Type = strings.ToUpper(strings.TrimSpace(booking.Type))
	var stored entity.Booking

	_, err = e.editBookings(ctx, workflowID, actorID, entity.ActionAddBooking, func(wf *entity.Workflow) (string, error) {
		added, err := wf.Bookings().Add(booking, e.now())
		if err != nil {
			return "", err
		}
		stored = added
		return fmt.Sprintf("Added %s booking: %s", added.Type, describeBooking(added)), nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (e *engineImpl) UpdateBooking(ctx context.Context, workflowID, actorID, bookingID string, booking entity.Booking) (b *entity.Booking, err error) {
	ctx, span := tracing.Start(ctx, "workflow.UpdateBooking",
		attribute.String("workflow.id", workflowID),
		attribute.String("booking.id", bookingID),
	)
	defer func() { tracing.End(span, err) }()

	booking.Type = strings.ToUpper(strings.TrimSpace(booking.Type))
	var updated entity.Booking

	_, err = e.editBookings(ctx, workflowID, actorID, entity.ActionUpdateBooking, func(wf *entity.Workflow) (string, error) {
		b, err := wf.Bookings().Update(bookingID, booking, e.now())
		if err != nil {
			return "", err
		}
		updated = b
		return fmt.Sprintf("Updated %s booking: %s", b.Type, describeBooking(b)), nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (e *engineImpl) UpdateBookingStatus(ctx context.Context, workflowID, actorID, bookingID, status string) (b *entity.Booking, err error) {
	ctx, span := tracing.Start(ctx, "workflow.UpdateBookingStatus",
		attribute.String("workflow.id", workflowID),
		attribute.String("booking.id", bookingID),
	)
	defer func() { tracing.End(span, err) }()

	status = strings.ToUpper(strings.TrimSpace(status))
	var updated entity.Booking

	_, err = e.editBookings(ctx, workflowID, actorID, entity.ActionUpdateBookingStatus, func(wf *entity.Workflow) (string, error) {
		b, err := wf.Bookings().SetStatus(bookingID, status, e.now())
		if err != nil {
			return "", err
		}
		updated = b
		return fmt.Sprintf("Updated booking status to: %s", status), nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (e *engineImpl) DeleteBooking(ctx context.Context, workflowID, actorID, bookingID string) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.DeleteBooking",
		attribute.String("workflow.id", workflowID),
		attribute.String("booking.id", bookingID),
	)
	defer func() { tracing.End(span, err) }()

	return e.editBookings(ctx, workflowID, actorID, entity.ActionDeleteBooking, func(wf *entity.Workflow) (string, error) {
		if _, err := wf.Bookings().Remove(bookingID); err != nil {
			return "", err
		}
		return "Deleted booking from workflow", nil
	})
}

// editBookings applies edit to the sub-ledger of a workflow parked on the
// booking step and records one action carrying the returned comment.
func (e *engineImpl) editBookings(ctx context.Context, workflowID, actorID, action string, edit func(wf *entity.Workflow) (string, error)) (*entity.Workflow, error) {
	return e.mutate(ctx, workflowID, func(ctx context.Context, wf *entity.Workflow, _ *outbox) error {
		if err := requireStep(wf, entity.StepTravelDeskBooking); err != nil {
			return err
		}
		if err := transition(ctx, wf, domainwf.TriggerAmend); err != nil {
			return err
		}

		comments, err := edit(wf)
		if err != nil {
			return bookingError(err)
		}
		wf.TotalBookingAmount = wf.Bookings().Total()

		return e.record(ctx, wf, &entity.Action{
			ApproverRole: entity.RoleTravelDesk,
			ApproverID:   actorID,
			Action:       action,
			Comments:     comments,
		})
	})
}

func (e *engineImpl) UploadBills(ctx context.Context, req UploadBillsRequest) (wf *entity.Workflow, err error) {
	ctx, span := tracing.Start(ctx, "workflow.UploadBills", attribute.String("workflow.id", req.WorkflowID))
	defer func() { tracing.End(span, err) }()

	if req.ActualCost < 0 {
		return nil, domainwf.Validationf("actual cost cannot be negative")
	}

	wf, err = e.mutate(ctx, req.WorkflowID, func(ctx context.Context, wf *entity.Workflow, ob *outbox) error {
		if wf.WorkflowType != entity.WorkflowTypePostTravel {
			return domainwf.InvalidStatef("bills can only be uploaded to a POST_TRAVEL workflow, %s is %s", wf.ID, wf.WorkflowType)
		}
		if err := requirePending(wf); err != nil {
			return err
		}
		if wf.CurrentStep != entity.StepBillUpload && wf.CurrentStep != entity.StepTravelDeskBillReview {
			return domainwf.InvalidStatef("workflow %s is at step %s, bills are accepted at %s or %s",
				wf.ID, wf.CurrentStep, entity.StepBillUpload, entity.StepTravelDeskBillReview)
		}

		comments := fmt.Sprintf("Travel bills uploaded with actual cost: %.2f", req.ActualCost)
		if req.DocumentCount > 0 {
			comments = fmt.Sprintf("%s (%d documents)", comments, req.DocumentCount)
		}
		if req.Comments != "" {
			comments = comments + ". " + req.Comments
		}
		if err := e.record(ctx, wf, &entity.Action{
			ApproverRole:        entity.RoleEmployee,
			ApproverID:          req.EmployeeID,
			Action:              entity.ActionUploadBills,
			Comments:            comments,
			ReimbursementAmount: cloneFloat(&req.ActualCost),
		}); err != nil {
			return err
		}

		cost := req.ActualCost
		wf.ActualCost = &cost
		ob.setActualCost(wf.TravelRequestID, cost)

		steps, err := e.catalog.StepsFor(wf.WorkflowType)
		if err != nil {
			return err
		}
		review, ok := steps.Find(entity.StepTravelDeskBillReview)
		if !ok {
			return domainwf.Configurationf("%s is not configured for %s", entity.StepTravelDeskBillReview, wf.WorkflowType)
		}

		if wf.CurrentStep == entity.StepTravelDeskBillReview {
			// A re-upload restarts the review clock.
			if err := transition(ctx, wf, domainwf.TriggerAmend); err != nil {
				return err
			}
			due := e.policy.DueDate(review, e.now())
			wf.DueDate = &due
			return nil
		}
		return e.moveTo(ctx, wf, steps, review, ob)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Travel bills uploaded", "workflow_id", wf.ID, "actual_cost", req.ActualCost)
	return wf, nil
}

func (e *engineImpl) RecordBookingAction(ctx context.Context, workflowID, actorID, action, comments string) (a *entity.Action, err error) {
	ctx, span := tracing.Start(ctx, "workflow.RecordBookingAction", attribute.String("workflow.id", workflowID))
	defer func() { tracing.End(span, err) }()

	action = strings.ToUpper(strings.TrimSpace(action))
	if !bookingActions[action] {
		return nil, domainwf.InvalidActionf("%q is not a booking action", action)
	}
	if strings.TrimSpace(workflowID) == "" {
		return nil, domainwf.Validationf("workflow id is required")
	}

	err = e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		wf, err := e.load(ctx, workflowID)
		if err != nil {
			return err
		}
		if err := requireStep(wf, entity.StepTravelDeskBooking); err != nil {
			return err
		}
		a = &entity.Action{
			ApproverRole: entity.RoleTravelDesk,
			ApproverID:   actorID,
			Action:       action,
			Comments:     comments,
		}
		return e.record(ctx, wf, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (e *engineImpl) Bookings(ctx context.Context, workflowID string) ([]entity.Booking, error) {
	wf, err := e.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return wf.Bookings().All(), nil
}

func (e *engineImpl) BookingSummary(ctx context.Context, workflowID string) (*BookingSummary, error) {
	wf, err := e.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	details := wf.Bookings()
	return &BookingSummary{
		WorkflowID:         wf.ID,
		TravelRequestID:    wf.TravelRequestID,
		CurrentStep:        wf.CurrentStep,
		Status:             wf.Status,
		Editable:           wf.IsPending() && wf.CurrentStep == entity.StepTravelDeskBooking,
		TotalBookings:      details.Count(),
		TotalBookingAmount: details.Total(),
		Details:            details,
	}, nil
}

func (e *engineImpl) BookingStats(ctx context.Context, workflowID string) (*entity.BookingStats, error) {
	wf, err := e.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	stats := wf.Bookings().Stats()
	return &stats, nil
}

func bookingError(err error) error {
	switch {
	case errors.Is(err, entity.ErrBookingNotFound):
		return domainwf.NotFoundf("%v", err)
	case errors.Is(err, entity.ErrInvalidBooking):
		return domainwf.Validationf("%v", err)
	default:
		return err
	}
}

func describeBooking(b entity.Booking) string {
	var parts []string
	switch b.Type {
	case entity.BookingTypeFlight:
		parts = []string{b.Airline, b.FlightNumber}
	case entity.BookingTypeHotel:
		parts = []string{b.HotelName, b.Location}
	case entity.BookingTypeCarRental:
		parts = []string{b.RentalCompany, b.CarType}
	default:
		parts = []string{b.Description}
	}

	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return orDefault(b.Reference, b.ID)
	}
	return strings.Join(kept, " ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
