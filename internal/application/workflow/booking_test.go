package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

func bookingFixture(t *testing.T) (*fixture, *entity.Workflow) {
	t.Helper()
	f := newFixture(t)
	wf := f.approveUntil(t, f.initiate(t, 2000), entity.StepTravelDeskBooking)
	return f, wf
}

func TestBookingEdits_RequireBookingStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.initiate(t, 1000)

	_, err := f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "FLIGHT", Amount: 100})
	assert.True(t, errors.Is(err, domainwf.ErrInvalidState))
	_, err = f.engine.MarkBookingUploaded(ctx, wf.ID, "td-1", "")
	assert.True(t, errors.Is(err, domainwf.ErrInvalidState))
	_, err = f.engine.UpdateBookingDetails(ctx, wf.ID, "td-1", &entity.BookingDetails{}, "")
	assert.True(t, errors.Is(err, domainwf.ErrInvalidState))
	_, err = f.engine.RecordBookingAction(ctx, wf.ID, "td-1", entity.ActionAddBooking, "")
	assert.True(t, errors.Is(err, domainwf.ErrInvalidState))

	assert.Len(t, f.ledger(t, wf.ID), 1)
}

func TestBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	f, wf := bookingFixture(t)

	flight, err := f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{
		Type:         "flight",
		Amount:       640.5,
		Airline:      "KLM",
		FlightNumber: "KL1001",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, flight.ID)
	assert.Equal(t, entity.BookingTypeFlight, flight.Type)
	assert.Equal(t, entity.BookingStatusPending, flight.Status)

	hotel, err := f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "HOTEL", Amount: 300, HotelName: "Grand"})
	require.NoError(t, err)

	stored := f.stored(t, wf.ID)
	assert.InDelta(t, 940.5, stored.TotalBookingAmount, 0.001)
	assert.Equal(t, 2, stored.Bookings().Count())

	confirmed, err := f.engine.UpdateBookingStatus(ctx, wf.ID, "td-1", flight.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)

	_, err = f.engine.DeleteBooking(ctx, wf.ID, "td-1", hotel.ID)
	require.NoError(t, err)

	stats, err := f.engine.BookingStats(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBookings)
	assert.Equal(t, 1, stats.ConfirmedBookings)
	assert.InDelta(t, 640.5, stats.TotalAmount, 0.001)

	summary, err := f.engine.BookingSummary(ctx, wf.ID)
	require.NoError(t, err)
	assert.True(t, summary.Editable)
	assert.Equal(t, 1, summary.TotalBookings)

	ledger := f.ledger(t, wf.ID)
	comments := make([]string, 0, 4)
	for _, a := range ledger[len(ledger)-4:] {
		assert.Equal(t, entity.StepTravelDeskBooking, a.Step)
		assert.Equal(t, entity.RoleTravelDesk, a.ApproverRole)
		comments = append(comments, a.Comments)
	}
	assert.Equal(t, []string{
		"Added FLIGHT booking: KLM KL1001",
		"Added HOTEL booking: Grand",
		"Updated booking status to: CONFIRMED",
		"Deleted booking from workflow",
	}, comments)

	assert.Equal(t, entity.StepTravelDeskBooking, f.stored(t, wf.ID).CurrentStep, "edits never move the workflow")
}

func TestUpdateBooking_MovesBetweenCategories(t *testing.T) {
	ctx := context.Background()
	f, wf := bookingFixture(t)

	added, err := f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "OTHER", Amount: 120, Description: "Visa fee"})
	require.NoError(t, err)

	updated, err := f.engine.UpdateBooking(ctx, wf.ID, "td-1", added.ID, entity.Booking{
		Type:      " hotel ",
		Amount:    310,
		HotelName: "Grand",
		Location:  "Lisbon",
	})
	require.NoError(t, err)
	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, entity.BookingTypeHotel, updated.Type)
	assert.Equal(t, entity.BookingStatusPending, updated.Status)
	assert.True(t, added.CreatedAt.Equal(updated.CreatedAt))

	stored := f.stored(t, wf.ID)
	assert.Empty(t, stored.Bookings().Others)
	require.Len(t, stored.Bookings().Hotels, 1)
	assert.InDelta(t, 310, stored.TotalBookingAmount, 0.001)

	last := f.ledger(t, wf.ID)
	entry := last[len(last)-1]
	assert.Equal(t, entity.ActionUpdateBooking, entry.Action)
	assert.Equal(t, "Updated HOTEL booking: Grand Lisbon", entry.Comments)

	_, err = f.engine.UpdateBooking(ctx, wf.ID, "td-1", "missing", entity.Booking{Type: "HOTEL", Amount: 1})
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))
	_, err = f.engine.UpdateBooking(ctx, wf.ID, "td-1", added.ID, entity.Booking{Type: "TRAIN", Amount: 1})
	assert.True(t, errors.Is(err, domainwf.ErrValidation))
	assert.Len(t, f.ledger(t, wf.ID), len(last))
}

func TestBookingEdits_Errors(t *testing.T) {
	ctx := context.Background()
	f, wf := bookingFixture(t)
	before := len(f.ledger(t, wf.ID))

	_, err := f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "TRAIN", Amount: 10})
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	_, err = f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "HOTEL", Amount: -1})
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	_, err = f.engine.UpdateBookingStatus(ctx, wf.ID, "td-1", "missing", entity.BookingStatusConfirmed)
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))

	_, err = f.engine.DeleteBooking(ctx, wf.ID, "td-1", "missing")
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))

	_, err = f.engine.UpdateBookingDetails(ctx, wf.ID, "td-1", nil, "")
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	assert.Len(t, f.ledger(t, wf.ID), before)
}

func TestUpdateBookingDetails_ReplacesLedger(t *testing.T) {
	ctx := context.Background()
	f, wf := bookingFixture(t)
	_, err := f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "OTHER", Amount: 50, Description: "visa"})
	require.NoError(t, err)

	updated, err := f.engine.UpdateBookingDetails(ctx, wf.ID, "td-1", &entity.BookingDetails{
		Hotels:     []entity.Booking{{Amount: 400, HotelName: "Harbour"}},
		CarRentals: []entity.Booking{{Amount: 120, RentalCompany: "Hertz"}},
		Notes:      "rebooked",
	}, "")
	require.NoError(t, err)

	assert.InDelta(t, 520, updated.TotalBookingAmount, 0.001)
	assert.Equal(t, "rebooked", updated.Bookings().Notes)
	assert.Empty(t, updated.Bookings().Others)
	assert.Equal(t, entity.BookingTypeHotel, updated.Bookings().Hotels[0].Type)

	ledger := f.ledger(t, wf.ID)
	assert.Equal(t, "Booking details updated", ledger[len(ledger)-1].Comments)
}

func TestMarkBooking_MovesToCompliance(t *testing.T) {
	tests := []struct {
		name        string
		complete    bool
		wantAction  string
		wantComment string
		wantBooked  bool
	}{
		{"uploaded", false, entity.ActionUploadBooking, "Travel bookings uploaded", false},
		{"completed", true, entity.ActionCompleteBooking, "All travel bookings completed and confirmed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f, wf := bookingFixture(t)

			var (
				next *entity.Workflow
				err  error
			)
			if tt.complete {
				next, err = f.engine.MarkBookingCompleted(ctx, wf.ID, "td-1", "")
			} else {
				next, err = f.engine.MarkBookingUploaded(ctx, wf.ID, "td-1", "")
			}
			require.NoError(t, err)

			assert.Equal(t, entity.StepHRCompliance, next.CurrentStep)
			assert.Equal(t, entity.StepTravelDeskBooking, next.PreviousStep)
			assert.Equal(t, entity.RoleHR, next.CurrentApproverRole)

			ledger := f.ledger(t, wf.ID)
			last := ledger[len(ledger)-1]
			assert.Equal(t, tt.wantAction, last.Action)
			assert.Equal(t, tt.wantComment, last.Comments)
			assert.Equal(t, entity.StepTravelDeskBooking, last.Step)

			assert.Equal(t, tt.wantBooked, contains(f.requests.statuses, entity.RequestStatusBooked))

			_, err = f.engine.AddBooking(ctx, wf.ID, "td-1", entity.Booking{Type: "HOTEL", Amount: 1})
			assert.True(t, errors.Is(err, domainwf.ErrInvalidState), "bookings are read-only after the booking step")
		})
	}
}

func TestRecordBookingAction(t *testing.T) {
	ctx := context.Background()
	f, wf := bookingFixture(t)
	version := f.stored(t, wf.ID).Version

	_, err := f.engine.RecordBookingAction(ctx, wf.ID, "td-1", "APPROVE", "")
	assert.True(t, errors.Is(err, domainwf.ErrInvalidAction))

	a, err := f.engine.RecordBookingAction(ctx, wf.ID, "td-1", "upload_booking", "e-tickets attached")
	require.NoError(t, err)
	assert.Equal(t, entity.ActionUploadBooking, a.Action)
	assert.Equal(t, entity.StepTravelDeskBooking, a.Step)
	assert.Equal(t, version, f.stored(t, wf.ID).Version, "recording does not touch the workflow row")
}

func TestUploadBills(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, err := f.engine.Initiate(ctx, InitiateRequest{TravelRequestID: testRequestID, WorkflowType: entity.WorkflowTypePostTravel})
	require.NoError(t, err)

	_, err = f.engine.UploadBills(ctx, UploadBillsRequest{WorkflowID: post.ID, ActualCost: -5})
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	reviewed, err := f.engine.UploadBills(ctx, UploadBillsRequest{WorkflowID: post.ID, EmployeeID: testEmployee, ActualCost: 1234.5})
	require.NoError(t, err)
	assert.Equal(t, entity.StepTravelDeskBillReview, reviewed.CurrentStep)
	assert.Equal(t, entity.RoleTravelDesk, reviewed.CurrentApproverRole)
	assert.Equal(t, 1234.5, *reviewed.ActualCost)
	assert.Equal(t, []float64{1234.5}, f.requests.costs)

	ledger := f.ledger(t, post.ID)
	last := ledger[len(ledger)-1]
	assert.Equal(t, entity.ActionUploadBills, last.Action)
	assert.Equal(t, entity.RoleEmployee, last.ApproverRole)
	assert.Equal(t, entity.StepBillUpload, last.Step)
	assert.Equal(t, "Travel bills uploaded with actual cost: 1234.50", last.Comments)

	again, err := f.engine.UploadBills(ctx, UploadBillsRequest{WorkflowID: post.ID, EmployeeID: testEmployee, ActualCost: 1300})
	require.NoError(t, err)
	assert.Equal(t, entity.StepTravelDeskBillReview, again.CurrentStep)
	assert.Equal(t, 1300.0, *again.ActualCost)

	pre := f.initiate(t, 1000)
	_, err = f.engine.UploadBills(ctx, UploadBillsRequest{WorkflowID: pre.ID, ActualCost: 10})
	assert.True(t, errors.Is(err, domainwf.ErrInvalidState))
}

func TestUploadBills_MissingReviewStepIsConfigurationError(t *testing.T) {
	var configs []entity.StepConfig
	for _, c := range defaultSteps() {
		if c.StepName != entity.StepTravelDeskBillReview {
			configs = append(configs, c)
		}
	}
	f := newFixture(t, configs...)
	post, err := f.engine.Initiate(context.Background(), InitiateRequest{TravelRequestID: testRequestID, WorkflowType: entity.WorkflowTypePostTravel})
	require.NoError(t, err)

	_, err = f.engine.UploadBills(context.Background(), UploadBillsRequest{WorkflowID: post.ID, ActualCost: 10})
	assert.True(t, errors.Is(err, domainwf.ErrConfiguration))
	assert.Empty(t, f.requests.costs)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
