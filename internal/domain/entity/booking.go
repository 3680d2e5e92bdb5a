package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Booking types
const (
	BookingTypeFlight    = "FLIGHT"
	BookingTypeHotel     = "HOTEL"
	BookingTypeCarRental = "CAR_RENTAL"
	BookingTypeOther     = "OTHER"
)

// Booking statuses
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrInvalidBooking  = errors.New("invalid booking")
)

var bookingTypes = []string{BookingTypeFlight, BookingTypeHotel, BookingTypeCarRental, BookingTypeOther}

var bookingStatuses = map[string]bool{
	BookingStatusPending:   true,
	BookingStatusConfirmed: true,
	BookingStatusCancelled: true,
}

// Booking is one travel booking entered by the travel desk. Only the fields
// of its own category are populated.
type Booking struct {
	ID        string  `json:"booking_id"`
	Type      string  `json:"booking_type"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"booking_reference,omitempty"`
	Status    string  `json:"status"`

	Airline          string `json:"airline,omitempty"`
	FlightNumber     string `json:"flight_number,omitempty"`
	DepartureAirport string `json:"departure_airport,omitempty"`
	ArrivalAirport   string `json:"arrival_airport,omitempty"`
	DepartureDate    string `json:"departure_date,omitempty"`
	ArrivalDate      string `json:"arrival_date,omitempty"`

	HotelName    string `json:"hotel_name,omitempty"`
	Location     string `json:"location,omitempty"`
	CheckInDate  string `json:"check_in_date,omitempty"`
	CheckOutDate string `json:"check_out_date,omitempty"`
	Nights       int    `json:"number_of_nights,omitempty"`

	RentalCompany  string `json:"rental_company,omitempty"`
	CarType        string `json:"car_type,omitempty"`
	PickupDate     string `json:"pickup_date,omitempty"`
	DropoffDate    string `json:"dropoff_date,omitempty"`
	PickupLocation string `json:"pickup_location,omitempty"`

	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookingDetails is the booking sub-ledger owned by one workflow. All
// mutations go through its methods so TotalAmount stays the sum of amounts.
type BookingDetails struct {
	Flights     []Booking `json:"flight_bookings,omitempty"`
	Hotels      []Booking `json:"hotel_bookings,omitempty"`
	CarRentals  []Booking `json:"car_rentals,omitempty"`
	Others      []Booking `json:"other_bookings,omitempty"`
	Notes       string    `json:"booking_notes,omitempty"`
	TotalAmount float64   `json:"total_booking_amount"`
}

// BookingStats is an aggregate view of a sub-ledger
type BookingStats struct {
	TotalBookings     int            `json:"total_bookings"`
	TotalAmount       float64        `json:"total_booking_amount"`
	BookingsByType    map[string]int `json:"bookings_by_type"`
	BookingsByStatus  map[string]int `json:"bookings_by_status"`
	PendingBookings   int            `json:"pending_bookings"`
	ConfirmedBookings int            `json:"confirmed_bookings"`
	CancelledBookings int            `json:"cancelled_bookings"`
}

func validateBooking(b *Booking) error {
	if b.list(nil) == nil {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidBooking, b.Type)
	}
	if b.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidBooking)
	}
	if b.Status == "" {
		b.Status = BookingStatusPending
	}
	if !bookingStatuses[b.Status] {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, b.Status)
	}
	return nil
}

// list returns the category slice for b's type. With a nil receiver for d it
// only reports whether the type is known.
func (b *Booking) list(d *BookingDetails) *[]Booking {
	var zero BookingDetails
	if d == nil {
		d = &zero
	}
	switch b.Type {
	case BookingTypeFlight:
		return &d.Flights
	case BookingTypeHotel:
		return &d.Hotels
	case BookingTypeCarRental:
		return &d.CarRentals
	case BookingTypeOther:
		return &d.Others
	}
	return nil
}

func (d *BookingDetails) lists() []*[]Booking {
	return []*[]Booking{&d.Flights, &d.Hotels, &d.CarRentals, &d.Others}
}

func (d *BookingDetails) recompute() {
	var total float64
	for _, l := range d.lists() {
		for _, b := range *l {
			total += b.Amount
		}
	}
	d.TotalAmount = total
}

func (d *BookingDetails) locate(id string) (*[]Booking, int) {
	for _, l := range d.lists() {
		for i := range *l {
			if (*l)[i].ID == id {
				return l, i
			}
		}
	}
	return nil, -1
}

// Add appends a booking to its category and returns the stored copy.
func (d *BookingDetails) Add(b Booking, now time.Time) (Booking, error) {
	if err := validateBooking(&b); err != nil {
		return Booking{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	} else if l, _ := d.locate(b.ID); l != nil {
		return Booking{}, fmt.Errorf("%w: duplicate booking id %s", ErrInvalidBooking, b.ID)
	}
	b.CreatedAt, b.UpdatedAt = now, now
	l := b.list(d)
	*l = append(*l, b)
	d.recompute()
	return b, nil
}

// Update replaces the booking with the given id. A type change moves it
// to the new category.
func (d *BookingDetails) Update(id string, b Booking, now time.Time) (Booking, error) {
	l, i := d.locate(id)
	if l == nil {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	if err := validateBooking(&b); err != nil {
		return Booking{}, err
	}
	b.ID = id
	b.CreatedAt = (*l)[i].CreatedAt
	b.UpdatedAt = now

	target := b.list(d)
	if target == l {
		(*l)[i] = b
	} else {
		*l = append((*l)[:i], (*l)[i+1:]...)
		*target = append(*target, b)
	}
	d.recompute()
	return b, nil
}

// SetStatus changes a booking's status
func (d *BookingDetails) SetStatus(id, status string, now time.Time) (Booking, error) {
	if !bookingStatuses[status] {
		return Booking{}, fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, status)
	}
	l, i := d.locate(id)
	if l == nil {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	(*l)[i].Status = status
	(*l)[i].UpdatedAt = now
	return (*l)[i], nil
}

// Remove deletes a booking and returns it
func (d *BookingDetails) Remove(id string) (Booking, error) {
	l, i := d.locate(id)
	if l == nil {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	removed := (*l)[i]
	*l = append((*l)[:i], (*l)[i+1:]...)
	d.recompute()
	return removed, nil
}

// Replace swaps in a full set of bookings, assigning ids and defaults to
// entries that lack them. d is left unchanged on error.
func (d *BookingDetails) Replace(with *BookingDetails, now time.Time) error {
	next := BookingDetails{}
	if with != nil {
		next.Notes = with.Notes
		for i, l := range with.lists() {
			for _, b := range *l {
				if b.Type == "" {
					b.Type = bookingTypes[i]
				}
				if _, err := next.Add(b, now); err != nil {
					return err
				}
			}
		}
	}
	*d = next
	return nil
}

// Find returns the booking with the given id
func (d *BookingDetails) Find(id string) (Booking, bool) {
	l, i := d.locate(id)
	if l == nil {
		return Booking{}, false
	}
	return (*l)[i], true
}

// All returns every booking, flights first, then hotels, cars and others.
func (d *BookingDetails) All() []Booking {
	all := make([]Booking, 0, d.Count())
	for _, l := range d.lists() {
		all = append(all, *l...)
	}
	return all
}

func (d *BookingDetails) Count() int {
	n := 0
	for _, l := range d.lists() {
		n += len(*l)
	}
	return n
}

func (d *BookingDetails) Total() float64 {
	return d.TotalAmount
}

func (d *BookingDetails) Stats() BookingStats {
	stats := BookingStats{
		TotalAmount:      d.TotalAmount,
		BookingsByType:   make(map[string]int),
		BookingsByStatus: make(map[string]int),
	}
	for i, l := range d.lists() {
		if len(*l) > 0 {
			stats.BookingsByType[bookingTypes[i]] = len(*l)
		}
		for _, b := range *l {
			stats.TotalBookings++
			stats.BookingsByStatus[b.Status]++
			switch b.Status {
			case BookingStatusPending:
				stats.PendingBookings++
			case BookingStatusConfirmed:
				stats.ConfirmedBookings++
			case BookingStatusCancelled:
				stats.CancelledBookings++
			}
		}
	}
	return stats
}

func (d *BookingDetails) Clone() *BookingDetails {
	c := &BookingDetails{Notes: d.Notes, TotalAmount: d.TotalAmount}
	src, dst := d.lists(), c.lists()
	for i := range src {
		if *src[i] != nil {
			*dst[i] = append([]Booking(nil), *src[i]...)
		}
	}
	return c
}
