package model

import "time"

// Payment method values accepted on bookings.  Gateway-settled methods
// (VNPAY, MOMO, ZALOPAY) go through the payment adapters; CASH is
// settled by the operator at boarding time.
const (
	PayMethodVNPay   = "VNPAY"
	PayMethodMoMo    = "MOMO"
	PayMethodZaloPay = "ZALOPAY"
	PayMethodCash    = "CASH"
)

// Payment status values for a booking.  PROCESSING and the REFUND_*
// states are deliberately distinct from terminal success/failure so
// that a gateway timeout never leaves a booking ambiguous.
const (
	PayStatusPending          = "PENDING"
	PayStatusProcessing       = "PROCESSING"
	PayStatusPaid             = "PAID"
	PayStatusRefundPending    = "REFUND_PENDING"
	PayStatusRefundProcessing = "REFUND_PROCESSING"
	PayStatusRefunded         = "REFUNDED"
)

// Booking is the commercial transaction a ticket is issued against.
// It records the total amount, the trip, the chosen payment method and
// the current payment status.  Guest bookings are identified by the
// contact phone and/or email rather than a user account.
//
// Fields:
//  ID           – primary key identifier.
//  Code         – public booking reference (e.g. BK-xxxxxxxx).
//  TripID       – trip being booked.
//  TotalAmount  – total price in the smallest currency unit.
//  PayMethod    – one of the PayMethod* constants.
//  PayStatus    – one of the PayStatus* constants.
//  PaymentRef   – provider transaction reference once settled.
//  ContactPhone – phone number of the purchaser.
//  ContactEmail – email address of the purchaser.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Booking struct {
	ID           uint64    // bookings.id
	Code         string    // bookings.code
	TripID       uint64    // bookings.trip_id
	TotalAmount  int64     // bookings.total_amount
	PayMethod    string    // bookings.payment_method
	PayStatus    string    // bookings.payment_status
	PaymentRef   *string   // bookings.payment_ref (nullable)
	ContactPhone string    // bookings.contact_phone
	ContactEmail string    // bookings.contact_email
	CreatedAt    time.Time // bookings.created_at
	UpdatedAt    time.Time // bookings.updated_at
}

// Passenger is one traveller listed on a booking or ticket.  The same
// shape backs both booking_passengers and ticket_passengers rows.
type Passenger struct {
	ID        uint64 `json:"id"`         // *_passengers.id
	FullName  string `json:"full_name"`  // *_passengers.full_name
	Phone     string `json:"phone"`      // *_passengers.phone
	SeatLabel string `json:"seat_label"` // *_passengers.seat_label
}
