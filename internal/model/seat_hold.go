package model

import "time"

// SeatHold represents a temporary hold on a trip seat.  The exchange
// workflow acquires holds on the replacement trip before the old
// ticket is touched so that concurrent flows cannot grab the same
// seat; holds expire automatically at their expires_at timestamp and
// are released explicitly when a flow aborts.
//
// Fields:
//  ID         – primary key identifier.
//  BookingRef – booking code the hold belongs to (empty for ad hoc holds).
//  TripID     – trip for which the seat is held.
//  SeatID     – trip_seats row being held.
//  HoldToken  – unique token returned to the client for reference.
//  ExpiresAt  – when the hold expires.
//  CreatedAt  – when the hold was created.
type SeatHold struct {
	ID         uint64    // seat_holds.id
	BookingRef string    // seat_holds.booking_ref
	TripID     uint64    // seat_holds.trip_id
	SeatID     uint64    // seat_holds.seat_id
	HoldToken  string    // seat_holds.hold_token
	ExpiresAt  time.Time // seat_holds.expires_at
	CreatedAt  time.Time // seat_holds.created_at
}
