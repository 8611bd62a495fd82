package model

import "time"

// Trip describes a scheduled bus departure between two points on a
// route.  Tickets and bookings always reference exactly one trip.
// The fare is expressed in the smallest currency unit (VND has no
// sub-units, so fare == whole dong).
//
// Fields:
//  ID           – primary key identifier.
//  RouteFrom    – origin city or station.
//  RouteTo      – destination city or station.
//  DepartureAt  – scheduled departure timestamp (UTC).
//  Fare         – fare per seat in the smallest currency unit.
//  VehiclePlate – licence plate of the assigned vehicle.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Trip struct {
	ID           uint64    // trips.id
	RouteFrom    string    // trips.route_from
	RouteTo      string    // trips.route_to
	DepartureAt  time.Time // trips.departure_at
	Fare         int64     // trips.fare
	VehiclePlate string    // trips.vehicle_plate
	CreatedAt    time.Time // trips.created_at
	UpdatedAt    time.Time // trips.updated_at
}

// TripSeat tracks the availability of a single seat on a trip.  Each
// combination of trip and seat label is unique.  Status moves between
// FREE, HELD and RESERVED as holds and tickets come and go.
type TripSeat struct {
	ID        uint64    // trip_seats.id
	TripID    uint64    // trip_seats.trip_id
	SeatLabel string    // trip_seats.seat_label
	Status    string    // trip_seats.status (FREE, HELD, RESERVED)
	Version   uint32    // trip_seats.version, reserved for optimistic locking
	CreatedAt time.Time // trip_seats.created_at
	UpdatedAt time.Time // trip_seats.updated_at
}
