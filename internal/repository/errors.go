// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting SQL errors. ErrTicketConflict in particular is the signal
// that a compare-and-set lifecycle transition lost the race: exactly one
// of two concurrent boarding scans observes success, the other observes
// this error.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrTicketNotFound indicates that no ticket matched the given id or code.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrBookingNotFound indicates that no booking matched the given id or code.
var ErrBookingNotFound = errors.New("booking not found")

// ErrTripNotFound indicates that a trip was not located in the DB.
var ErrTripNotFound = errors.New("trip not found")

// ErrTicketConflict is returned when a lifecycle transition cannot be
// applied because the ticket is no longer in a state that permits it
// (already used, cancelled or changed). Handlers should translate this
// into an HTTP 409 response carrying the current ticket snapshot.
var ErrTicketConflict = errors.New("ticket state conflict")

// ErrTicketExists is returned when generating a ticket for a booking
// that already has one.
var ErrTicketExists = errors.New("ticket already issued for booking")

// ErrDuplicateTxn is returned when a payment callback delivers a
// provider transaction reference that has already been recorded. The
// settlement must not be applied a second time; callers acknowledge
// the callback as successful.
var ErrDuplicateTxn = errors.New("duplicate payment transaction")
