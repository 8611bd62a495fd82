package model

import "time"

// Ticket statuses.  A ticket transitions exactly once out of VALID
// into USED, CANCELLED or CHANGED.  EXPIRED is never stored: it is a
// read-time projection of a VALID ticket whose trip already departed
// without the ticket being used (see EffectiveStatus in the ticket
// package).  Storing it would race with in-flight boarding scans.
const (
	TicketValid     = "VALID"
	TicketUsed      = "USED"
	TicketCancelled = "CANCELLED"
	TicketChanged   = "CHANGED"
	TicketExpired   = "EXPIRED"
)

// Ticket is the redeemable unit bound to a booking, trip and seat(s).
// Invariants: IsUsed implies Status == USED; a CANCELLED or CHANGED
// ticket never accepts a boarding verification again.  All lifecycle
// mutations go through TicketRepo's compare-and-set transitions.
//
// Fields:
//  ID        – primary key identifier.
//  Code      – human-readable unique code (TKT-YYYYMMDD-XXXXXXXX).
//  BookingID – originating booking.
//  TripID    – trip the ticket is valid for.
//  Status    – one of the Ticket* status constants.
//  IsUsed    – true once the ticket has been scanned for boarding.
//  UsedAt    – boarding timestamp, nil until used.
//  UsedBy    – identity of the verifier who scanned the ticket.
//  Amount    – ticket price in the smallest currency unit.
//  ChangedTo – successor ticket ID when this ticket was exchanged.
//  PDFPath   – location of the generated PDF artifact, nil until built.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Ticket struct {
	ID        uint64     // tickets.id
	Code      string     // tickets.code
	BookingID uint64     // tickets.booking_id
	TripID    uint64     // tickets.trip_id
	Status    string     // tickets.status
	IsUsed    bool       // tickets.is_used
	UsedAt    *time.Time // tickets.used_at (nullable)
	UsedBy    *string    // tickets.used_by (nullable)
	Amount    int64      // tickets.amount
	ChangedTo *uint64    // tickets.changed_to (nullable)
	PDFPath   *string    // tickets.pdf_path (nullable)
	CreatedAt time.Time  // tickets.created_at
	UpdatedAt time.Time  // tickets.updated_at
}
