// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketStatusEvent is published whenever a ticket leaves the VALID
// state (boarding, cancellation, exchange). It carries enough context
// for downstream consumers to log or notify the passenger without
// querying the primary database.
type TicketStatusEvent struct {
    TicketID     uint64 `json:"ticket_id"`
    TicketCode   string `json:"ticket_code"`
    BookingCode  string `json:"booking_code"`
    Status       string `json:"status"`
    TripID       uint64 `json:"trip_id"`
    RouteFrom    string `json:"route_from"`
    RouteTo      string `json:"route_to"`
    DepartureAt  string `json:"departure_at"`
    ContactPhone string `json:"contact_phone,omitempty"`
    ContactEmail string `json:"contact_email,omitempty"`
    RefundAmount int64  `json:"refund_amount,omitempty"`
    OccurredAt   string `json:"occurred_at"`
}

// OTPRequestedEvent is published when a guest requests a lookup code.
// The notification worker that owns the SMS/email channel delivers the
// code; the API process never talks to those providers directly.
type OTPRequestedEvent struct {
    TargetKind  string `json:"target_kind"` // "phone" or "email"
    Target      string `json:"target"`
    Code        string `json:"code"`
    ExpiresInS  int    `json:"expires_in_s"`
    RequestedAt string `json:"requested_at"`
}
