// Package ticket holds the pure parts of the ticket lifecycle: state
// guards, code generation and the QR payload codec. Persisted
// transitions live in the repository layer as compare-and-set updates;
// the guards here let handlers reject impossible transitions before
// touching the database and keep the rules in one testable place.
package ticket

import (
	"time"

	"github.com/iliyamo/bus-ticketing/internal/model"
)

// EffectiveStatus reports the status a ticket presents to callers.  A
// VALID, unused ticket whose trip departure (plus the boarding grace
// window) has passed reports as EXPIRED without a stored transition —
// writing EXPIRED to the row would race with an in-flight boarding
// scan, and the compare-and-set on VALID already arbitrates that.
func EffectiveStatus(t *model.Ticket, departureAt time.Time, grace time.Duration, now time.Time) string {
	if t.Status == model.TicketValid && !t.IsUsed && now.After(departureAt.Add(grace)) {
		return model.TicketExpired
	}
	return t.Status
}

// CanUse reports whether a boarding verification may be attempted.
// The departure check enforces the grace window; the status check
// rejects tickets that already left VALID.  The final word is the
// repository CAS — this guard only produces earlier, friendlier errors.
func CanUse(t *model.Ticket, departureAt time.Time, grace time.Duration, now time.Time) bool {
	if t.Status != model.TicketValid || t.IsUsed {
		return false
	}
	return !now.After(departureAt.Add(grace))
}

// CanCancel reports whether cancellation is permitted: only a VALID,
// unused ticket may be cancelled.  Used, cancelled and changed tickets
// are immutable history.
func CanCancel(t *model.Ticket) bool {
	return t.Status == model.TicketValid && !t.IsUsed
}

// CanChange applies the same guard as CanCancel: a ticket may be
// exchanged only while it is still VALID and unused.
func CanChange(t *model.Ticket) bool {
	return t.Status == model.TicketValid && !t.IsUsed
}
