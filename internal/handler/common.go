package handler

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/ticket"
)

// verifierFrom extracts the staff identity recorded against a boarding
// scan. JWTAuth stores the token's name and subject claims in the
// context; the display name is preferred because it is what appears in
// audit output and conflict responses.
func verifierFrom(c echo.Context) string {
	if name, ok := c.Get("staff_name").(string); ok && name != "" {
		return name
	}
	if sub, ok := c.Get("staff_id").(string); ok && sub != "" {
		return sub
	}
	return "unknown"
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// ticketPayload is the JSON shape tickets take in every response. The
// status field carries the effective projection, so a VALID ticket
// whose trip has departed renders as EXPIRED without a stored
// transition.
type ticketPayload struct {
	ID         uint64            `json:"id"`
	Code       string            `json:"code"`
	BookingID  uint64            `json:"booking_id"`
	TripID     uint64            `json:"trip_id"`
	Status     string            `json:"status"`
	UsedAt     *time.Time        `json:"used_at,omitempty"`
	UsedBy     *string           `json:"used_by,omitempty"`
	Amount     int64             `json:"amount"`
	ChangedTo  *uint64           `json:"changed_to,omitempty"`
	QRCodeData string            `json:"qr_code_data,omitempty"`
	Passengers []model.Passenger `json:"passengers,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func renderTicket(t *model.Ticket, departureAt time.Time, grace time.Duration, qr string, passengers []model.Passenger) ticketPayload {
	return ticketPayload{
		ID:         t.ID,
		Code:       t.Code,
		BookingID:  t.BookingID,
		TripID:     t.TripID,
		Status:     ticket.EffectiveStatus(t, departureAt, grace, time.Now().UTC()),
		UsedAt:     t.UsedAt,
		UsedBy:     t.UsedBy,
		Amount:     t.Amount,
		ChangedTo:  t.ChangedTo,
		QRCodeData: qr,
		Passengers: passengers,
		CreatedAt:  t.CreatedAt,
	}
}
