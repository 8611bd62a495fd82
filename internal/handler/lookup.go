package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/otp"
	"github.com/iliyamo/bus-ticketing/internal/queue"
	"github.com/iliyamo/bus-ticketing/internal/repository"
	queue_publisher "github.com/iliyamo/bus-ticketing/internal/service"
	"github.com/iliyamo/bus-ticketing/internal/ticket"
)

// LookupHandler lets a guest without an account retrieve their tickets
// by proving control of the contact phone or email on the booking. The
// challenge lives in Redis; delivery is someone else's job — the
// handler only publishes an event for the notification worker and
// never returns the code to the caller.
type LookupHandler struct {
	TicketRepo  *repository.TicketRepo
	BookingRepo *repository.BookingRepo
	TripRepo    *repository.TripRepo
	Store       *otp.Store
	Codec       *ticket.QRCodec
	Grace       time.Duration
}

// NewLookupHandler constructs a LookupHandler.
func NewLookupHandler(ticketRepo *repository.TicketRepo, bookingRepo *repository.BookingRepo, tripRepo *repository.TripRepo, store *otp.Store, codec *ticket.QRCodec, grace time.Duration) *LookupHandler {
	if ticketRepo == nil || bookingRepo == nil || tripRepo == nil || store == nil || codec == nil {
		panic("nil dependency passed to NewLookupHandler")
	}
	return &LookupHandler{
		TicketRepo:  ticketRepo,
		BookingRepo: bookingRepo,
		TripRepo:    tripRepo,
		Store:       store,
		Codec:       codec,
		Grace:       grace,
	}
}

type lookupRequest struct {
	TicketCode string `json:"ticket_code"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	OTP        string `json:"otp"`
}

// RequestOTP handles POST /v1/tickets/lookup/request-otp.  The reply
// is the same whether or not any ticket matches the contact — a
// lookup request must not double as an existence oracle.
func (h *LookupHandler) RequestOTP(c echo.Context) error {
	var body lookupRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	target, err := otp.NewTarget(body.Phone, body.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone or email is required"})
	}

	ctx := c.Request().Context()
	code, ttl, err := h.Store.Issue(ctx, target)
	if err != nil {
		if errors.Is(err, otp.ErrUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lookup temporarily unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue code"})
	}

	ev := queue.OTPRequestedEvent{
		TargetKind:  target.Kind,
		Target:      target.Value,
		Code:        code,
		ExpiresInS:  int(ttl / time.Second),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := queue_publisher.PublishOTPRequested(ctx, ev); err != nil {
		log.Printf("otp: publish for %s failed: %v", target.Value, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"expires_in": int(ttl / time.Second)})
}

// VerifyOTP handles POST /v1/tickets/lookup/verify-otp.  A consumed
// challenge returns either the single ticket named by ticket_code or
// every ticket attached to the contact.
func (h *LookupHandler) VerifyOTP(c echo.Context) error {
	var body lookupRequest
	if err := c.Bind(&body); err != nil || body.OTP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "otp is required"})
	}
	target, err := otp.NewTarget(body.Phone, body.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone or email is required"})
	}

	ctx := c.Request().Context()
	if err := h.Store.Verify(ctx, target, body.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrTooManyAttempts):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many attempts; request a new code"})
		case errors.Is(err, otp.ErrInvalid):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired code"})
		case errors.Is(err, otp.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lookup temporarily unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
		}
	}

	var tickets []model.Ticket
	if body.TicketCode != "" {
		if !ticket.ValidCode(body.TicketCode) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket code"})
		}
		t, err := h.TicketRepo.GetByCode(ctx, body.TicketCode)
		if err != nil {
			if errors.Is(err, repository.ErrTicketNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		// The verified contact must be the one on the booking; an OTP
		// for your own phone is not a skeleton key for other codes.
		booking, err := h.BookingRepo.GetByID(ctx, t.BookingID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if target.Value != booking.ContactPhone && target.Value != booking.ContactEmail {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "ticket does not belong to this contact"})
		}
		tickets = []model.Ticket{*t}
	} else {
		phone, email := "", ""
		if target.Kind == otp.KindPhone {
			phone = target.Value
		} else {
			email = target.Value
		}
		tickets, err = h.TicketRepo.ListByContact(ctx, phone, email)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	out := make([]ticketPayload, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		trip, err := h.TripRepo.GetByID(ctx, t.TripID)
		if err != nil {
			continue
		}
		passengers, _ := h.TicketRepo.PassengersByTicket(ctx, t.ID)
		out = append(out, renderTicket(t, trip.DepartureAt, h.Grace, h.Codec.Encode(t.Code), passengers))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}
