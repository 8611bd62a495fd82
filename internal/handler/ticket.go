package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/queue"
	"github.com/iliyamo/bus-ticketing/internal/repository"
	queue_publisher "github.com/iliyamo/bus-ticketing/internal/service"
	"github.com/iliyamo/bus-ticketing/internal/ticket"
)

// TicketHandler groups the repositories and collaborators needed to
// issue tickets and serve ticket state.  Issue runs inside a
// transaction so the ticket row and its passenger rows appear
// atomically; reads are plain repository calls with the effective
// status projected at render time.
type TicketHandler struct {
	TicketRepo  *repository.TicketRepo
	BookingRepo *repository.BookingRepo
	TripRepo    *repository.TripRepo
	Codec       *ticket.QRCodec
	BookingTZ   *time.Location
	Grace       time.Duration
}

// NewTicketHandler constructs a TicketHandler.  All dependencies must
// be non-nil.
func NewTicketHandler(ticketRepo *repository.TicketRepo, bookingRepo *repository.BookingRepo, tripRepo *repository.TripRepo, codec *ticket.QRCodec, tz *time.Location, grace time.Duration) *TicketHandler {
	if ticketRepo == nil || bookingRepo == nil || tripRepo == nil || codec == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{
		TicketRepo:  ticketRepo,
		BookingRepo: bookingRepo,
		TripRepo:    tripRepo,
		Codec:       codec,
		BookingTZ:   tz,
		Grace:       grace,
	}
}

// Generate handles POST /v1/tickets/generate.  It issues the ticket
// for a paid (or cash) booking, copying the booking's passenger list
// onto the ticket.  A booking carries at most one ticket; a second
// call returns 409 with the existing ticket so retries are harmless.
func (h *TicketHandler) Generate(c echo.Context) error {
	var body struct {
		BookingID uint64 `json:"booking_id"`
	}
	if err := c.Bind(&body); err != nil || body.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	}
	ctx := c.Request().Context()

	booking, err := h.BookingRepo.GetByID(ctx, body.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// Online methods must be settled before a ticket exists; cash
	// bookings are issued pending and settled at boarding.
	if booking.PayStatus != model.PayStatusPaid && booking.PayMethod != model.PayMethodCash {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not paid"})
	}

	trip, err := h.TripRepo.GetByID(ctx, booking.TripID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if existing, err := h.TicketRepo.GetByBookingID(ctx, booking.ID); err == nil {
		passengers, _ := h.TicketRepo.PassengersByTicket(ctx, existing.ID)
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "ticket already issued for booking",
			"ticket": renderTicket(existing, trip.DepartureAt, h.Grace, h.Codec.Encode(existing.Code), passengers),
		})
	} else if !errors.Is(err, repository.ErrTicketNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	code, err := ticket.NewCode(time.Now().In(h.BookingTZ))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate ticket code"})
	}

	tx, err := h.TicketRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	passengers, err := h.BookingRepo.PassengersByBookingTx(ctx, tx, booking.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	t := &model.Ticket{
		Code:      code,
		BookingID: booking.ID,
		TripID:    booking.TripID,
		Status:    model.TicketValid,
		Amount:    booking.TotalAmount,
	}
	if err := h.TicketRepo.CreateTx(ctx, tx, t); err != nil {
		if errors.Is(err, repository.ErrTicketExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already issued for booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create ticket"})
	}
	if err := h.TicketRepo.CreatePassengersTx(ctx, tx, t.ID, passengers); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create ticket passengers"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true

	publishTicketEvent(t, booking, trip, model.TicketValid, 0)

	return c.JSON(http.StatusCreated, echo.Map{
		"ticket": renderTicket(t, trip.DepartureAt, h.Grace, h.Codec.Encode(t.Code), passengers),
	})
}

// Get handles GET /v1/tickets/:id.
func (h *TicketHandler) Get(c echo.Context) error {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	ctx := c.Request().Context()
	t, err := h.TicketRepo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	trip, err := h.TripRepo.GetByID(ctx, t.TripID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	passengers, err := h.TicketRepo.PassengersByTicket(ctx, t.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket": renderTicket(t, trip.DepartureAt, h.Grace, h.Codec.Encode(t.Code), passengers),
		"trip":   trip,
	})
}

// GetByBooking handles GET /v1/tickets/booking/:bookingId.
func (h *TicketHandler) GetByBooking(c echo.Context) error {
	bookingID, ok := pathID(c, "bookingId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	t, err := h.TicketRepo.GetByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no ticket for booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	trip, err := h.TripRepo.GetByID(ctx, t.TripID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	passengers, err := h.TicketRepo.PassengersByTicket(ctx, t.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket": renderTicket(t, trip.DepartureAt, h.Grace, h.Codec.Encode(t.Code), passengers),
	})
}

// Download handles GET /v1/tickets/:id/download.  The PDF artifact is
// produced by an external collaborator that fills in pdf_path; until
// then the ticket exists but has nothing to download.
func (h *TicketHandler) Download(c echo.Context) error {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	t, err := h.TicketRepo.GetByID(c.Request().Context(), ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if t.PDFPath == nil || *t.PDFPath == "" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket document not generated yet"})
	}
	return c.Redirect(http.StatusFound, *t.PDFPath)
}

// publishTicketEvent emits a TicketStatusEvent after commit.  Publish
// failures are logged and otherwise ignored; the primary state already
// changed and the consumer catches up from the broker when it returns.
func publishTicketEvent(t *model.Ticket, booking *model.Booking, trip *model.Trip, status string, refundAmount int64) {
	ev := queue.TicketStatusEvent{
		TicketID:     t.ID,
		TicketCode:   t.Code,
		BookingCode:  booking.Code,
		Status:       status,
		TripID:       trip.ID,
		RouteFrom:    trip.RouteFrom,
		RouteTo:      trip.RouteTo,
		DepartureAt:  trip.DepartureAt.UTC().Format(time.RFC3339),
		ContactPhone: booking.ContactPhone,
		ContactEmail: booking.ContactEmail,
		RefundAmount: refundAmount,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queue_publisher.PublishTicketStatus(ctx, ev); err != nil {
		log.Printf("ticket-events: publish failed for %s: %v", t.Code, err)
	}
}
