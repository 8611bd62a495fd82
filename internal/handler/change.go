package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/payment"
	"github.com/iliyamo/bus-ticketing/internal/repository"
	"github.com/iliyamo/bus-ticketing/internal/ticket"
)

// changeHoldWindow is how long the seats on the target trip stay held
// while an exchange waits for its fare-difference payment. Matches the
// payment page expiry so a hold never outlives the payment it waits
// for.
const changeHoldWindow = 15 * time.Minute

// ChangeHandler exchanges a ticket for one on another trip. Seats on
// the target trip are held before the old ticket is touched: if
// anything aborts, the old ticket is still VALID and only the holds
// expire. When the new fare exceeds the old amount, the flow pauses on
// a PENDING delta booking and resumes once that booking is paid.
type ChangeHandler struct {
	TicketRepo   *repository.TicketRepo
	BookingRepo  *repository.BookingRepo
	TripRepo     *repository.TripRepo
	SeatRepo     *repository.TripSeatRepo
	SeatHoldRepo *repository.SeatHoldRepo
	Gateways     map[string]payment.Gateway
	BookingTZ    *time.Location
	Grace        time.Duration
}

// NewChangeHandler constructs a ChangeHandler.
func NewChangeHandler(ticketRepo *repository.TicketRepo, bookingRepo *repository.BookingRepo, tripRepo *repository.TripRepo, seatRepo *repository.TripSeatRepo, seatHoldRepo *repository.SeatHoldRepo, gateways map[string]payment.Gateway, tz *time.Location, grace time.Duration) *ChangeHandler {
	if ticketRepo == nil || bookingRepo == nil || tripRepo == nil || seatRepo == nil || seatHoldRepo == nil {
		panic("nil dependency passed to NewChangeHandler")
	}
	return &ChangeHandler{
		TicketRepo:   ticketRepo,
		BookingRepo:  bookingRepo,
		TripRepo:     tripRepo,
		SeatRepo:     seatRepo,
		SeatHoldRepo: seatHoldRepo,
		Gateways:     gateways,
		BookingTZ:    tz,
		Grace:        grace,
	}
}

// Change handles POST /v1/tickets/:id/change.  The body names the
// target trip and the requested seat labels, one per passenger.  When
// the fare difference is positive the first call answers 402 with a
// payment URL and a delta booking code; after that booking settles,
// the caller repeats the request with booking_code set and the swap
// completes on the seats already held under that code.
func (h *ChangeHandler) Change(c echo.Context) error {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var body struct {
		NewTripID   uint64   `json:"new_trip_id"`
		Seats       []string `json:"seats"`
		BookingCode string   `json:"booking_code"`
		Reason      string   `json:"reason"`
	}
	if err := c.Bind(&body); err != nil || body.NewTripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_trip_id is required"})
	}

	ctx := c.Request().Context()
	t, err := h.TicketRepo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !ticket.CanChange(t) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket_not_changeable", "status": t.Status})
	}
	if body.NewTripID == t.TripID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new trip must differ from current trip"})
	}

	newTrip, err := h.TripRepo.GetByID(ctx, body.NewTripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	oldTrip, err := h.TripRepo.GetByID(ctx, t.TripID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	booking, err := h.BookingRepo.GetByID(ctx, t.BookingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	passengers, err := h.TicketRepo.PassengersByTicket(ctx, t.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
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

	// Return expired holds on the target trip to inventory before
	// checking availability.
	if expired, errExp := h.SeatHoldRepo.ExpireHoldsTx(ctx, tx, newTrip.ID); errExp != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cleanup expired holds"})
	} else if len(expired) > 0 {
		if err := h.SeatRepo.BulkUpdateStatusTx(ctx, tx, newTrip.ID, expired, "FREE"); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cleanup expired holds"})
		}
	}

	delta := changeDelta(newTrip.Fare, len(passengers), t.Amount)

	// Resuming after the delta booking was paid: the seats are the
	// ones held under that booking's code, not the request body.
	if body.BookingCode != "" {
		return h.completePaid(c, ctx, tx, &committed, t, booking, oldTrip, newTrip, passengers, body.BookingCode)
	}

	if len(body.Seats) != len(passengers) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "one seat per passenger is required"})
	}
	seatIDs, unavailable, err := h.holdableSeats(ctx, tx, newTrip.ID, body.Seats)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check seat availability"})
	}
	if len(unavailable) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats_unavailable", "seats": unavailable})
	}

	if delta > 0 {
		return h.requirePayment(c, ctx, tx, &committed, booking, newTrip, seatIDs, delta)
	}

	// Equal or cheaper trip: the swap completes in this transaction.
	// The fare difference is not refunded — the passenger accepted the
	// cheaper trip at the old price.
	newTicket, err := h.swap(ctx, tx, t, booking, oldTrip, newTrip, passengers, seatIDs, body.Seats, t.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrTicketConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket_not_changeable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to exchange ticket"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true

	t.Status = model.TicketChanged
	t.ChangedTo = &newTicket.ID
	publishTicketEvent(t, booking, oldTrip, model.TicketChanged, 0)

	newPassengers, _ := h.TicketRepo.PassengersByTicket(ctx, newTicket.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"result":     "changed",
		"old_ticket": renderTicket(t, oldTrip.DepartureAt, h.Grace, "", nil),
		"new_ticket": renderTicket(newTicket, newTrip.DepartureAt, h.Grace, "", newPassengers),
		"amount_due": int64(0),
	})
}

// changeDelta is the fare difference the passenger owes to move onto
// the new trip: the new trip's per-seat fare times the passenger count,
// minus what the old ticket already paid. Negative means the new trip
// is cheaper; the difference is not refunded.
func changeDelta(newFare int64, passengerCount int, oldAmount int64) int64 {
	return newFare*int64(passengerCount) - oldAmount
}

// holdableSeats resolves the requested labels on the target trip and
// reports which of them cannot be taken.
func (h *ChangeHandler) holdableSeats(ctx context.Context, tx *sql.Tx, tripID uint64, labels []string) (seatIDs []uint64, unavailable []string, err error) {
	resolved, err := h.SeatRepo.ResolveSeatIDsTx(ctx, tx, tripID, labels)
	if err != nil {
		return nil, nil, err
	}
	seatIDs = make([]uint64, 0, len(labels))
	for _, label := range labels {
		id, ok := resolved[label]
		if !ok {
			unavailable = append(unavailable, label)
			continue
		}
		seatIDs = append(seatIDs, id)
	}
	if len(unavailable) > 0 {
		return nil, unavailable, nil
	}
	holdable, err := h.SeatRepo.FilterHoldableSeatsTx(ctx, tx, tripID, seatIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(holdable) != len(seatIDs) {
		allowed := make(map[uint64]struct{}, len(holdable))
		for _, id := range holdable {
			allowed[id] = struct{}{}
		}
		for i, id := range seatIDs {
			if _, ok := allowed[id]; !ok {
				unavailable = append(unavailable, labels[i])
			}
		}
		return nil, unavailable, nil
	}
	return seatIDs, nil, nil
}

// requirePayment holds the seats, opens the PENDING delta booking and
// answers 402 with the provider payment URL. The old ticket is not
// touched; if the payment never arrives the holds simply expire.
func (h *ChangeHandler) requirePayment(c echo.Context, ctx context.Context, tx *sql.Tx, committed *bool, booking *model.Booking, newTrip *model.Trip, seatIDs []uint64, delta int64) error {
	ref, err := ticket.NewBookingCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate booking code"})
	}
	expiresAt := time.Now().UTC().Add(changeHoldWindow)
	holds, err := repository.GenerateHoldRecords(ref, newTrip.ID, seatIDs, expiresAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create seat holds"})
	}
	if err := h.SeatRepo.BulkUpdateStatusTx(ctx, tx, newTrip.ID, seatIDs, "HELD"); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hold seats"})
	}
	if err := h.SeatHoldRepo.CreateMultipleTx(ctx, tx, holds); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create seat holds"})
	}

	deltaBooking := &model.Booking{
		Code:         ref,
		TripID:       newTrip.ID,
		TotalAmount:  delta,
		PayMethod:    booking.PayMethod,
		PayStatus:    model.PayStatusPending,
		ContactPhone: booking.ContactPhone,
		ContactEmail: booking.ContactEmail,
	}
	if err := h.BookingRepo.CreateTx(ctx, tx, deltaBooking); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create delta booking"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	*committed = true

	payURL := ""
	if gw, ok := h.Gateways[booking.PayMethod]; ok {
		gctx, cancel := context.WithTimeout(context.Background(), gatewayRefundTimeout)
		defer cancel()
		url, err := gw.BuildRequest(gctx, payment.Request{
			OrderID:   ref,
			Amount:    delta,
			OrderInfo: "Fare difference for exchange " + ref,
			ClientIP:  c.RealIP(),
		})
		if err != nil {
			log.Printf("change: payment url for %s via %s failed: %v", ref, gw.Name(), err)
		} else {
			payURL = url
		}
	}

	return c.JSON(http.StatusPaymentRequired, echo.Map{
		"requires_payment": true,
		"booking_code":     ref,
		"amount_due":       delta,
		"payment_url":      payURL,
		"holds_expire_at":  expiresAt,
	})
}

// completePaid finishes an exchange whose fare difference was settled
// out of band. The seats are the ones still held under the delta
// booking's code; expired holds mean the exchange restarts from seat
// selection.
func (h *ChangeHandler) completePaid(c echo.Context, ctx context.Context, tx *sql.Tx, committed *bool, t *model.Ticket, booking *model.Booking, oldTrip, newTrip *model.Trip, passengers []model.Passenger, bookingCode string) error {
	deltaBooking, err := h.BookingRepo.GetByCode(ctx, bookingCode)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if deltaBooking.TripID != newTrip.ID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking does not match new trip"})
	}
	if deltaBooking.PayStatus != model.PayStatusPaid {
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"requires_payment": true,
			"booking_code":     deltaBooking.Code,
			"amount_due":       deltaBooking.TotalAmount,
		})
	}

	holds, err := h.SeatHoldRepo.ActiveHoldsByRefAndTripTx(ctx, tx, deltaBooking.Code, newTrip.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(holds) != len(passengers) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "holds_expired", "message": "seat holds expired; restart the exchange"})
	}
	seatIDs := make([]uint64, len(holds))
	for i, hold := range holds {
		seatIDs[i] = hold.SeatID
	}
	labelByID, err := h.SeatRepo.LabelsByIDsTx(ctx, tx, seatIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	labels := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		labels[i] = labelByID[id]
	}

	newTicket, err := h.swap(ctx, tx, t, booking, oldTrip, newTrip, passengers, seatIDs, labels, t.Amount+deltaBooking.TotalAmount)
	if err != nil {
		if errors.Is(err, repository.ErrTicketConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket_not_changeable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to exchange ticket"})
	}
	if _, err := h.SeatHoldRepo.DeleteByRefAndTripTx(ctx, tx, deltaBooking.Code, newTrip.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release holds"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	*committed = true

	t.Status = model.TicketChanged
	t.ChangedTo = &newTicket.ID
	publishTicketEvent(t, booking, oldTrip, model.TicketChanged, 0)

	newPassengers, _ := h.TicketRepo.PassengersByTicket(ctx, newTicket.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"result":     "changed",
		"old_ticket": renderTicket(t, oldTrip.DepartureAt, h.Grace, "", nil),
		"new_ticket": renderTicket(newTicket, newTrip.DepartureAt, h.Grace, "", newPassengers),
		"amount_due": int64(0),
	})
}

// swap retires the old ticket and issues its successor inside the
// caller's transaction. The old ticket's CAS guard runs last-but-one
// so a concurrent boarding or cancellation aborts the whole exchange.
func (h *ChangeHandler) swap(ctx context.Context, tx *sql.Tx, t *model.Ticket, booking *model.Booking, oldTrip, newTrip *model.Trip, passengers []model.Passenger, seatIDs []uint64, labels []string, amount int64) (*model.Ticket, error) {
	code, err := ticket.NewCode(time.Now().In(h.BookingTZ))
	if err != nil {
		return nil, err
	}
	newTicket := &model.Ticket{
		Code:      code,
		BookingID: booking.ID,
		TripID:    newTrip.ID,
		Status:    model.TicketValid,
		Amount:    amount,
	}
	if err := h.TicketRepo.CreateTx(ctx, tx, newTicket); err != nil {
		return nil, err
	}
	carried := make([]model.Passenger, len(passengers))
	for i, p := range passengers {
		carried[i] = model.Passenger{FullName: p.FullName, Phone: p.Phone, SeatLabel: labels[i]}
	}
	if err := h.TicketRepo.CreatePassengersTx(ctx, tx, newTicket.ID, carried); err != nil {
		return nil, err
	}
	if err := h.TicketRepo.MarkChangedTx(ctx, tx, t.ID, newTicket.ID); err != nil {
		return nil, err
	}
	if err := h.SeatRepo.BulkUpdateStatusTx(ctx, tx, newTrip.ID, seatIDs, "RESERVED"); err != nil {
		return nil, err
	}
	oldLabels := make([]string, 0, len(passengers))
	for _, p := range passengers {
		if p.SeatLabel != "" {
			oldLabels = append(oldLabels, p.SeatLabel)
		}
	}
	if len(oldLabels) > 0 {
		if err := h.SeatRepo.ReleaseByLabelsTx(ctx, tx, oldTrip.ID, oldLabels); err != nil {
			return nil, err
		}
	}
	return newTicket, nil
}
