package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/repository"
	"github.com/iliyamo/bus-ticketing/internal/ticket"
)

// VerifyHandler performs boarding verification: a staff member scans a
// QR payload at the door and the ticket is atomically marked USED.
// The conditional UPDATE in MarkUsedTx is the arbiter when two
// scanners race on the same ticket: exactly one wins, the other gets
// a conflict carrying the winner's used_at/used_by snapshot.
type VerifyHandler struct {
	TicketRepo  *repository.TicketRepo
	BookingRepo *repository.BookingRepo
	TripRepo    *repository.TripRepo
	PaymentRepo *repository.PaymentTxnRepo
	Codec       *ticket.QRCodec
	Grace       time.Duration
}

// NewVerifyHandler constructs a VerifyHandler.
func NewVerifyHandler(ticketRepo *repository.TicketRepo, bookingRepo *repository.BookingRepo, tripRepo *repository.TripRepo, paymentRepo *repository.PaymentTxnRepo, codec *ticket.QRCodec, grace time.Duration) *VerifyHandler {
	if ticketRepo == nil || bookingRepo == nil || tripRepo == nil || paymentRepo == nil || codec == nil {
		panic("nil dependency passed to NewVerifyHandler")
	}
	return &VerifyHandler{
		TicketRepo:  ticketRepo,
		BookingRepo: bookingRepo,
		TripRepo:    tripRepo,
		PaymentRepo: paymentRepo,
		Codec:       codec,
		Grace:       grace,
	}
}

// Verify handles POST /v1/trips/:id/verify.  The body carries the raw
// scanned payload and, for cash bookings, a confirm_payment flag that
// settles the booking in the same transaction as the boarding mark —
// the passenger pays the driver and both facts land atomically.
func (h *VerifyHandler) Verify(c echo.Context) error {
	tripID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	var body struct {
		QRCodeData     string `json:"qr_code_data"`
		ConfirmPayment bool   `json:"confirm_payment"`
	}
	if err := c.Bind(&body); err != nil || body.QRCodeData == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_code_data is required"})
	}

	code, err := h.Codec.Decode(body.QRCodeData)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid qr payload"})
	}

	ctx := c.Request().Context()
	trip, err := h.TripRepo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
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

	t, err := h.TicketRepo.GetByCodeTx(ctx, tx, code)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	// The scanner is bound to one trip; a ticket for another trip is a
	// passenger at the wrong door, not a forged ticket.
	if t.TripID != trip.ID {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "trip_mismatch",
			"message": "ticket belongs to a different trip",
		})
	}

	now := time.Now().UTC()
	booking, err := h.BookingRepo.GetByIDTx(ctx, tx, t.BookingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	// Cash settlement at the door happens before the boarding guard so
	// an unpaid cash booking is the error reported when the flag is
	// missing.
	if booking.PayStatus != model.PayStatusPaid {
		if booking.PayMethod != model.PayMethodCash {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not paid"})
		}
		if !body.ConfirmPayment {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":      "payment_required",
				"message":    "cash booking not settled; pass confirm_payment to collect at boarding",
				"amount_due": booking.TotalAmount,
			})
		}
		if err := h.BookingRepo.SetPaymentStatusTx(ctx, tx, booking.ID, model.PayStatusPaid, nil); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to settle cash booking"})
		}
		if err := h.PaymentRepo.RecordTx(ctx, tx, &repository.PaymentTxn{
			Provider:  "CASH",
			TxnRef:    t.Code,
			BookingID: booking.ID,
			Amount:    booking.TotalAmount,
			Kind:      "PAYMENT",
			Status:    "SETTLED",
		}); err != nil && !errors.Is(err, repository.ErrDuplicateTxn) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record cash settlement"})
		}
	}

	if !ticket.CanUse(t, trip.DepartureAt, h.Grace, now) {
		status := ticket.EffectiveStatus(t, trip.DepartureAt, h.Grace, now)
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "ticket_not_boardable",
			"status":  status,
			"used_at": t.UsedAt,
			"used_by": t.UsedBy,
		})
	}

	verifier := verifierFrom(c)
	if err := h.TicketRepo.MarkUsedTx(ctx, tx, t.ID, verifier, now); err != nil {
		if errors.Is(err, repository.ErrTicketConflict) {
			// Lost the race: reload outside the guard to report who won.
			if latest, lerr := h.TicketRepo.GetByCodeTx(ctx, tx, code); lerr == nil {
				return c.JSON(http.StatusConflict, echo.Map{
					"error":   "already_used",
					"status":  latest.Status,
					"used_at": latest.UsedAt,
					"used_by": latest.UsedBy,
				})
			}
			return c.JSON(http.StatusConflict, echo.Map{"error": "already_used"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark ticket used"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true

	t.Status = model.TicketUsed
	t.IsUsed = true
	t.UsedAt = &now
	t.UsedBy = &verifier

	passengers, err := h.TicketRepo.PassengersByTicket(ctx, t.ID)
	if err != nil {
		passengers = nil
	}

	publishTicketEvent(t, booking, trip, model.TicketUsed, 0)

	return c.JSON(http.StatusOK, echo.Map{
		"result":      "boarded",
		"ticket":      renderTicket(t, trip.DepartureAt, h.Grace, "", passengers),
		"verified_by": verifier,
	})
}
