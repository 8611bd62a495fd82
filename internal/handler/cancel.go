package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/payment"
	"github.com/iliyamo/bus-ticketing/internal/refund"
	"github.com/iliyamo/bus-ticketing/internal/repository"
	"github.com/iliyamo/bus-ticketing/internal/ticket"
)

// CancelHandler cancels tickets and initiates refunds. The two steps
// are deliberately decoupled: the cancellation commits first, then the
// gateway refund is attempted with its own timeout. A provider outage
// leaves the ticket cancelled and the booking REFUND_PENDING for the
// out-of-band retry job — it never resurrects the ticket.
type CancelHandler struct {
	TicketRepo  *repository.TicketRepo
	BookingRepo *repository.BookingRepo
	TripRepo    *repository.TripRepo
	SeatRepo    *repository.TripSeatRepo
	PaymentRepo *repository.PaymentTxnRepo
	Gateways    map[string]payment.Gateway
	BookingTZ   *time.Location
	Grace       time.Duration
}

// NewCancelHandler constructs a CancelHandler. Gateways maps the
// booking payment_method value to the provider adapter; CASH has no
// entry because cash refunds are handled at the counter.
func NewCancelHandler(ticketRepo *repository.TicketRepo, bookingRepo *repository.BookingRepo, tripRepo *repository.TripRepo, seatRepo *repository.TripSeatRepo, paymentRepo *repository.PaymentTxnRepo, gateways map[string]payment.Gateway, tz *time.Location, grace time.Duration) *CancelHandler {
	if ticketRepo == nil || bookingRepo == nil || tripRepo == nil || seatRepo == nil || paymentRepo == nil {
		panic("nil dependency passed to NewCancelHandler")
	}
	return &CancelHandler{
		TicketRepo:  ticketRepo,
		BookingRepo: bookingRepo,
		TripRepo:    tripRepo,
		SeatRepo:    seatRepo,
		PaymentRepo: paymentRepo,
		Gateways:    gateways,
		BookingTZ:   tz,
		Grace:       grace,
	}
}

// Cancel handles POST /v1/tickets/:id/cancel. The response always
// carries the full refund breakdown, including the zero-refund case —
// the caller learns what the policy decided even when nothing is owed.
func (h *CancelHandler) Cancel(c echo.Context) error {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)

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
	booking, err := h.BookingRepo.GetByID(ctx, t.BookingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := time.Now().In(h.BookingTZ)
	if !ticket.CanCancel(t) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "ticket_not_cancellable",
			"status": ticket.EffectiveStatus(t, trip.DepartureAt, h.Grace, now.UTC()),
		})
	}

	decision := refund.Calculate(t.Amount, trip.DepartureAt.In(h.BookingTZ), now)

	refundDue := decision.Amount > 0 &&
		booking.PayStatus == model.PayStatusPaid &&
		booking.PayMethod != model.PayMethodCash

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

	if err := h.TicketRepo.MarkCancelledTx(ctx, tx, t.ID); err != nil {
		if errors.Is(err, repository.ErrTicketConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket_not_cancellable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel ticket"})
	}

	// Free the seats the ticket occupied so they return to inventory.
	passengers, err := h.TicketRepo.PassengersByTicketTx(ctx, tx, t.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	labels := make([]string, 0, len(passengers))
	for _, p := range passengers {
		if p.SeatLabel != "" {
			labels = append(labels, p.SeatLabel)
		}
	}
	if len(labels) > 0 {
		if err := h.SeatRepo.ReleaseByLabelsTx(ctx, tx, t.TripID, labels); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
		}
	}

	if refundDue {
		if err := h.BookingRepo.SetPaymentStatusTx(ctx, tx, booking.ID, model.PayStatusRefundPending, nil); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update booking"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true

	refundStatus := "NONE"
	if refundDue {
		refundStatus = h.initiateRefund(booking, t, decision, body.Reason)
	}

	t.Status = model.TicketCancelled
	publishTicketEvent(t, booking, trip, model.TicketCancelled, decision.Amount)

	return c.JSON(http.StatusOK, echo.Map{
		"result": "cancelled",
		"ticket": renderTicket(t, trip.DepartureAt, h.Grace, "", passengers),
		"refund": echo.Map{
			"original_amount": decision.OriginalAmount,
			"percentage":      decision.Percentage,
			"amount":          decision.Amount,
			"policy":          decision.Rule,
			"status":          refundStatus,
		},
	})
}

// initiateRefund calls the provider after the cancellation committed.
// Returns the refund status string recorded on the booking.
func (h *CancelHandler) initiateRefund(booking *model.Booking, t *model.Ticket, decision refund.Decision, reason string) string {
	gw, ok := h.Gateways[booking.PayMethod]
	if !ok {
		log.Printf("refund: no gateway for method %s (booking %s)", booking.PayMethod, booking.Code)
		return model.PayStatusRefundPending
	}
	txnRef := ""
	if booking.PaymentRef != nil {
		txnRef = *booking.PaymentRef
	}

	ctx, cancel := context.WithTimeout(context.Background(), gatewayRefundTimeout)
	defer cancel()
	status, err := gw.Refund(ctx, payment.RefundRequest{
		OrderID: booking.Code,
		TxnRef:  txnRef,
		Amount:  decision.Amount,
		Reason:  reason,
	})
	if err != nil || status != payment.RefundAccepted {
		log.Printf("refund: initiation failed for booking %s via %s: %v", booking.Code, gw.Name(), err)
		return model.PayStatusRefundPending
	}

	if err := h.BookingRepo.SetPaymentStatus(ctx, booking.ID, model.PayStatusRefundProcessing); err != nil {
		log.Printf("refund: booking %s accepted by %s but status update failed: %v", booking.Code, gw.Name(), err)
	}
	if err := h.PaymentRepo.Record(ctx, &repository.PaymentTxn{
		Provider:  gw.Name(),
		TxnRef:    txnRef + "-RF",
		BookingID: booking.ID,
		Amount:    decision.Amount,
		Kind:      "REFUND",
		Status:    "PROCESSING",
	}); err != nil && !errors.Is(err, repository.ErrDuplicateTxn) {
		log.Printf("refund: booking %s refund record failed: %v", booking.Code, err)
	}
	return model.PayStatusRefundProcessing
}

// gatewayRefundTimeout bounds refund initiation independently of the
// incoming request context, which may already be near its deadline.
const gatewayRefundTimeout = 10 * time.Second
