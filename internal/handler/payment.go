package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/model"
	"github.com/iliyamo/bus-ticketing/internal/payment"
	"github.com/iliyamo/bus-ticketing/internal/repository"
)

// PaymentHandler terminates the provider callback endpoints. Each
// provider retries until it sees its own acknowledgement shape, so the
// handlers answer in that shape even on failure — a 500 here means a
// retry storm. Settlement itself is idempotent: the unique
// (provider, txn_ref) insert arbitrates duplicate deliveries and a
// duplicate acks success without touching the booking again.
type PaymentHandler struct {
	BookingRepo *repository.BookingRepo
	PaymentRepo *repository.PaymentTxnRepo
	Gateways    map[string]payment.Gateway
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(bookingRepo *repository.BookingRepo, paymentRepo *repository.PaymentTxnRepo, gateways map[string]payment.Gateway) *PaymentHandler {
	if bookingRepo == nil || paymentRepo == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{BookingRepo: bookingRepo, PaymentRepo: paymentRepo, Gateways: gateways}
}

// settle applies a verified successful callback to its booking.
// Returns errAlreadySettled when this provider transaction was applied
// by an earlier delivery.
var errAlreadySettled = errors.New("transaction already settled")

func (h *PaymentHandler) settle(c echo.Context, provider string, cb payment.Callback) error {
	ctx := c.Request().Context()
	booking, err := h.BookingRepo.GetByCode(ctx, cb.OrderID)
	if err != nil {
		return err
	}
	if booking.TotalAmount != cb.Amount {
		return errors.New("amount mismatch")
	}

	tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.PaymentRepo.RecordTx(ctx, tx, &repository.PaymentTxn{
		Provider:  provider,
		TxnRef:    cb.TxnRef,
		BookingID: booking.ID,
		Amount:    cb.Amount,
		Kind:      "PAYMENT",
		Status:    "SETTLED",
	}); err != nil {
		if errors.Is(err, repository.ErrDuplicateTxn) {
			return errAlreadySettled
		}
		return err
	}
	if err := h.BookingRepo.SetPaymentStatusTx(ctx, tx, booking.ID, model.PayStatusPaid, &cb.TxnRef); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// VNPayIPN handles GET /v1/payments/vnpay/ipn. VNPay delivers the
// result as query parameters and expects a JSON body with its own
// response-code vocabulary: "00" confirm, "02" already confirmed,
// "97" bad signature.
func (h *PaymentHandler) VNPayIPN(c echo.Context) error {
	gw := h.Gateways[model.PayMethodVNPay]
	params := map[string]string{}
	for k, vs := range c.QueryParams() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	cb, err := gw.VerifyCallback(params)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"RspCode": "97", "Message": "Invalid signature"})
	}
	if !cb.Success {
		// A failed payment is a valid notification; acknowledge it so
		// the provider stops retrying, but settle nothing.
		log.Printf("vnpay: payment failed for order %s", cb.OrderID)
		return c.JSON(http.StatusOK, echo.Map{"RspCode": "00", "Message": "Confirm Success"})
	}
	switch err := h.settle(c, "VNPAY", cb); {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"RspCode": "00", "Message": "Confirm Success"})
	case errors.Is(err, errAlreadySettled):
		return c.JSON(http.StatusOK, echo.Map{"RspCode": "02", "Message": "Order already confirmed"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusOK, echo.Map{"RspCode": "01", "Message": "Order not found"})
	default:
		log.Printf("vnpay: settlement failed for order %s: %v", cb.OrderID, err)
		return c.JSON(http.StatusOK, echo.Map{"RspCode": "99", "Message": "Unknown error"})
	}
}

// MoMoIPN handles POST /v1/payments/momo/ipn. MoMo posts JSON and
// treats 204 No Content as the acknowledgement; any other status is
// retried.
func (h *PaymentHandler) MoMoIPN(c echo.Context) error {
	gw := h.Gateways[model.PayMethodMoMo]
	params, err := flattenJSONBody(c)
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	cb, err := gw.VerifyCallback(params)
	if err != nil {
		log.Printf("momo: rejected callback: %v", err)
		return c.NoContent(http.StatusNoContent)
	}
	if cb.Success {
		if err := h.settle(c, "MOMO", cb); err != nil && !errors.Is(err, errAlreadySettled) {
			log.Printf("momo: settlement failed for order %s: %v", cb.OrderID, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// ZaloPayCallback handles POST /v1/payments/zalopay/callback. The body
// carries the raw data string and its MAC; the response is ZaloPay's
// return_code convention where 1 acknowledges, a negative code reports
// a bad MAC, and 0 asks for a retry.
func (h *PaymentHandler) ZaloPayCallback(c echo.Context) error {
	gw := h.Gateways[model.PayMethodZaloPay]
	var body struct {
		Data string `json:"data"`
		Mac  string `json:"mac"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusOK, echo.Map{"return_code": -1, "return_message": "bad request"})
	}
	cb, err := gw.VerifyCallback(map[string]string{"data": body.Data, "mac": body.Mac})
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"return_code": -1, "return_message": "mac not equal"})
	}
	switch err := h.settle(c, "ZALOPAY", cb); {
	case err == nil, errors.Is(err, errAlreadySettled):
		return c.JSON(http.StatusOK, echo.Map{"return_code": 1, "return_message": "success"})
	default:
		log.Printf("zalopay: settlement failed for order %s: %v", cb.OrderID, err)
		return c.JSON(http.StatusOK, echo.Map{"return_code": 0, "return_message": "retry"})
	}
}

// flattenJSONBody renders every top-level JSON field as the string the
// provider signed. UseNumber keeps integer amounts out of scientific
// notation, which would break the byte-exact signature check.
func flattenJSONBody(c echo.Context) (map[string]string, error) {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case nil:
			out[k] = ""
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	return out, nil
}
